package storage

import "time"

type dbSession struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpireAt  time.Time
	UserName  string
}

type dbExpense struct {
	ID        string
	UserName  string
	Amount    float64
	Category  string
	Date      time.Time
	CreatedAt time.Time
}

type dbBudget struct {
	ID           string
	UserName     string
	Category     string
	BudgetAmount float64
	CreatedAt    time.Time
}
