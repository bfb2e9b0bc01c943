package budget

import (
	"math"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryUtilities     Category = "Utilities"
	CategoryOthers        Category = "Others"
)

var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryEntertainment,
	CategoryUtilities,
	CategoryOthers,
}

// ParseCategory matches case-insensitively and returns the canonical name.
func ParseCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

// ToCents rounds half away from zero.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// REQUESTS START:
type ExpenseRequest struct {
	Amount   float64
	Category string
	Date     string
}

type BudgetRequest struct {
	Category     string
	BudgetAmount float64
}

// REQUESTS END:

// MODELS:

type Expense struct {
	ID        string
	UserName  string
	Amount    float64
	Category  Category
	Date      time.Time
	CreatedAt time.Time
}

type Budget struct {
	ID           string
	UserName     string
	Category     Category
	BudgetAmount float64
	CreatedAt    time.Time
}

// ExpenseList narrows GetFilteredExpenses. Zero From/To leave that side open.
type ExpenseList struct {
	Categories []Category
	From       time.Time
	To         time.Time
	IsAllNil   bool
}

func (f *ExpenseList) Match(e Expense) bool {
	if f == nil || f.IsAllNil {
		return true
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == e.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	return true
}

// RESPONSES:

type CategoryTotal struct {
	Category Category
	Amount   float64
}

type ExpenseSummary struct {
	Period     string
	From       time.Time
	To         time.Time
	Categories []CategoryTotal
	Total      float64
}

type BudgetStatus struct {
	Category     Category
	BudgetAmount float64
	Spent        float64
	Remaining    float64
	UsagePercent int
	IsExceeded   bool
}

type AccountInfo struct {
	UserName     string
	JoinedAt     time.Time
	ExpenseCount int
	BudgetCount  int
}

type UserDataResponse struct {
	Expenses []Expense
	Budgets  []Budget
}
