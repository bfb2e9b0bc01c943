package api

import (
	"net/url"
	"strings"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	"github.com/fatali-fataliyev/expense_tracker/internal/budget"
)

const timestampLayout = "02/01/2006 15:04"

// REQUESTS START:
type SaveUserRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type UserLoginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type CreateExpenseRequest struct {
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"` // YYYY-MM-DD, today when empty
}

type CreateBudgetRequest struct {
	Category     string  `json:"category"`
	BudgetAmount float64 `json:"budget_amount"`
}

//REQUESTS END:

//RESPONSES:

type UserCreatedResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type CheckTokenResponse struct {
	UserName string `json:"username"`
	Valid    bool   `json:"valid"`
}

type AccountInfoResponse struct {
	UserName     string `json:"username"`
	JoinedAt     string `json:"joined_at"`
	ExpenseCount int    `json:"expense_count"`
	BudgetCount  int    `json:"budget_count"`
}

type ExpenseItem struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Date      string  `json:"date"`
	CreatedAt string  `json:"created_at"`
}

type BudgetItem struct {
	ID           string  `json:"id"`
	Category     string  `json:"category"`
	BudgetAmount float64 `json:"budget_amount"`
	CreatedAt    string  `json:"created_at"`
}

type ListExpenseResponse struct {
	Expenses []ExpenseItem `json:"expenses"`
}

type ListBudgetResponse struct {
	Budgets []BudgetItem `json:"budgets"`
}

type CategoryTotalItem struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

type ExpenseSummaryResponse struct {
	Period     string              `json:"period,omitempty"`
	From       string              `json:"from,omitempty"`
	To         string              `json:"to,omitempty"`
	Categories []CategoryTotalItem `json:"categories"`
	Total      float64             `json:"total"`
}

type BudgetStatusItem struct {
	Category     string  `json:"category"`
	BudgetAmount float64 `json:"budget_amount"`
	Spent        float64 `json:"spent"`
	Remaining    float64 `json:"remaining"`
	UsagePercent int     `json:"usage_percent"`
	IsExceeded   bool    `json:"is_exceeded"`
}

type BudgetStatusResponse struct {
	Budgets []BudgetStatusItem `json:"budgets"`
}

type UserDataResponse struct {
	UserName string        `json:"username"`
	Expenses []ExpenseItem `json:"expenses"`
	Budgets  []BudgetItem  `json:"budgets"`
}

func httpStatusFromError(err error) int {
	switch appErrors.CodeOf(err) {
	case appErrors.ErrNotFound:
		return 404 // not found
	case appErrors.ErrInvalidInput:
		return 400 // bad request
	case appErrors.ErrAuth:
		return 401 // unauthorized
	case appErrors.ErrAccessDenied:
		return 403 // access denied
	case appErrors.ErrConflict:
		return 409 // conflict
	default:
		return 500 //internal error
	}
}

func ExpenseToHttp(expense budget.Expense) ExpenseItem {
	return ExpenseItem{
		ID:        expense.ID,
		Amount:    expense.Amount,
		Category:  string(expense.Category),
		Date:      expense.Date.Format(budget.DateLayout),
		CreatedAt: expense.CreatedAt.Format(timestampLayout),
	}
}

func BudgetToHttp(b budget.Budget) BudgetItem {
	return BudgetItem{
		ID:           b.ID,
		Category:     string(b.Category),
		BudgetAmount: b.BudgetAmount,
		CreatedAt:    b.CreatedAt.Format(timestampLayout),
	}
}

func ExpensesToHttp(expenses []budget.Expense) []ExpenseItem {
	items := make([]ExpenseItem, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, ExpenseToHttp(e))
	}
	return items
}

func BudgetsToHttp(budgets []budget.Budget) []BudgetItem {
	items := make([]BudgetItem, 0, len(budgets))
	for _, b := range budgets {
		items = append(items, BudgetToHttp(b))
	}
	return items
}

func SummaryToHttp(summary budget.ExpenseSummary) ExpenseSummaryResponse {
	resp := ExpenseSummaryResponse{
		Period:     summary.Period,
		Categories: make([]CategoryTotalItem, 0, len(summary.Categories)),
		Total:      summary.Total,
	}
	if !summary.From.IsZero() {
		resp.From = summary.From.Format(budget.DateLayout)
	}
	if !summary.To.IsZero() {
		resp.To = summary.To.Format(budget.DateLayout)
	}
	for _, c := range summary.Categories {
		resp.Categories = append(resp.Categories, CategoryTotalItem{Category: string(c.Category), Amount: c.Amount})
	}
	return resp
}

func BudgetStatusToHttp(statuses []budget.BudgetStatus) BudgetStatusResponse {
	resp := BudgetStatusResponse{Budgets: make([]BudgetStatusItem, 0, len(statuses))}
	for _, s := range statuses {
		resp.Budgets = append(resp.Budgets, BudgetStatusItem{
			Category:     string(s.Category),
			BudgetAmount: s.BudgetAmount,
			Spent:        s.Spent,
			Remaining:    s.Remaining,
			UsagePercent: s.UsagePercent,
			IsExceeded:   s.IsExceeded,
		})
	}
	return resp
}

// ExpenseListCheckParams turns query parameters into storage filters.
// No parameters at all means every expense of the user.
func ExpenseListCheckParams(params url.Values) (*budget.ExpenseList, error) {
	var filters budget.ExpenseList
	if len(params) == 0 {
		filters.IsAllNil = true
		return &filters, nil
	}

	if names := strings.TrimSpace(params.Get("categories")); names != "" {
		for _, name := range strings.Split(names, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			category, ok := budget.ParseCategory(name)
			if !ok {
				return nil, appErrors.ErrorResponse{
					Code:    appErrors.ErrInvalidInput,
					Message: "invalid category filter: " + strings.TrimSpace(name),
				}
			}
			filters.Categories = append(filters.Categories, category)
		}
	}

	if from := strings.TrimSpace(params.Get("from")); from != "" {
		date, err := budget.ParseDate(from)
		if err != nil {
			return nil, err
		}
		filters.From = date
	}
	if to := strings.TrimSpace(params.Get("to")); to != "" {
		date, err := budget.ParseDate(to)
		if err != nil {
			return nil, err
		}
		filters.To = date
	}

	if len(filters.Categories) == 0 && filters.From.IsZero() && filters.To.IsZero() {
		filters.IsAllNil = true
	}
	return &filters, nil
}
