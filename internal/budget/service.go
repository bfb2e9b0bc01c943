package budget

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	"github.com/fatali-fataliyev/expense_tracker/internal/auth"
	"github.com/google/uuid"
	"github.com/jinzhu/now"
)

const (
	MAX_AMOUNT_LIMIT        = 999999999999.99
	DEFAULT_SESSION_TTL     = 90 * 24 * time.Hour
	SESSION_RENEW_THRESHOLD = 5 * 24 * time.Hour
	SESSION_RENEW_DURATION  = 30 * 24 * time.Hour
)

var summaryPeriods = map[string]func(n *now.Now) (time.Time, time.Time){
	"": nil,
	"week": func(n *now.Now) (time.Time, time.Time) {
		return n.BeginningOfWeek(), n.EndOfWeek()
	},
	"month": func(n *now.Now) (time.Time, time.Time) {
		return n.BeginningOfMonth(), n.EndOfMonth()
	},
	"year": func(n *now.Now) (time.Time, time.Time) {
		return n.BeginningOfYear(), n.EndOfYear()
	},
}

type BudgetTracker struct {
	storage     Storage
	StorageType string
	sessionTTL  time.Duration
	clock       func() time.Time
}

func NewBudgetTracker(s Storage, sessionTTL time.Duration) BudgetTracker {
	return BudgetTracker{
		storage:     s,
		StorageType: s.GetStorageType(),
		sessionTTL:  sessionTTL,
	}
}

type Storage interface {
	SaveUser(ctx context.Context, newUser auth.User) error
	IsUserExists(ctx context.Context, username string) (bool, error)
	ValidateUser(ctx context.Context, credentials auth.UserCredentialsPure) (auth.User, error)
	SaveSession(ctx context.Context, session auth.Session) error
	GetSessionByToken(ctx context.Context, token string) (auth.Session, error)
	UpdateSession(ctx context.Context, token string, expireAt time.Time) error
	LogoutUser(ctx context.Context, username string, token string) error
	SaveExpense(ctx context.Context, expense Expense) error
	SaveBudget(ctx context.Context, budget Budget) error
	GetFilteredExpenses(ctx context.Context, username string, filters *ExpenseList) ([]Expense, error)
	GetBudgets(ctx context.Context, username string) ([]Budget, error)
	GetAccountInfo(ctx context.Context, username string) (AccountInfo, error)
	GetStorageType() string
}

func (bt *BudgetTracker) now() time.Time {
	if bt.clock != nil {
		return bt.clock().UTC()
	}
	return time.Now().UTC()
}

func invalidInput(format string, args ...any) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}

func (bt *BudgetTracker) ValidateUser(ctx context.Context, credentials auth.UserCredentialsPure) (auth.User, error) {
	if strings.TrimSpace(credentials.UserName) == "" {
		return auth.User{}, invalidInput("Username cannot be empty!")
	}
	if credentials.PasswordPlain == "" {
		return auth.User{}, invalidInput("Password cannot be empty!")
	}
	user, err := bt.storage.ValidateUser(ctx, credentials)
	if err != nil {
		return auth.User{}, fmt.Errorf("failed to validate user: %w", err)
	}
	return user, nil
}

func (bt *BudgetTracker) GenerateSession(ctx context.Context, credentialsPure auth.UserCredentialsPure) (string, error) {
	user, err := bt.ValidateUser(ctx, credentialsPure)
	if err != nil {
		return "", err
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate new session: %w", err)
	}

	ttl := bt.sessionTTL
	if ttl <= 0 {
		ttl = DEFAULT_SESSION_TTL
	}

	now := bt.now()
	session := auth.Session{
		ID:        uuid.New().String(),
		Token:     token,
		CreatedAt: now,
		ExpireAt:  now.Add(ttl),
		UserName:  user.UserName,
	}

	if err := bt.storage.SaveSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}

// CheckSession resolves a token to its username. Sessions close to expiry are extended.
func (bt *BudgetTracker) CheckSession(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Authorization header is required.",
		}
	}

	session, err := bt.storage.GetSessionByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to get session by token: %w", err)
	}

	now := bt.now()
	if !session.ExpireAt.After(now) {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Your session expired, please login again.",
		}
	}

	if session.ExpireAt.Sub(now) <= SESSION_RENEW_THRESHOLD {
		if err := bt.storage.UpdateSession(ctx, token, now.Add(SESSION_RENEW_DURATION)); err != nil {
			return "", fmt.Errorf("failed to update session: %w", err)
		}
	}

	return session.UserName, nil
}

func (bt *BudgetTracker) LogoutUser(ctx context.Context, username string, token string) error {
	if err := bt.storage.LogoutUser(ctx, username, token); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

func (bt *BudgetTracker) IsUserExists(ctx context.Context, username string) (bool, error) {
	result, err := bt.storage.IsUserExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to check user existance: %w", err)
	}
	return result, nil
}

// SaveUser registers the user and returns a token of a freshly opened session.
func (bt *BudgetTracker) SaveUser(ctx context.Context, newUser auth.NewUser) (string, error) {
	if err := newUser.ValidateUserFields(); err != nil {
		return "", err
	}
	username := newUser.UserName

	isUserExists, err := bt.IsUserExists(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to check username availability: %w", err)
	}
	if isUserExists {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrConflict,
			Message: fmt.Sprintf("User '%s' already exists.", username),
		}
	}

	hashedPassword, err := auth.HashPassword(newUser.PasswordPlain)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := auth.User{
		ID:             uuid.New().String(),
		UserName:       username,
		PasswordHashed: hashedPassword,
		CreatedAt:      bt.now(),
	}

	if err := bt.storage.SaveUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to registration: %w", err)
	}

	credentials := auth.UserCredentialsPure{
		UserName:      username,
		PasswordPlain: newUser.PasswordPlain,
	}

	token, err := bt.GenerateSession(ctx, credentials)
	if err != nil {
		return "", fmt.Errorf("registration successfully but failed to generate session: %w | try login", err)
	}
	return token, nil
}

func validateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return invalidInput("%s is not a number", field)
	}
	if amount < 0 {
		return invalidInput("%s cannot be negative", field)
	}
	if amount > MAX_AMOUNT_LIMIT {
		return invalidInput("%s is too large, the limit is: %.2f", field, MAX_AMOUNT_LIMIT)
	}
	return nil
}

func parseCategory(name string) (Category, error) {
	if strings.TrimSpace(name) == "" {
		return "", invalidInput("Category cannot be empty!")
	}
	category, ok := ParseCategory(name)
	if !ok {
		return "", invalidInput("unknown category '%s', allowed categories: %s", name, categoryNames())
	}
	return category, nil
}

func categoryNames() string {
	names := make([]string, 0, len(Categories))
	for _, c := range Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// ParseDate accepts YYYY-MM-DD and returns UTC midnight of that day.
func ParseDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalidInput("invalid date '%s', expected format YYYY-MM-DD", value)
	}
	return date.UTC(), nil
}

func (bt *BudgetTracker) SaveExpense(ctx context.Context, username string, expense ExpenseRequest) (Expense, error) {
	if err := validateAmount("expense amount", expense.Amount); err != nil {
		return Expense{}, err
	}
	category, err := parseCategory(expense.Category)
	if err != nil {
		return Expense{}, err
	}

	now := bt.now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if strings.TrimSpace(expense.Date) != "" {
		date, err = ParseDate(expense.Date)
		if err != nil {
			return Expense{}, err
		}
	}

	item := Expense{
		ID:        uuid.New().String(),
		UserName:  username,
		Amount:    FromCents(ToCents(expense.Amount)),
		Category:  category,
		Date:      date,
		CreatedAt: now,
	}

	if err := bt.storage.SaveExpense(ctx, item); err != nil {
		return Expense{}, fmt.Errorf("failed to save expense: %w", err)
	}
	return item, nil
}

func (bt *BudgetTracker) SaveBudget(ctx context.Context, username string, budget BudgetRequest) (Budget, error) {
	if err := validateAmount("budget amount", budget.BudgetAmount); err != nil {
		return Budget{}, err
	}
	category, err := parseCategory(budget.Category)
	if err != nil {
		return Budget{}, err
	}

	item := Budget{
		ID:           uuid.New().String(),
		UserName:     username,
		Category:     category,
		BudgetAmount: FromCents(ToCents(budget.BudgetAmount)),
		CreatedAt:    bt.now(),
	}

	if err := bt.storage.SaveBudget(ctx, item); err != nil {
		return Budget{}, fmt.Errorf("failed to save budget: %w", err)
	}
	return item, nil
}

func (bt *BudgetTracker) GetExpenses(ctx context.Context, username string, filters *ExpenseList) ([]Expense, error) {
	if filters == nil {
		filters = &ExpenseList{IsAllNil: true}
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return nil, invalidInput("'from' date must not be after 'to' date")
	}

	expenses, err := bt.storage.GetFilteredExpenses(ctx, username, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	return expenses, nil
}

func (bt *BudgetTracker) GetBudgets(ctx context.Context, username string) ([]Budget, error) {
	budgets, err := bt.storage.GetBudgets(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get budgets: %w", err)
	}
	return budgets, nil
}

// GetExpenseSummary sums the user's expenses per category. Categories without
// expenses are left out; the rest are ordered by name.
func (bt *BudgetTracker) GetExpenseSummary(ctx context.Context, username string, period string) (ExpenseSummary, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	window, ok := summaryPeriods[period]
	if !ok {
		return ExpenseSummary{}, invalidInput("report period '%s' is not supported, use week, month or year", period)
	}

	summary := ExpenseSummary{Period: period}
	filters := &ExpenseList{IsAllNil: true}
	if window != nil {
		summary.From, summary.To = window(now.With(bt.now()))
		filters = &ExpenseList{From: summary.From, To: summary.To}
	}

	expenses, err := bt.storage.GetFilteredExpenses(ctx, username, filters)
	if err != nil {
		return ExpenseSummary{}, fmt.Errorf("failed to get expense summary: %w", err)
	}

	totals, total := groupExpenses(expenses)
	summary.Categories = totals
	summary.Total = total
	return summary, nil
}

func groupExpenses(expenses []Expense) ([]CategoryTotal, float64) {
	cents := make(map[Category]int64)
	for _, e := range expenses {
		cents[e.Category] += ToCents(e.Amount)
	}

	totals := make([]CategoryTotal, 0, len(cents))
	var total int64
	for category, amount := range cents {
		totals = append(totals, CategoryTotal{Category: category, Amount: FromCents(amount)})
		total += amount
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Category < totals[j].Category
	})
	return totals, FromCents(total)
}

// GetBudgetStatus compares, per budgeted category, the most recently set budget
// with everything the user spent in that category.
func (bt *BudgetTracker) GetBudgetStatus(ctx context.Context, username string) ([]BudgetStatus, error) {
	budgets, err := bt.storage.GetBudgets(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get budgets: %w", err)
	}
	if len(budgets) == 0 {
		return []BudgetStatus{}, nil
	}

	expenses, err := bt.storage.GetFilteredExpenses(ctx, username, &ExpenseList{IsAllNil: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	spent := make(map[Category]int64)
	for _, e := range expenses {
		spent[e.Category] += ToCents(e.Amount)
	}

	// budgets come in insertion order, so the last one per category wins
	latest := make(map[Category]int64)
	var order []Category
	for _, b := range budgets {
		if _, seen := latest[b.Category]; !seen {
			order = append(order, b.Category)
		}
		latest[b.Category] = ToCents(b.BudgetAmount)
	}

	statuses := make([]BudgetStatus, 0, len(order))
	for _, category := range order {
		limit := latest[category]
		used := spent[category]

		var usagePercent int
		if limit > 0 {
			usagePercent = usagePercentOf(used, limit)
		}

		statuses = append(statuses, BudgetStatus{
			Category:     category,
			BudgetAmount: FromCents(limit),
			Spent:        FromCents(used),
			Remaining:    FromCents(limit - used),
			UsagePercent: usagePercent,
			IsExceeded:   used > limit,
		})
	}
	return statuses, nil
}

// usagePercentOf floors the ratio and saturates at MaxInt32.
func usagePercentOf(used, limit int64) int {
	percent := math.Floor(float64(used) * 100 / float64(limit))
	if percent > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(percent)
}

func (bt *BudgetTracker) GetAccountInfo(ctx context.Context, username string) (AccountInfo, error) {
	info, err := bt.storage.GetAccountInfo(ctx, username)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("failed to get account info: %w", err)
	}
	return info, nil
}

func (bt *BudgetTracker) GetUserData(ctx context.Context, username string) (UserDataResponse, error) {
	expenses, err := bt.GetExpenses(ctx, username, nil)
	if err != nil {
		return UserDataResponse{}, err
	}
	budgets, err := bt.GetBudgets(ctx, username)
	if err != nil {
		return UserDataResponse{}, err
	}
	return UserDataResponse{Expenses: expenses, Budgets: budgets}, nil
}
