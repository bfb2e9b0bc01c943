package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	authModel "github.com/fatali-fataliyev/expense_tracker/internal/auth"
	budgetModel "github.com/fatali-fataliyev/expense_tracker/internal/budget"
	"github.com/fatali-fataliyev/expense_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/expense_tracker/logging"
)

// InMemoryStorage keeps every collection in insertion order for the lifetime of the process.
type InMemoryStorage struct {
	mu       sync.RWMutex
	users    []authModel.User
	sessions []authModel.Session
	expenses []budgetModel.Expense
	budgets  []budgetModel.Budget
	now      func() time.Time
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{now: time.Now}
}

func (inMem *InMemoryStorage) GetStorageType() string {
	return "inmemory"
}

func (inMem *InMemoryStorage) SaveUser(ctx context.Context, newUser authModel.User) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for _, user := range inMem.users {
		if user.UserName == newUser.UserName {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: "User '" + newUser.UserName + "' already exists.",
			}
		}
	}
	inMem.users = append(inMem.users, newUser)
	logging.Logger.Debugf("[TraceID=%s] | user '%s' registered, total users: %d", contextutil.TraceIDFromContext(ctx), newUser.UserName, len(inMem.users))
	return nil
}

func (inMem *InMemoryStorage) IsUserExists(ctx context.Context, username string) (bool, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, user := range inMem.users {
		if user.UserName == username {
			return true, nil
		}
	}
	return false, nil
}

// ValidateUser answers unknown users and wrong passwords with the same error.
func (inMem *InMemoryStorage) ValidateUser(ctx context.Context, credentials authModel.UserCredentialsPure) (authModel.User, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, user := range inMem.users {
		if user.UserName == credentials.UserName {
			if authModel.ComparePasswords(user.PasswordHashed, credentials.PasswordPlain) {
				return user, nil
			}
			break
		}
	}
	return authModel.User{}, appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: "Username or Password is incorrect",
	}
}

func (inMem *InMemoryStorage) SaveSession(ctx context.Context, session authModel.Session) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	inMem.sessions = append(inMem.sessions, session)
	return nil
}

func (inMem *InMemoryStorage) GetSessionByToken(ctx context.Context, token string) (authModel.Session, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, session := range inMem.sessions {
		if session.Token == strings.TrimSpace(token) {
			return session, nil
		}
	}
	return authModel.Session{}, appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: "Session does not exist, please login.",
	}
}

func (inMem *InMemoryStorage) UpdateSession(ctx context.Context, token string, expireAt time.Time) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i := range inMem.sessions {
		if inMem.sessions[i].Token == token {
			inMem.sessions[i].ExpireAt = expireAt
			return nil
		}
	}
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: "Session does not exist, please login.",
	}
}

func (inMem *InMemoryStorage) LogoutUser(ctx context.Context, username string, token string) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i := range inMem.sessions {
		if inMem.sessions[i].Token == token && inMem.sessions[i].UserName == username {
			inMem.sessions[i].ExpireAt = inMem.now().UTC().Add(-time.Second)
			return nil
		}
	}
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: "Session does not exist, please login.",
	}
}

func (inMem *InMemoryStorage) SaveExpense(ctx context.Context, expense budgetModel.Expense) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	inMem.expenses = append(inMem.expenses, expense)
	return nil
}

func (inMem *InMemoryStorage) SaveBudget(ctx context.Context, budget budgetModel.Budget) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	inMem.budgets = append(inMem.budgets, budget)
	return nil
}

func (inMem *InMemoryStorage) GetFilteredExpenses(ctx context.Context, username string, filters *budgetModel.ExpenseList) ([]budgetModel.Expense, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	result := []budgetModel.Expense{}
	for _, expense := range inMem.expenses {
		if expense.UserName == username && filters.Match(expense) {
			result = append(result, expense)
		}
	}
	return result, nil
}

func (inMem *InMemoryStorage) GetBudgets(ctx context.Context, username string) ([]budgetModel.Budget, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	result := []budgetModel.Budget{}
	for _, budget := range inMem.budgets {
		if budget.UserName == username {
			result = append(result, budget)
		}
	}
	return result, nil
}

func (inMem *InMemoryStorage) GetAccountInfo(ctx context.Context, username string) (budgetModel.AccountInfo, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	var info budgetModel.AccountInfo
	found := false
	for _, user := range inMem.users {
		if user.UserName == username {
			info.UserName = user.UserName
			info.JoinedAt = user.CreatedAt
			found = true
			break
		}
	}
	if !found {
		return budgetModel.AccountInfo{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrNotFound,
			Message: "User not found.",
		}
	}

	for _, expense := range inMem.expenses {
		if expense.UserName == username {
			info.ExpenseCount++
		}
	}
	for _, budget := range inMem.budgets {
		if budget.UserName == username {
			info.BudgetCount++
		}
	}
	return info, nil
}
