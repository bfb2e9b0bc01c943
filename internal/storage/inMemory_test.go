package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	"github.com/fatali-fataliyev/expense_tracker/internal/auth"
	"github.com/fatali-fataliyev/expense_tracker/internal/budget"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, username, password string) auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return auth.User{ID: username + "-id", UserName: username, PasswordHashed: hash, CreatedAt: time.Now().UTC()}
}

func TestInMemorySaveUserRejectsDuplicate(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, newUser(t, "john", "pw1")))

	err := store.SaveUser(ctx, newUser(t, "john", "pw2"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict, appErrors.CodeOf(err))

	exists, err := store.IsUserExists(ctx, "john")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.IsUserExists(ctx, "jane")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestInMemoryValidateUser(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, newUser(t, "john", "secret")))

	tests := []struct {
		name     string
		username string
		password string
		wantOK   bool
	}{
		{name: "exact match", username: "john", password: "secret", wantOK: true},
		{name: "wrong password", username: "john", password: "Secret"},
		{name: "password prefix", username: "john", password: "secre"},
		{name: "unknown user", username: "jane", password: "secret"},
		{name: "upper case username", username: "JOHN", password: "secret"},
		{name: "padded username", username: " john ", password: "secret"},
		{name: "empty pair", username: "", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := store.ValidateUser(ctx, auth.UserCredentialsPure{UserName: tt.username, PasswordPlain: tt.password})
			if tt.wantOK {
				require.NoError(t, err)
				require.Equal(t, "john", user.UserName)
				return
			}
			require.Error(t, err)
			require.Equal(t, appErrors.ErrAuth, appErrors.CodeOf(err))
			require.Equal(t, "Username or Password is incorrect", appErrors.MessageOf(err))
		})
	}
}

func TestInMemorySessions(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()
	expireAt := time.Now().UTC().Add(time.Hour)

	require.NoError(t, store.SaveSession(ctx, auth.Session{ID: "s1", Token: "tok", UserName: "john", ExpireAt: expireAt}))

	session, err := store.GetSessionByToken(ctx, " tok ")
	require.NoError(t, err)
	require.Equal(t, "john", session.UserName)

	newExpire := expireAt.Add(24 * time.Hour)
	require.NoError(t, store.UpdateSession(ctx, "tok", newExpire))
	session, err = store.GetSessionByToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, newExpire, session.ExpireAt)

	require.Error(t, store.UpdateSession(ctx, "missing", newExpire))
	require.Error(t, store.LogoutUser(ctx, "jane", "tok"))

	require.NoError(t, store.LogoutUser(ctx, "john", "tok"))
	session, err = store.GetSessionByToken(ctx, "tok")
	require.NoError(t, err)
	require.False(t, session.ExpireAt.After(time.Now().UTC()))

	_, err = store.GetSessionByToken(ctx, "nope")
	require.Equal(t, appErrors.ErrAuth, appErrors.CodeOf(err))
}

func TestInMemoryListsPreserveInsertionOrder(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC) }

	inputs := []budget.Expense{
		{ID: "e1", UserName: "john", Amount: 5, Category: budget.CategoryFood, Date: day(3)},
		{ID: "e2", UserName: "jane", Amount: 7, Category: budget.CategoryFood, Date: day(1)},
		{ID: "e3", UserName: "john", Amount: 1, Category: budget.CategoryTransport, Date: day(1)},
		{ID: "e4", UserName: "john", Amount: 9, Category: budget.CategoryOthers, Date: day(10)},
	}
	for _, e := range inputs {
		require.NoError(t, store.SaveExpense(ctx, e))
	}

	all, err := store.GetFilteredExpenses(ctx, "john", &budget.ExpenseList{IsAllNil: true})
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e3", "e4"}, expenseIDs(all))

	filtered, err := store.GetFilteredExpenses(ctx, "john", &budget.ExpenseList{
		Categories: []budget.Category{budget.CategoryFood, budget.CategoryOthers},
		To:         day(5),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"e1"}, expenseIDs(filtered))

	none, err := store.GetFilteredExpenses(ctx, "nobody", nil)
	require.NoError(t, err)
	require.Empty(t, none)

	for i, b := range []budget.Budget{
		{ID: "b1", UserName: "john", Category: budget.CategoryFood, BudgetAmount: 100},
		{ID: "b2", UserName: "jane", Category: budget.CategoryFood, BudgetAmount: 50},
		{ID: "b3", UserName: "john", Category: budget.CategoryFood, BudgetAmount: 120},
	} {
		require.NoError(t, store.SaveBudget(ctx, b), "budget %d", i)
	}

	budgets, err := store.GetBudgets(ctx, "john")
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	require.Equal(t, "b1", budgets[0].ID)
	require.Equal(t, "b3", budgets[1].ID)
}

func TestInMemoryGetAccountInfo(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()

	_, err := store.GetAccountInfo(ctx, "john")
	require.Equal(t, appErrors.ErrNotFound, appErrors.CodeOf(err))

	user := newUser(t, "john", "pw")
	require.NoError(t, store.SaveUser(ctx, user))
	require.NoError(t, store.SaveExpense(ctx, budget.Expense{ID: "e1", UserName: "john"}))
	require.NoError(t, store.SaveBudget(ctx, budget.Budget{ID: "b1", UserName: "john"}))
	require.NoError(t, store.SaveBudget(ctx, budget.Budget{ID: "b2", UserName: "jane"}))

	info, err := store.GetAccountInfo(ctx, "john")
	require.NoError(t, err)
	require.Equal(t, budget.AccountInfo{UserName: "john", JoinedAt: user.CreatedAt, ExpenseCount: 1, BudgetCount: 1}, info)
}

func TestInMemoryConcurrentWrites(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.SaveExpense(ctx, budget.Expense{ID: fmt.Sprintf("e%d", i), UserName: "john", Amount: 1})
			_, _ = store.GetFilteredExpenses(ctx, "john", nil)
		}(i)
	}
	wg.Wait()

	all, err := store.GetFilteredExpenses(ctx, "john", nil)
	require.NoError(t, err)
	require.Len(t, all, 50)
}

func expenseIDs(expenses []budget.Expense) []string {
	ids := make([]string, 0, len(expenses))
	for _, e := range expenses {
		ids = append(ids, e.ID)
	}
	return ids
}
