package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fatali-fataliyev/expense_tracker/internal/budget"
	"github.com/fatali-fataliyev/expense_tracker/internal/config"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestBuildDSNs(t *testing.T) {
	t.Run("from parts", func(t *testing.T) {
		adminDsn, finalDsn, dbname, err := buildDSNs(config.DBConfig{
			User: "root", Password: "pw", Host: "db", Port: "3306", Name: "ledger",
		})
		require.NoError(t, err)
		require.Equal(t, "ledger", dbname)

		final, err := mysql.ParseDSN(finalDsn)
		require.NoError(t, err)
		require.Equal(t, "db:3306", final.Addr)
		require.Equal(t, "ledger", final.DBName)
		require.True(t, final.ParseTime)
		require.Equal(t, time.UTC, final.Loc)

		admin, err := mysql.ParseDSN(adminDsn)
		require.NoError(t, err)
		require.Empty(t, admin.DBName)
		require.Equal(t, "root", admin.User)
	})

	t.Run("full dsn wins", func(t *testing.T) {
		_, finalDsn, dbname, err := buildDSNs(config.DBConfig{
			FullDSN: "u:p@tcp(remote:3307)/books",
			Name:    "ignored",
		})
		require.NoError(t, err)
		require.Equal(t, "books", dbname)

		final, err := mysql.ParseDSN(finalDsn)
		require.NoError(t, err)
		require.Equal(t, "remote:3307", final.Addr)
	})

	t.Run("default database name", func(t *testing.T) {
		_, _, dbname, err := buildDSNs(config.DBConfig{User: "u", Password: "p", Host: "h", Port: "1"})
		require.NoError(t, err)
		require.Equal(t, "expense_tracker", dbname)
	})

	t.Run("missing parts", func(t *testing.T) {
		_, _, _, err := buildDSNs(config.DBConfig{User: "u"})
		require.Error(t, err)
	})
}

func TestExpenseQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filters   *budget.ExpenseList
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "no filters",
			filters:   nil,
			wantQuery: "SELECT id, user_name, amount, category, expense_date, created_at FROM expense WHERE user_name = ? ORDER BY seq ASC;",
			wantArgs:  []interface{}{"john"},
		},
		{
			name:      "all nil flag",
			filters:   &budget.ExpenseList{IsAllNil: true, Categories: []budget.Category{budget.CategoryFood}},
			wantQuery: "SELECT id, user_name, amount, category, expense_date, created_at FROM expense WHERE user_name = ? ORDER BY seq ASC;",
			wantArgs:  []interface{}{"john"},
		},
		{
			name: "categories and range",
			filters: &budget.ExpenseList{
				Categories: []budget.Category{budget.CategoryFood, budget.CategoryOthers},
				From:       from,
				To:         to,
			},
			wantQuery: "SELECT id, user_name, amount, category, expense_date, created_at FROM expense WHERE user_name = ? AND category IN (?,?) AND expense_date >= ? AND expense_date <= ? ORDER BY seq ASC;",
			wantArgs:  []interface{}{"john", "Food", "Others", from, to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := expenseQuery("john", tt.filters)
			require.Equal(t, tt.wantQuery, query)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	require.True(t, isDuplicateKey(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	require.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1045}))
	require.False(t, isDuplicateKey(errors.New("boom")))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 8)
}
