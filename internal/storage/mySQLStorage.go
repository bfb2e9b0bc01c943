package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	"github.com/fatali-fataliyev/expense_tracker/internal/auth"
	"github.com/fatali-fataliyev/expense_tracker/internal/budget"
	"github.com/fatali-fataliyev/expense_tracker/internal/config"
	"github.com/fatali-fataliyev/expense_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/expense_tracker/logging"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	connectAttempts = 15
	connectBackoff  = 3 * time.Second
	errDuplicateKey = 1062
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// --- INIT START --- //

// buildDSNs returns the server-level DSN used to create the schema and the DSN of the schema itself.
func buildDSNs(dbCfg config.DBConfig) (adminDsn string, finalDsn string, dbname string, err error) {
	var cfg *mysql.Config
	if dbCfg.FullDSN != "" {
		cfg, err = mysql.ParseDSN(dbCfg.FullDSN)
		if err != nil {
			return "", "", "", fmt.Errorf("invalid FULL_DSN: %w", err)
		}
		if cfg.DBName == "" {
			cfg.DBName = dbCfg.Name
		}
	} else {
		if dbCfg.User == "" || dbCfg.Password == "" || dbCfg.Host == "" || dbCfg.Port == "" {
			return "", "", "", fmt.Errorf("missing required DB environment variables")
		}
		cfg = mysql.NewConfig()
		cfg.User = dbCfg.User
		cfg.Passwd = dbCfg.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(dbCfg.Host, dbCfg.Port)
		cfg.DBName = dbCfg.Name
	}
	if cfg.DBName == "" {
		cfg.DBName = "expense_tracker"
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true

	dbname = cfg.DBName
	finalDsn = cfg.FormatDSN()

	admin := cfg.Clone()
	admin.DBName = ""
	adminDsn = admin.FormatDSN()
	return adminDsn, finalDsn, dbname, nil
}

func Init(ctx context.Context, dbCfg config.DBConfig) (*sql.DB, error) {
	adminDsn, finalDsn, dbname, err := buildDSNs(dbCfg)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("Connecting to MySQL server for initialization...")
	adminDb, err := sql.Open("mysql", adminDsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open admin mysql handle: %w", err)
	}
	defer adminDb.Close()

	connected := false
	for i := 0; i < connectAttempts; i++ {
		if err := adminDb.PingContext(ctx); err == nil {
			connected = true
			break
		}
		logging.Logger.Warnf("Database not ready, retrying... (%d/%d)", i+1, connectAttempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if !connected {
		return nil, fmt.Errorf("database unreachable after multiple attempts")
	}

	var dbnameExistence string
	checkDbnameExistQuery := "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?"
	err = adminDb.QueryRowContext(ctx, checkDbnameExistQuery, dbname).Scan(&dbnameExistence)

	if errors.Is(err, sql.ErrNoRows) {
		logging.Logger.Infof("Database '%s' does not exist, creating...", dbname)
		createDbSql := fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;", strings.ReplaceAll(dbname, "`", ""))
		if _, err := adminDb.ExecContext(ctx, createDbSql); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	logging.Logger.Info("Running migrations...")
	if err := runMigrations(finalDsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Logger.Info("Connecting to database...")
	db, err := sql.Open("mysql", finalDsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	logging.Logger.Info("Connected to database successfully")
	return db, nil
}

// runMigrations uses its own connection; closing the migrator closes it too.
func runMigrations(dsn string) error {
	migrateDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}

	driver, err := migratemysql.WithInstance(migrateDB, &migratemysql.Config{})
	if err != nil {
		migrateDB.Close()
		return fmt.Errorf("create mysql migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logging.Logger.Info("no new migration")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	logging.Logger.Info("all migrations applied successfully")
	return nil
}

// --- INIT END --- //

type MySQLStorage struct {
	db *sql.DB
}

func NewMySQLStorage(db *sql.DB) *MySQLStorage {
	return &MySQLStorage{db: db}
}

func (mySql *MySQLStorage) GetStorageType() string {
	return "mysql"
}

func internalError(message string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInternal,
		Message: message,
	}
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateKey
}

func (mySql *MySQLStorage) SaveUser(ctx context.Context, user auth.User) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO user (id, username, hashed_password, created_at) VALUES (?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, user.ID, user.UserName, user.PasswordHashed, user.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: fmt.Sprintf("User '%s' already exists.", user.UserName),
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save user Storage.SaveUser(), Error: %v", traceID, err)
		return internalError("Registration failed, try again later.")
	}
	return nil
}

func (mySql *MySQLStorage) IsUserExists(ctx context.Context, username string) (bool, error) {
	query := "SELECT 1 FROM user WHERE username = ?;"

	var dummy int
	err := mySql.db.QueryRowContext(ctx, query, username).Scan(&dummy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		traceID := contextutil.TraceIDFromContext(ctx)
		logging.Logger.Errorf("[TraceID=%s] | failed to check user existance in Storage.IsUserExists() function |  Error: %v", traceID, err)
		return false, internalError("Failed to check user existance, try again later.")
	}

	return true, nil
}

func (mySql *MySQLStorage) ValidateUser(ctx context.Context, credentials auth.UserCredentialsPure) (auth.User, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	invalid := appErrors.ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: "Username or Password is incorrect",
	}

	query := "SELECT id, username, hashed_password, created_at FROM user WHERE username = ?;"
	var user auth.User
	err := mySql.db.QueryRowContext(ctx, query, credentials.UserName).Scan(&user.ID, &user.UserName, &user.PasswordHashed, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, invalid
		}

		logging.Logger.Errorf("[TraceID=%s] | failed to scan user row in Storage.ValidateUser() function | Error : %v", traceID, err)
		return auth.User{}, internalError("Failed to login, try again later.")
	}
	if !auth.ComparePasswords(user.PasswordHashed, credentials.PasswordPlain) {
		return auth.User{}, invalid
	}

	return user, nil
}

func (mySql *MySQLStorage) SaveSession(ctx context.Context, session auth.Session) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO session (id, token, user_name, created_at, expire_at) VALUES (?, ?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, session.ID, session.Token, session.UserName, session.CreatedAt, session.ExpireAt)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save session in Storage.SaveSession() function | Error: %v", traceID, err)
		return internalError("Failed to create session, try again later.")
	}
	return nil
}

func (mySql *MySQLStorage) GetSessionByToken(ctx context.Context, token string) (auth.Session, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	query := `SELECT id, token, created_at, expire_at, user_name FROM session WHERE token = ?`

	var dbS dbSession
	err := mySql.db.QueryRowContext(ctx, query, strings.TrimSpace(token)).Scan(
		&dbS.ID,
		&dbS.Token,
		&dbS.CreatedAt,
		&dbS.ExpireAt,
		&dbS.UserName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrAuth,
				Message: "Session does not exist, please login.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get session in Storage.GetSessionByToken() function | Error: %v", traceID, err)
		return auth.Session{}, internalError("Failed to check session, please try again later.")
	}

	return auth.Session{
		ID:        dbS.ID,
		Token:     dbS.Token,
		CreatedAt: dbS.CreatedAt,
		ExpireAt:  dbS.ExpireAt,
		UserName:  dbS.UserName,
	}, nil
}

func (mySql *MySQLStorage) UpdateSession(ctx context.Context, token string, newExpireDate time.Time) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `UPDATE session SET expire_at = ? WHERE token = ?`
	res, err := mySql.db.ExecContext(ctx, query, newExpireDate, token)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update session in Storage.UpdateSession() function | Error: %v", traceID, err)
		return internalError("Failed to check session, please try again later.")
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check affected rows in Storage.UpdateSession() function | Error: %v", traceID, err)
		return internalError("Failed to check session, please try again later.")
	}

	if rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Session does not exist, please login.",
		}
	}

	return nil
}

func (mySql *MySQLStorage) LogoutUser(ctx context.Context, username string, token string) error {
	traceID := contextutil.TraceIDFromContext(ctx)
	query := "UPDATE session SET expire_at = UTC_TIMESTAMP() - INTERVAL 1 SECOND WHERE user_name = ? AND token = ?"

	res, err := mySql.db.ExecContext(ctx, query, username, token)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to logout user in Storage.LogoutUser() function | Error: %v", traceID, err)
		return internalError("Failed to logout, try again later.")
	}
	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Session does not exist, please login.",
		}
	}

	return nil
}

func (mySql *MySQLStorage) SaveExpense(ctx context.Context, expense budget.Expense) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO expense (id, user_name, amount, category, expense_date, created_at) VALUES (?, ?, ?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, expense.ID, expense.UserName, expense.Amount, string(expense.Category), expense.Date, expense.CreatedAt)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save expense in Storage.SaveExpense() function | Error: %v", traceID, err)
		return internalError("Failed to save the expense, try again later.")
	}
	return nil
}

func (mySql *MySQLStorage) SaveBudget(ctx context.Context, b budget.Budget) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO budget (id, user_name, category, budget_amount, created_at) VALUES (?, ?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, b.ID, b.UserName, string(b.Category), b.BudgetAmount, b.CreatedAt)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save budget in Storage.SaveBudget() function | Error: %v", traceID, err)
		return internalError("Failed to save the budget, try again later.")
	}
	return nil
}

// expenseQuery builds the filtered select; rows come back in insertion order.
func expenseQuery(username string, filters *budget.ExpenseList) (string, []interface{}) {
	query := "SELECT id, user_name, amount, category, expense_date, created_at FROM expense WHERE user_name = ?"
	args := []interface{}{username}

	if filters != nil && !filters.IsAllNil {
		if len(filters.Categories) > 0 {
			query += " AND category IN (?" + strings.Repeat(",?", len(filters.Categories)-1) + ")"
			for _, c := range filters.Categories {
				args = append(args, string(c))
			}
		}
		if !filters.From.IsZero() {
			query += " AND expense_date >= ?"
			args = append(args, filters.From)
		}
		if !filters.To.IsZero() {
			query += " AND expense_date <= ?"
			args = append(args, filters.To)
		}
	}

	query += " ORDER BY seq ASC;"
	return query, args
}

func (mySql *MySQLStorage) GetFilteredExpenses(ctx context.Context, username string, filters *budget.ExpenseList) ([]budget.Expense, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query, args := expenseQuery(username, filters)
	rows, err := mySql.db.QueryContext(ctx, query, args...)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to get expenses from Storage.GetFilteredExpenses() function | Error : %v", traceID, err)
		return nil, internalError("Failed to get expenses, try again later.")
	}
	defer rows.Close()

	expenses := []budget.Expense{}
	for rows.Next() {
		var e dbExpense
		if err := rows.Scan(&e.ID, &e.UserName, &e.Amount, &e.Category, &e.Date, &e.CreatedAt); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan row in Storage.GetFilteredExpenses() | Error : %v", traceID, err)
			return nil, internalError("Failed to process expenses, try again later.")
		}
		expenses = append(expenses, budget.Expense{
			ID:        e.ID,
			UserName:  e.UserName,
			Amount:    e.Amount,
			Category:  budget.Category(e.Category),
			Date:      e.Date.UTC(),
			CreatedAt: e.CreatedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate rows in Storage.GetFilteredExpenses() | Error : %v", traceID, err)
		return nil, internalError("Failed to process expenses, try again later.")
	}

	return expenses, nil
}

func (mySql *MySQLStorage) GetBudgets(ctx context.Context, username string) ([]budget.Budget, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, user_name, category, budget_amount, created_at FROM budget WHERE user_name = ? ORDER BY seq ASC;"
	rows, err := mySql.db.QueryContext(ctx, query, username)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to get budgets from Storage.GetBudgets() function | Error : %v", traceID, err)
		return nil, internalError("Failed to get budgets, try again later.")
	}
	defer rows.Close()

	budgets := []budget.Budget{}
	for rows.Next() {
		var b dbBudget
		if err := rows.Scan(&b.ID, &b.UserName, &b.Category, &b.BudgetAmount, &b.CreatedAt); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan row in Storage.GetBudgets() | Error : %v", traceID, err)
			return nil, internalError("Failed to process budgets, try again later.")
		}
		budgets = append(budgets, budget.Budget{
			ID:           b.ID,
			UserName:     b.UserName,
			Category:     budget.Category(b.Category),
			BudgetAmount: b.BudgetAmount,
			CreatedAt:    b.CreatedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate rows in Storage.GetBudgets() | Error : %v", traceID, err)
		return nil, internalError("Failed to process budgets, try again later.")
	}

	return budgets, nil
}

func (mySql *MySQLStorage) GetAccountInfo(ctx context.Context, username string) (budget.AccountInfo, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `
	SELECT u.username,
	       u.created_at,
	       (SELECT COUNT(*) FROM expense e WHERE e.user_name = u.username) AS expense_count,
	       (SELECT COUNT(*) FROM budget b WHERE b.user_name = u.username) AS budget_count
	FROM user u
	WHERE u.username = ?;
	`

	var info budget.AccountInfo
	err := mySql.db.QueryRowContext(ctx, query, username).Scan(&info.UserName, &info.JoinedAt, &info.ExpenseCount, &info.BudgetCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budget.AccountInfo{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrNotFound,
				Message: "User not found.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get account info in Storage.GetAccountInfo() function | Error: %v", traceID, err)
		return budget.AccountInfo{}, internalError("Failed to get account info, try later.")
	}
	info.JoinedAt = info.JoinedAt.UTC()

	return info, nil
}
