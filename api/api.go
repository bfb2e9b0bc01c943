package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/0xcafe-io/iz"
	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	"github.com/fatali-fataliyev/expense_tracker/internal/auth"
	"github.com/fatali-fataliyev/expense_tracker/internal/budget"
	"github.com/fatali-fataliyev/expense_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/expense_tracker/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const TraceIDHeader = "X-Trace-ID"

type Api struct {
	Service *budget.BudgetTracker
}

func NewApi(service *budget.BudgetTracker) *Api {
	return &Api{
		Service: service,
	}
}

// Routes registers every endpoint and wraps them with tracing and metrics.
func (api *Api) Routes() http.Handler {
	server := http.NewServeMux()

	// USER ENDPOINTS.
	server.HandleFunc("POST /api/register", iz.Bind(api.SaveUserHandler))  // Create User
	server.HandleFunc("POST /api/login", iz.Bind(api.LoginUserHandler))    // Login User
	server.HandleFunc("GET /api/logout", iz.Bind(api.LogoutUserHandler))   // Logout User
	server.HandleFunc("GET /api/download-user-data", api.DownloadUserData) // Download User Data
	server.HandleFunc("GET /api/check-token", iz.Bind(api.CheckToken))     // Check User Token
	server.HandleFunc("GET /api/account", iz.Bind(api.GetAccountInfo))     // Account Info

	// EXPENSE ENDPOINTS.
	server.HandleFunc("POST /api/expense", iz.Bind(api.SaveExpenseHandler))        // Create Expense
	server.HandleFunc("GET /api/expense", iz.Bind(api.GetFilteredExpensesHandler)) // Get Expenses with filters

	// BUDGET ENDPOINTS.
	server.HandleFunc("POST /api/budget", iz.Bind(api.SaveBudgetHandler)) // Create Budget
	server.HandleFunc("GET /api/budget", iz.Bind(api.GetBudgetsHandler))  // Get Budgets

	// STATISTICS ENDPOINTS.
	server.HandleFunc("GET /api/statistics/expense", iz.Bind(api.GetExpenseStatsHandler)) // Totals per category
	server.HandleFunc("GET /api/statistics/budget", iz.Bind(api.GetBudgetStatsHandler))   // Budget usage per category

	server.Handle("GET /metrics", promhttp.Handler())

	return withTraceID(withMetrics(server))
}

func withTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := uuid.New().String()
		w.Header().Set(TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(contextutil.WithTraceID(r.Context(), traceID)))
	})
}

func errorResponse(err error) iz.Responder {
	return iz.Respond().Status(httpStatusFromError(err)).Text(appErrors.MessageOf(err))
}

// authorize resolves the Authorization header to a username.
func (api *Api) authorize(ctx context.Context, header http.Header) (string, error) {
	token := header.Get("Authorization")
	if token == "" {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Authorization header is required.",
		}
	}
	return api.Service.CheckSession(ctx, token)
}

func authFailed(err error) iz.Responder {
	msg := fmt.Sprintf("authorization failed: %s", appErrors.MessageOf(err))
	return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
}

func (api *Api) SaveUserHandler(r *iz.Request) iz.Responder {
	var newUserReq SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&newUserReq); err != nil {
		msg := fmt.Sprintf("invalid request body: %s", err.Error())
		return iz.Respond().Status(400).Text(msg)
	}

	newUser := auth.NewUser{
		UserName:      newUserReq.UserName,
		PasswordPlain: newUserReq.Password,
	}

	token, err := api.Service.SaveUser(r.Context(), newUser)
	if err != nil {
		msg := fmt.Sprintf("registration failed: %s", appErrors.MessageOf(err))
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	registrationsTotal.Inc()

	resp := UserCreatedResponse{
		Message: "Registration Completed",
		Token:   token,
	}
	return iz.Respond().Status(201).JSON(resp)
}

func (api *Api) LoginUserHandler(r *iz.Request) iz.Responder {
	var loginRequest UserLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		msg := "invalid request body"
		return iz.Respond().Status(400).Text(msg)
	}

	credentials := auth.UserCredentialsPure{
		UserName:      loginRequest.UserName,
		PasswordPlain: loginRequest.Password,
	}

	response := LoginResponse{}

	token, err := api.Service.GenerateSession(r.Context(), credentials)
	if err != nil {
		loginsTotal.WithLabelValues("false").Inc()
		response.Message = appErrors.MessageOf(err)
		return iz.Respond().Status(httpStatusFromError(err)).JSON(response)
	}
	loginsTotal.WithLabelValues("true").Inc()

	response.Message = "You've logged in successfully!"
	response.Token = token
	return iz.Respond().Status(200).JSON(response)
}

func (api *Api) LogoutUserHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	if err := api.Service.LogoutUser(r.Context(), username, r.Header.Get("Authorization")); err != nil {
		msg := fmt.Sprintf("logout failed: %s", appErrors.MessageOf(err))
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	msg := "Logout successful."
	return iz.Respond().Status(200).Text(msg)
}

func (api *Api) CheckToken(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}
	return iz.Respond().Status(200).JSON(CheckTokenResponse{UserName: username, Valid: true})
}

func (api *Api) GetAccountInfo(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	info, err := api.Service.GetAccountInfo(r.Context(), username)
	if err != nil {
		return errorResponse(err)
	}

	return iz.Respond().Status(200).JSON(AccountInfoResponse{
		UserName:     info.UserName,
		JoinedAt:     info.JoinedAt.Format(timestampLayout),
		ExpenseCount: info.ExpenseCount,
		BudgetCount:  info.BudgetCount,
	})
}

// DownloadUserData is a plain handler because it sets attachment headers.
func (api *Api) DownloadUserData(w http.ResponseWriter, r *http.Request) {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		msg := fmt.Sprintf("authorization failed: %s", appErrors.MessageOf(err))
		http.Error(w, msg, httpStatusFromError(err))
		return
	}

	data, err := api.Service.GetUserData(r.Context(), username)
	if err != nil {
		http.Error(w, appErrors.MessageOf(err), httpStatusFromError(err))
		return
	}

	resp := UserDataResponse{
		UserName: username,
		Expenses: ExpensesToHttp(data.Expenses),
		Budgets:  BudgetsToHttp(data.Budgets),
	}
	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to encode user data: %v", contextutil.TraceIDFromContext(r.Context()), err)
		http.Error(w, "failed to prepare user data", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_data.json", username))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (api *Api) SaveExpenseHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	var newExpenseReq CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&newExpenseReq); err != nil {
		msg := fmt.Sprintf("failed to parse save expense request: %v", err)
		return iz.Respond().Status(400).Text(msg)
	}

	expense, err := api.Service.SaveExpense(r.Context(), username, budget.ExpenseRequest{
		Amount:   newExpenseReq.Amount,
		Category: newExpenseReq.Category,
		Date:     newExpenseReq.Date,
	})
	if err != nil {
		msg := fmt.Sprintf("failed to create expense: %s", appErrors.MessageOf(err))
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	recordsCreatedTotal.WithLabelValues("expense").Inc()

	return iz.Respond().Status(201).JSON(ExpenseToHttp(expense))
}

func (api *Api) GetFilteredExpensesHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	filters, err := ExpenseListCheckParams(r.URL.Query())
	if err != nil {
		msg := fmt.Sprintf("invalid filter parameters: %s", appErrors.MessageOf(err))
		return iz.Respond().Status(400).Text(msg)
	}

	expenses, err := api.Service.GetExpenses(r.Context(), username, filters)
	if err != nil {
		msg := fmt.Sprintf("failed to get expenses: %s", appErrors.MessageOf(err))
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}

	return iz.Respond().Status(200).JSON(ListExpenseResponse{Expenses: ExpensesToHttp(expenses)})
}

func (api *Api) SaveBudgetHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	var newBudgetReq CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&newBudgetReq); err != nil {
		msg := fmt.Sprintf("failed to parse save budget request: %v", err)
		return iz.Respond().Status(400).Text(msg)
	}

	b, err := api.Service.SaveBudget(r.Context(), username, budget.BudgetRequest{
		Category:     newBudgetReq.Category,
		BudgetAmount: newBudgetReq.BudgetAmount,
	})
	if err != nil {
		msg := fmt.Sprintf("failed to create budget: %s", appErrors.MessageOf(err))
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	recordsCreatedTotal.WithLabelValues("budget").Inc()

	return iz.Respond().Status(201).JSON(BudgetToHttp(b))
}

func (api *Api) GetBudgetsHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	budgets, err := api.Service.GetBudgets(r.Context(), username)
	if err != nil {
		return errorResponse(err)
	}

	return iz.Respond().Status(200).JSON(ListBudgetResponse{Budgets: BudgetsToHttp(budgets)})
}

func (api *Api) GetExpenseStatsHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	summary, err := api.Service.GetExpenseSummary(r.Context(), username, r.URL.Query().Get("period"))
	if err != nil {
		return errorResponse(err)
	}

	return iz.Respond().Status(200).JSON(SummaryToHttp(summary))
}

func (api *Api) GetBudgetStatsHandler(r *iz.Request) iz.Responder {
	username, err := api.authorize(r.Context(), r.Header)
	if err != nil {
		return authFailed(err)
	}

	statuses, err := api.Service.GetBudgetStatus(r.Context(), username)
	if err != nil {
		return errorResponse(err)
	}

	return iz.Respond().Status(200).JSON(BudgetStatusToHttp(statuses))
}
