package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"habittycoon/internal/auth"
	"habittycoon/internal/config"
	"habittycoon/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

var validate = validator.New()

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

// IdentityProvider creates and signs in identities.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, username string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

// Engine is the game surface the HTTP layer drives. *game.Service implements it.
type Engine interface {
	Ping(ctx context.Context) error
	EnsureProfile(ctx context.Context, userID, email, username, timezone string) error
	SetTimezone(ctx context.Context, userID, timezone string) error
	Dashboard(ctx context.Context, userID string) (game.Dashboard, error)

	ListBusinessTypes(ctx context.Context) ([]game.BusinessType, error)
	ListHabitBusinesses(ctx context.Context, userID string) ([]game.HabitBusiness, error)
	TodaysHabits(ctx context.Context, userID string) ([]game.TodayHabit, error)
	CreateHabitBusiness(ctx context.Context, in game.CreateHabitInput) (game.HabitBusiness, error)
	UpdateHabitBusiness(ctx context.Context, in game.UpdateHabitInput) (game.HabitBusiness, error)
	DeleteHabitBusiness(ctx context.Context, userID, habitID, idempotencyKey string) (game.SellBusinessResult, error)
	CalculateUpgradeOptions(ctx context.Context, userID, habitID string) (game.UpgradeCalculation, error)
	UpgradeBusiness(ctx context.Context, in game.UpgradeInput) (game.UpgradeResult, error)

	CompleteHabit(ctx context.Context, in game.CompleteHabitInput) (game.CompleteResult, error)
	UndoHabitCompletion(ctx context.Context, in game.UndoHabitInput) (game.UndoResult, error)
	CompletionHistory(ctx context.Context, userID, habitID string, days int) (iter.Seq[game.HistoryDay], error)
	CleanupDuplicateCompletions(ctx context.Context, userID, habitID string) (game.DuplicateCleanupPlan, error)

	ListStocks(ctx context.Context, userID string) ([]game.BusinessStock, error)
	PurchaseStockShares(ctx context.Context, in game.TradeInput) (game.PurchaseResult, error)
	SellStockShares(ctx context.Context, in game.TradeInput) (game.SaleResult, error)
	Holdings(ctx context.Context, userID string) ([]game.StockHolding, error)
	TodaysActualEarnings(ctx context.Context, userID string) (int64, error)
	TodaysStockDividends(ctx context.Context, userID string) (int64, error)
	DividendDebugInfo(ctx context.Context, userID string) (game.DividendDebugInfo, error)
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	idp      IdentityProvider
	verifier auth.Verifier
	game     Engine
	limiter  *RateLimiter
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, idp IdentityProvider, verifier auth.Verifier, engine Engine, limiter *RateLimiter) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		idp:      idp,
		verifier: verifier,
		game:     engine,
		limiter:  limiter,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := s.game.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.limiter.Limit)

			r.Get("/dashboard", s.handleDashboard)
			r.Patch("/profile", s.handleUpdateProfile)
			r.Get("/business-types", s.handleBusinessTypes)

			r.Get("/habits", s.handleHabitsList)
			r.Get("/habits/today", s.handleHabitsToday)
			r.Post("/habits", s.handleCreateHabit)
			r.Patch("/habits/{id}", s.handleUpdateHabit)
			r.Delete("/habits/{id}", s.handleDeleteHabit)
			r.Post("/habits/{id}/complete", s.handleCompleteHabit)
			r.Post("/habits/{id}/undo", s.handleUndoHabit)
			r.Get("/habits/{id}/history", s.handleHabitHistory)
			r.Get("/habits/{id}/upgrades", s.handleUpgradeOptions)
			r.Post("/habits/{id}/upgrade", s.handleUpgrade)
			r.Post("/habits/{id}/cleanup", s.handleCleanupDuplicates)

			r.Get("/stocks", s.handleStocksList)
			r.Post("/stocks/{id}/buy", s.handleBuyStock)
			r.Post("/stocks/{id}/sell", s.handleSellStock)
			r.Get("/holdings", s.handleHoldings)

			r.Get("/earnings/today", s.handleEarningsToday)
			r.Get("/dividends/today", s.handleDividendsToday)
			r.Get("/debug/dividends", s.handleDividendDebug)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.verifier.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

// authed returns the caller or writes a 401.
func authed(w http.ResponseWriter, r *http.Request) (UserContext, bool) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return user, false
	}
	return user, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Username string `json:"username" validate:"omitempty,min=3,max=24"`
		Timezone string `json:"timezone"`
	}
	if !s.decodeValid(w, r, &in) {
		return
	}
	session, err := s.idp.SignUp(r.Context(), strings.TrimSpace(in.Email), in.Password, strings.TrimSpace(in.Username))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session.User.ID != "" {
		if err := s.game.EnsureProfile(r.Context(), session.User.ID, session.User.Email, in.Username, in.Timezone); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Timezone string `json:"timezone"`
	}
	if !s.decodeValid(w, r, &in) {
		return
	}
	session, err := s.idp.Login(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.game.EnsureProfile(r.Context(), session.User.ID, session.User.Email, "", in.Timezone); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	if err := s.game.EnsureProfile(r.Context(), user.UserID, user.Email, "", ""); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.game.Dashboard(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in struct {
		Timezone string `json:"timezone" validate:"required"`
	}
	if !s.decodeValid(w, r, &in) {
		return
	}
	if err := s.game.SetTimezone(r.Context(), user.UserID, strings.TrimSpace(in.Timezone)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timezone": in.Timezone})
}

func (s *Server) handleBusinessTypes(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.ListBusinessTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"business_types": out})
}

func (s *Server) handleHabitsList(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.ListHabitBusinesses(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": out})
}

func (s *Server) handleHabitsToday(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.TodaysHabits(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": out})
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in struct {
		BusinessTypeID   int64  `json:"business_type_id" validate:"required,gt=0"`
		BusinessName     string `json:"business_name" validate:"required,max=48"`
		HabitDescription string `json:"habit_description" validate:"max=280"`
		Frequency        string `json:"frequency" validate:"required,oneof=daily weekly"`
		GoalValue        int    `json:"goal_value" validate:"required,min=1,max=99"`
	}
	if !s.decodeValid(w, r, &in) {
		return
	}
	out, err := s.game.CreateHabitBusiness(r.Context(), game.CreateHabitInput{
		UserID:           user.UserID,
		BusinessTypeID:   in.BusinessTypeID,
		BusinessName:     in.BusinessName,
		HabitDescription: in.HabitDescription,
		Frequency:        in.Frequency,
		GoalValue:        in.GoalValue,
		IdempotencyKey:   idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in struct {
		BusinessName     *string `json:"business_name" validate:"omitempty,max=48"`
		HabitDescription *string `json:"habit_description" validate:"omitempty,max=280"`
		Frequency        *string `json:"frequency" validate:"omitempty,oneof=daily weekly"`
		GoalValue        *int    `json:"goal_value" validate:"omitempty,min=1,max=99"`
	}
	if !s.decodeValid(w, r, &in) {
		return
	}
	out, err := s.game.UpdateHabitBusiness(r.Context(), game.UpdateHabitInput{
		UserID:           user.UserID,
		HabitID:          chi.URLParam(r, "id"),
		BusinessName:     in.BusinessName,
		HabitDescription: in.HabitDescription,
		Frequency:        in.Frequency,
		GoalValue:        in.GoalValue,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.DeleteHabitBusiness(r.Context(), user.UserID, chi.URLParam(r, "id"), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompleteHabit(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in struct {
		ClientTime *time.Time `json:"client_time"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.CompleteHabit(r.Context(), game.CompleteHabitInput{
		UserID:         user.UserID,
		HabitID:        chi.URLParam(r, "id"),
		ClientTime:     in.ClientTime,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUndoHabit(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.UndoHabitCompletion(r.Context(), game.UndoHabitInput{
		UserID:         user.UserID,
		HabitID:        chi.URLParam(r, "id"),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHabitHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	days := game.DefaultHistoryDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}
	seq, err := s.game.CompletionHistory(r.Context(), user.UserID, chi.URLParam(r, "id"), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": slices.Collect(seq)})
}

func (s *Server) handleUpgradeOptions(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.CalculateUpgradeOptions(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in struct {
		NewBusinessTypeID int64  `json:"new_business_type_id" validate:"required,gt=0"`
		NewBusinessName   string `json:"new_business_name" validate:"max=48"`
		NewDescription    string `json:"new_description" validate:"max=280"`
	}
	if !s.decodeValid(w, r, &in) {
		return
	}
	out, err := s.game.UpgradeBusiness(r.Context(), game.UpgradeInput{
		UserID:            user.UserID,
		HabitID:           chi.URLParam(r, "id"),
		NewBusinessTypeID: in.NewBusinessTypeID,
		NewBusinessName:   in.NewBusinessName,
		NewDescription:    in.NewDescription,
		IdempotencyKey:    idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.CleanupDuplicateCompletions(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":     len(out.DeleteIDs),
		"kept":        out.Kept,
		"today_count": out.TodayCount,
	})
}

func (s *Server) handleStocksList(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.ListStocks(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

type tradeRequest struct {
	Shares int64 `json:"shares" validate:"required,gt=0"`
}

func (s *Server) handleBuyStock(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in tradeRequest
	if !s.decodeValid(w, r, &in) {
		return
	}
	out, err := s.game.PurchaseStockShares(r.Context(), game.TradeInput{
		UserID:         user.UserID,
		StockID:        chi.URLParam(r, "id"),
		Shares:         in.Shares,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSellStock(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	var in tradeRequest
	if !s.decodeValid(w, r, &in) {
		return
	}
	out, err := s.game.SellStockShares(r.Context(), game.TradeInput{
		UserID:         user.UserID,
		StockID:        chi.URLParam(r, "id"),
		Shares:         in.Shares,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.Holdings(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holdings": out})
}

func (s *Server) handleEarningsToday(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	total, err := s.game.TodaysActualEarnings(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"earnings_micros": total})
}

func (s *Server) handleDividendsToday(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	total, err := s.game.TodaysStockDividends(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dividends_micros": total})
}

func (s *Server) handleDividendDebug(w http.ResponseWriter, r *http.Request) {
	user, ok := authed(w, r)
	if !ok {
		return
	}
	out, err := s.game.DividendDebugInfo(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrHabitNotFound), errors.Is(err, game.ErrStockNotFound),
		errors.Is(err, game.ErrProfileNotFound), errors.Is(err, game.ErrBusinessTypeNotFound),
		errors.Is(err, game.ErrNoCompletionToday):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrAlreadyCompleted), errors.Is(err, game.ErrDuplicateIdempotency),
		errors.Is(err, game.ErrTxConflict), errors.Is(err, game.ErrHabitBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrFutureDate), errors.Is(err, game.ErrInsufficientFunds),
		errors.Is(err, game.ErrInsufficientShares), errors.Is(err, game.ErrInvalidGoalValue),
		errors.Is(err, game.ErrInvalidFrequency), errors.Is(err, game.ErrLastBusiness),
		errors.Is(err, game.ErrUpgradeUnavailable), errors.Is(err, game.ErrSelfTrade):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrStaleProfile):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeValid decodes the body and runs struct validation, writing a 400 on
// failure.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, out any) error {
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
