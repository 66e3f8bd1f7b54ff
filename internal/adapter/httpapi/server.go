package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/benefitflow/backend/internal/domain"
	"github.com/benefitflow/backend/internal/usecase/transfer"
)

// Server exposes the transfer engine over REST. It parses requests,
// delegates to the engine, and maps the engine's error taxonomy to
// status codes; no business logic lives here.
type Server struct {
	engine *transfer.Engine
}

// NewServer creates a new HTTP server adapter.
func NewServer(engine *transfer.Engine) *Server {
	return &Server{engine: engine}
}

// Router builds the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/benefits", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Post("/transfer", s.handleTransfer)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/balance", s.handleBalance)
		r.Get("/{id}/version", s.handleVersion)
		r.Get("/{id}/version/conflict", s.handleVersionConflict)
		r.Get("/{id}/can-transfer", s.handleCanTransfer)
	})

	return r
}

type benefitResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Balance     string `json:"balance"`
	Active      bool   `json:"active"`
	Version     int64  `json:"version"`
}

func toBenefitResponse(b *domain.Benefit) benefitResponse {
	return benefitResponse{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Balance:     b.Balance.StringFixed(2),
		Active:      b.Active,
		Version:     b.Version,
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		benefits []*domain.Benefit
		err      error
	)
	if r.URL.Query().Get("active") == "true" {
		benefits, err = s.engine.ListActiveBenefits(r.Context())
	} else {
		benefits, err = s.engine.ListBenefits(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	result := make([]benefitResponse, 0, len(benefits))
	for _, b := range benefits {
		result = append(result, toBenefitResponse(b))
	}
	writeJSON(w, http.StatusOK, result)
}

type createBenefitRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Balance     decimal.Decimal `json:"balance"`
	Active      *bool           `json:"active,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBenefitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewInvalidArgument("invalid request body: %v", err))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	benefit, err := s.engine.CreateBenefit(r.Context(), &domain.Benefit{
		Name:        req.Name,
		Description: req.Description,
		Balance:     req.Balance,
		Active:      active,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBenefitResponse(benefit))
}

type transferRequest struct {
	FromID   int64           `json:"from_id"`
	ToID     int64           `json:"to_id"`
	Amount   decimal.Decimal `json:"amount"`
	Strategy string          `json:"strategy,omitempty"`
}

type transferResponse struct {
	TransferID  string `json:"transfer_id"`
	FromID      int64  `json:"from_id"`
	ToID        int64  `json:"to_id"`
	Amount      string `json:"amount"`
	Strategy    string `json:"strategy"`
	FromVersion int64  `json:"from_version"`
	ToVersion   int64  `json:"to_version"`
	CompletedAt string `json:"completed_at"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewInvalidArgument("invalid request body: %v", err))
		return
	}

	outcome, err := s.engine.ExecuteTransfer(r.Context(), domain.TransferRequest{
		FromID:   req.FromID,
		ToID:     req.ToID,
		Amount:   req.Amount,
		Strategy: domain.Strategy(req.Strategy),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		TransferID:  outcome.TransferID.String(),
		FromID:      outcome.FromID,
		ToID:        outcome.ToID,
		Amount:      outcome.Amount.StringFixed(2),
		Strategy:    string(outcome.Strategy),
		FromVersion: outcome.FromVersion,
		ToVersion:   outcome.ToVersion,
		CompletedAt: outcome.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	benefit, err := s.engine.GetBenefit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBenefitResponse(benefit))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	balance, err := s.engine.GetBalance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "balance": balance.StringFixed(2)})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	version, err := s.engine.GetVersion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "version": version})
}

func (s *Server) handleVersionConflict(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	supplied, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		writeError(w, domain.NewInvalidArgument("invalid version parameter"))
		return
	}

	conflict, err := s.engine.HasVersionConflict(r.Context(), id, supplied)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "conflict": conflict})
}

func (s *Server) handleCanTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, domain.NewInvalidArgument("invalid amount parameter"))
		return
	}

	can, err := s.engine.CanTransfer(r.Context(), id, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "can_transfer": can})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, domain.NewInvalidArgument("invalid benefit id"))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the engine's error taxonomy onto HTTP status codes:
// bad input, business conflict, and concurrency conflict each get a
// distinct category.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)

	var status int
	switch kind {
	case domain.KindInvalidArgument:
		status = http.StatusBadRequest
	case domain.KindBusinessRuleViolation:
		status = http.StatusUnprocessableEntity
	case domain.KindConcurrencyConflict, domain.KindConcurrencyExhausted:
		status = http.StatusConflict
	case domain.KindInterrupted:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
