package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"becoming/internal/becoming/models"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/events"
	"becoming/pkg/platform/httputil"
	authmw "becoming/pkg/platform/middleware/auth"
	request "becoming/pkg/platform/middleware/request"
	"becoming/pkg/requestcontext"
)

// Service defines the record store operations exposed over HTTP.
type Service interface {
	Mint(ctx context.Context) error
	AddMilestone(ctx context.Context, req *models.AddMilestoneRequest) (uint32, error)
	Tip(ctx context.Context, recipient id.AccountID) error
	Transfer(ctx context.Context) error
	AvatarStage(ctx context.Context) (models.Stage, error)
	Milestones(ctx context.Context) ([]models.Milestone, error)
	Owner(ctx context.Context) (*id.AccountID, error)
	Profile(ctx context.Context) (*models.Profile, error)
	ExportData(ctx context.Context) (*models.ExportData, error)
	UpdateAdmin(ctx context.Context, next id.AccountID) error
	Notifications(ctx context.Context, account id.AccountID) ([]events.Event, error)
}

// Handler serves the record store API.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
	readLimit    func(http.Handler) http.Handler
	writeLimit   func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithReadLimit wraps the public reads in mw.
func WithReadLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.readLimit = mw
	}
}

// WithWriteLimit wraps the authenticated calls in mw, after authentication.
func WithWriteLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeLimit = mw
	}
}

// New creates a new Handler.
func New(service Service, logger *slog.Logger, jwtValidator authmw.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public reads and the authenticated calls on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.readLimit != nil {
				r.Use(h.readLimit)
			}
			r.Get("/milestones", h.handleGetMilestones)
			r.Get("/avatar/stage", h.handleGetAvatarStage)
			r.Get("/owner", h.handleGetOwner)
			r.Get("/profile", h.handleGetProfile)
			r.Get("/accounts/{account}/notifications", h.handleGetNotifications)
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
			if h.writeLimit != nil {
				r.Use(h.writeLimit)
			}
			r.Post("/mint", h.handleMint)
			r.Post("/milestones", h.handleAddMilestone)
			r.Post("/tip", h.handleTip)
			r.Post("/transfer", h.handleTransfer)
			r.Get("/admin/export", h.handleExportData)
			r.Put("/admin", h.handleUpdateAdmin)
		})
	})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Mint(ctx); err != nil {
		h.writeError(ctx, w, err, "mint failed")
		return
	}
	caller, _ := requestcontext.Caller(ctx)
	httputil.WriteJSON(w, http.StatusCreated, MintResponse{Owner: caller})
}

func (h *Handler) handleAddMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.AddMilestoneRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err, "invalid add milestone request")
		return
	}

	milestoneID, err := h.service.AddMilestone(ctx, &req)
	if err != nil {
		h.writeError(ctx, w, err, "add milestone failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, AddMilestoneResponse{MilestoneID: milestoneID})
}

func (h *Handler) handleTip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.TipRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err, "invalid tip request")
		return
	}
	recipient, err := req.Parse()
	if err != nil {
		h.writeError(ctx, w, err, "invalid tip request")
		return
	}

	ctx = requestcontext.WithTransferredValue(ctx, req.Amount)
	if err := h.service.Tip(ctx, recipient); err != nil {
		h.writeError(ctx, w, err, "tip failed")
		return
	}
	caller, _ := requestcontext.Caller(ctx)
	httputil.WriteJSON(w, http.StatusOK, TipResponse{From: caller, To: recipient, Amount: req.Amount})
}

// handleTransfer ignores the body: the call is rejected whatever it asks for.
func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Transfer(ctx); err != nil {
		h.writeError(ctx, w, err, "transfer rejected")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMilestones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	milestones, err := h.service.Milestones(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list milestones")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MilestonesResponse{Milestones: milestones, Count: len(milestones)})
}

func (h *Handler) handleGetAvatarStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stage, err := h.service.AvatarStage(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to read avatar stage")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stage)
}

func (h *Handler) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.service.Owner(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to read owner")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{Owner: owner})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.service.Profile(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to read profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeValidation, "account must be a 32-byte hex identity"), "invalid notifications request")
		return
	}
	evs, err := h.service.Notifications(ctx, account)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list notifications")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NotificationsResponse{Account: account, Notifications: evs, Count: len(evs)})
}

func (h *Handler) handleExportData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := h.service.ExportData(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "export failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *Handler) handleUpdateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.UpdateAdminRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err, "invalid update admin request")
		return
	}
	next, err := req.Parse()
	if err != nil {
		h.writeError(ctx, w, err, "invalid update admin request")
		return
	}

	if err := h.service.UpdateAdmin(ctx, next); err != nil {
		h.writeError(ctx, w, err, "update admin failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UpdateAdminResponse{Admin: next})
}

// writeError logs rejected calls at warn and failures at error, then writes
// the error envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	attrs := []any{
		"error", err.Error(),
		"code", string(dErrors.GetCode(err)),
		"request_id", request.GetRequestID(ctx),
	}
	if dErrors.ToHTTPStatus(dErrors.GetCode(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
