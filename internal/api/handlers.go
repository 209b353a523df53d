package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"secretmessag.es/config"
	"secretmessag.es/internal/message"
	"secretmessag.es/internal/models"
	"secretmessag.es/internal/store"
	"secretmessag.es/web"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc    *message.Service
	config *config.Config
	logger *slog.Logger
}

func NewHandler(svc *message.Service, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
}

type CreateRequest struct {
	Content       string `json:"content"`
	Password      string `json:"password"`
	OneTime       bool   `json:"one_time"`
	ExpireMinutes int    `json:"expire_minutes,omitempty"`
}

type CreateResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type MessageResponse struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	OneTime   bool       `json:"one_time"`
}

type DecryptRequest struct {
	Password string `json:"password"`
}

type DecryptResponse struct {
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	OneTime   bool       `json:"one_time"`
}

type HousekeepingResponse struct {
	Deleted int64 `json:"deleted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The lifecycle core validates nothing; bounds are enforced here.
	if msg := h.validateCreate(&req); msg != "" {
		h.error(w, http.StatusBadRequest, msg)
		return
	}

	id, err := h.svc.Create(r.Context(), req.Content, req.OneTime, req.ExpireMinutes, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			// Both the fresh id and its retry collided; a third try is the
			// client's call.
			h.error(w, http.StatusServiceUnavailable, "could not save your message, please try again")
			return
		}
		h.logger.Error("message creation failed", "error", err)
		h.error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	h.json(w, http.StatusCreated, CreateResponse{
		ID:  id,
		URL: h.config.Server.BaseURL + "/m/" + id,
	})
}

func (h *Handler) validateCreate(req *CreateRequest) string {
	length := utf8.RuneCountInString(req.Content)
	if length < h.config.Messages.MinContentLength {
		return "the message needs at least two characters"
	}
	if length > h.config.Messages.MaxContentLength {
		return "the message can't be longer than 500 characters"
	}
	if utf8.RuneCountInString(req.Password) < h.config.Messages.MinPasswordLength {
		return "the password needs at least four characters"
	}
	if req.ExpireMinutes != 0 && !h.config.ValidExpiration(req.ExpireMinutes) {
		return "invalid expiration time"
	}
	return ""
}

// GetMessage backs the "enter password" page. It never decrypts and never
// consumes the message.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := h.svc.FetchForView(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.json(w, http.StatusOK, MessageResponse{
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
		ExpiresAt: msg.ExpiresAt,
		OneTime:   msg.IsOneTime,
	})
}

func (h *Handler) DecryptMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DecryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		h.error(w, http.StatusBadRequest, "provide a password")
		return
	}

	result, err := h.svc.AttemptDecrypt(r.Context(), id, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.json(w, http.StatusOK, DecryptResponse{
		Content:   result.Content,
		CreatedAt: result.CreatedAt,
		ExpiresAt: result.ExpiresAt,
		OneTime:   result.IsOneTime,
	})
}

// Housekeeping triggers the sweep. The route expects the shared cron secret
// as a bearer token and stays disabled while no secret is configured.
func (h *Handler) Housekeeping(w http.ResponseWriter, r *http.Request) {
	secret := h.config.Housekeeping.Secret
	if secret == "" {
		h.error(w, http.StatusNotFound, "not found")
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte("Bearer "+secret)) != 1 {
		h.error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := h.svc.Housekeeping(r.Context())
	if err != nil {
		h.logger.Error("housekeeping failed", "error", err)
		h.error(w, http.StatusInternalServerError, "housekeeping failed")
		return
	}

	h.json(w, http.StatusOK, HousekeepingResponse{Deleted: deleted})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats lookup failed", "error", err)
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.json(w, http.StatusOK, map[string]int64{
		"one_time": stats[models.CounterOneTime],
		"expiring": stats[models.CounterExpiring],
		"standard": stats[models.CounterStandard],
		"all":      stats[models.CounterAll],
	})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) ViewPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "view.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, msg string) {
	h.json(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.error(w, http.StatusNotFound, "message not found")
	case errors.Is(err, message.ErrIncorrectPassword):
		h.error(w, http.StatusForbidden, "incorrect password")
	default:
		h.logger.Error("request failed", "error", err)
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
