package webhook

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/frahmantamala/pix-gateway/internal"
	"github.com/frahmantamala/pix-gateway/internal/transport"
)

// SignatureHeader is the header Transfeera signs deliveries with.
const SignatureHeader = "Transfeera-Signature"

const defaultListLimit = 50

type Handler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// HandleProviderWebhook is the inbound delivery endpoint. 2xx stops provider
// redelivery; 4xx asks for it on signature or payload problems; 5xx is
// reserved for transient internal failure.
func (h *Handler) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err, "provider", provider)
		h.WriteError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	err = h.service.Process(r.Context(), provider, body, r.Header.Get(SignatureHeader))
	if err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok {
			status, resp := appErr.ToHTTPResponse()
			h.WriteJSON(w, status, resp)
			return
		}
		h.logger.Error("webhook processing failed", "error", err, "provider", provider)
		h.WriteError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	h.WriteJSON(w, http.StatusOK, AckResponse{
		Status:  "success",
		Message: "event processed",
	})
}

// ListAttempts exposes the delivery audit trail for diagnosing "webhook
// received but not applied" incidents.
func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	eventID := r.URL.Query().Get("event_id")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	attempts, err := h.service.ListAttempts(provider, eventID, limit)
	if err != nil {
		h.logger.Error("failed to list webhook attempts", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to list webhook attempts")
		return
	}

	h.WriteJSON(w, http.StatusOK, attempts)
}
