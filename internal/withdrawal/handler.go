package withdrawal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/frahmantamala/pix-gateway/internal"
	withdrawalmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/pix-gateway/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	service ServiceAPI
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// CreateWithdrawal reserves funds and submits the transfer to the provider.
// Replays of the same idempotency key return the existing withdrawal.
func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	withdrawal, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// A replayed key may return a withdrawal that is already past submission.
	if withdrawal.Status == withdrawalmodel.StatusRequested && withdrawal.TransferaTxID == nil {
		submitted, submitErr := h.service.Submit(r.Context(), withdrawal.ID)
		if submitErr != nil {
			h.logger.Error("withdrawal submission failed", "error", submitErr, "withdrawal_id", withdrawal.ID)
		}
		if submitted != nil {
			withdrawal = submitted
		}
	}

	h.WriteJSON(w, http.StatusCreated, NewWithdrawalResponse(withdrawal))
}

// GetWithdrawal returns a withdrawal by id.
func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}

	withdrawal, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewWithdrawalResponse(withdrawal))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		status, resp := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, resp)
		return
	}
	h.logger.Error("withdrawal request failed", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
