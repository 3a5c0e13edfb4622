package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

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

// GetBalance returns posted and available balance for a user.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	balance, err := h.service.GetBalance(userID)
	if err != nil {
		h.logger.Error("failed to compute balance", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "failed to compute balance")
		return
	}

	h.WriteJSON(w, http.StatusOK, balance)
}
