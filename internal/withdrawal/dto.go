package withdrawal

import (
	"time"

	errors "github.com/frahmantamala/pix-gateway/internal"
	"github.com/frahmantamala/pix-gateway/internal/core/common/validation"
	withdrawalmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/withdrawal"
)

type CreateWithdrawalRequest struct {
	UserID         int64  `json:"user_id"`
	AmountCents    int64  `json:"amount_cents"`
	FeeCents       int64  `json:"fee_cents"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (r *CreateWithdrawalRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("user_id", r.UserID).Required()
	validator.Field("amount_cents", r.AmountCents).Required().MinInt(1, errors.ErrCodeInvalidAmount)
	validator.Field("idempotency_key", r.IdempotencyKey).Required().MaxLength(128)

	if r.FeeCents < 0 {
		return errors.NewValidationFieldError("fee_cents", "fee_cents must not be negative", errors.ErrCodeInvalidAmount)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type WithdrawalResponse struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	AmountCents       int64      `json:"amount_cents"`
	FeeCents          int64      `json:"fee_cents"`
	TotalDebitedCents int64      `json:"total_debited_cents"`
	Status            string     `json:"status"`
	TransferaTxID     *string    `json:"transfera_tx_id,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func NewWithdrawalResponse(w *withdrawalmodel.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:                w.ID,
		UserID:            w.UserID,
		AmountCents:       w.AmountCents,
		FeeCents:          w.FeeCents,
		TotalDebitedCents: w.TotalDebitedCents,
		Status:            w.Status,
		TransferaTxID:     w.TransferaTxID,
		FailureReason:     w.FailureReason,
		ProcessedAt:       w.ProcessedAt,
		CreatedAt:         w.CreatedAt,
	}
}
