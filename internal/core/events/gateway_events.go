package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentReceived     = "charge.payment_received"
	EventTypeWithdrawalCompleted = "withdrawal.completed"
	EventTypeWithdrawalFailed    = "withdrawal.failed"
)

type PaymentReceivedEvent struct {
	BaseEvent
	ChargeID    int64  `json:"charge_id"`
	MerchantID  int64  `json:"merchant_id"`
	AmountCents int64  `json:"amount_cents"`
	PixTxid     string `json:"pix_txid"`
}

func NewPaymentReceivedEvent(chargeID, merchantID, amountCents int64, pixTxid string) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentReceived,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"charge_id":    chargeID,
				"merchant_id":  merchantID,
				"amount_cents": amountCents,
				"pix_txid":     pixTxid,
			},
		},
		ChargeID:    chargeID,
		MerchantID:  merchantID,
		AmountCents: amountCents,
		PixTxid:     pixTxid,
	}
}

type WithdrawalCompletedEvent struct {
	BaseEvent
	WithdrawalID  int64  `json:"withdrawal_id"`
	UserID        int64  `json:"user_id"`
	AmountCents   int64  `json:"amount_cents"`
	TransferaTxID string `json:"transfera_tx_id"`
}

func NewWithdrawalCompletedEvent(withdrawalID, userID, amountCents int64, transferaTxID string) *WithdrawalCompletedEvent {
	return &WithdrawalCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeWithdrawalCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"withdrawal_id":   withdrawalID,
				"user_id":         userID,
				"amount_cents":    amountCents,
				"transfera_tx_id": transferaTxID,
			},
		},
		WithdrawalID:  withdrawalID,
		UserID:        userID,
		AmountCents:   amountCents,
		TransferaTxID: transferaTxID,
	}
}

type WithdrawalFailedEvent struct {
	BaseEvent
	WithdrawalID  int64  `json:"withdrawal_id"`
	UserID        int64  `json:"user_id"`
	AmountCents   int64  `json:"amount_cents"`
	FailureReason string `json:"failure_reason"`
}

func NewWithdrawalFailedEvent(withdrawalID, userID, amountCents int64, failureReason string) *WithdrawalFailedEvent {
	return &WithdrawalFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeWithdrawalFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"withdrawal_id":  withdrawalID,
				"user_id":        userID,
				"amount_cents":   amountCents,
				"failure_reason": failureReason,
			},
		},
		WithdrawalID:  withdrawalID,
		UserID:        userID,
		AmountCents:   amountCents,
		FailureReason: failureReason,
	}
}
