package provider

import (
	"errors"
)

// Transfer statuses reported by Transfeera. FALHA is deprecated in favor of
// DEVOLVIDO but still appears on old accounts.
const (
	TransferStatusCreated  = "CRIADA"
	TransferStatusFinished = "FINALIZADO"
	TransferStatusReturned = "DEVOLVIDO"
	TransferStatusFailed   = "FALHA"
)

type Batch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateBatchRequest struct {
	Name string `json:"name"`
}

type BankAccount struct {
	PixKey         string `json:"pix_key"`
	PixKeyType     string `json:"pix_key_type"`
	PixDescription string `json:"pix_description,omitempty"`
}

type CreateTransferRequest struct {
	BatchID       string      `json:"-"`
	Value         float64     `json:"value"`
	IntegrationID string      `json:"integration_id"`
	Destination   BankAccount `json:"destination_bank_account"`
}

func (r *CreateTransferRequest) Validate() error {
	if r.BatchID == "" {
		return errors.New("batch_id is required")
	}
	if r.Value <= 0 {
		return errors.New("value must be greater than 0")
	}
	if r.IntegrationID == "" {
		return errors.New("integration_id is required")
	}
	if r.Destination.PixKey == "" || r.Destination.PixKeyType == "" {
		return errors.New("destination pix key and type are required")
	}
	return nil
}

type Transfer struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Value         float64 `json:"value"`
	IntegrationID string  `json:"integration_id"`
	StatusReason  string  `json:"status_description,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ErrOutcomeUnknown signals that a transfer submission timed out after the
// request may have reached the provider: the transfer may or may not exist,
// so the caller must not guess and must wait for the webhook or reconcile
// via GetTransferByIntegrationID.
var ErrOutcomeUnknown = errors.New("provider call timed out with unknown outcome")
