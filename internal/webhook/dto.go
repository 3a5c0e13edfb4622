package webhook

import (
	"encoding/json"
	"time"
)

const (
	ObjectCashIn   = "CashIn"
	ObjectTransfer = "Transfer"
)

// ProviderEvent is the envelope every Transfeera webhook shares; Data is
// decoded per Object kind.
type ProviderEvent struct {
	ID     string          `json:"id"`
	Object string          `json:"object"`
	Date   time.Time       `json:"date"`
	Data   json.RawMessage `json:"data"`
}

// TransferEventData describes a transfer outcome notification.
type TransferEventData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	IntegrationID string `json:"integration_id"`
	StatusReason  string `json:"status_description"`
}

type AckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
