package charge

import (
	"github.com/shopspring/decimal"
)

// CashInEvent is the reconciliation-relevant projection of a provider CashIn
// webhook. Value is in reais; real payloads are inconsistent about which of
// Txid / IntegrationID is populated.
type CashInEvent struct {
	EventID       string          `json:"id"`
	Txid          string          `json:"txid"`
	IntegrationID string          `json:"integration_id"`
	Value         decimal.Decimal `json:"value"`
}

// AmountCents converts the provider's decimal reais value to integer cents,
// rounding half away from zero.
func (e CashInEvent) AmountCents() int64 {
	return e.Value.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
