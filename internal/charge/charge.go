package charge

import (
	"context"
	"time"

	chargemodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/charge"
	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
)

// Repository is the charge persistence boundary. MarkPaidWithCredit performs
// the conditional PENDING->PAID update and the CHARGE_NET ledger credit in
// one transaction; it reports false when another delivery already won.
type Repository interface {
	GetByPixTxid(txid string) (*chargemodel.Charge, error)
	GetByExternalRef(externalRef string) (*chargemodel.Charge, error)
	GetByID(id int64) (*chargemodel.Charge, error)
	MarkPaidWithCredit(chargeID int64, paidAt time.Time, entry *ledgermodel.Entry) (bool, error)
}

// ServiceAPI is the reconciliation entry point consumed by the webhook path.
type ServiceAPI interface {
	ReconcileCashIn(ctx context.Context, event CashInEvent) error
}
