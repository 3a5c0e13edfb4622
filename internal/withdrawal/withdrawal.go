package withdrawal

import (
	"context"
	"time"

	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
	pixkeymodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/pixkey"
	withdrawalmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/pix-gateway/internal/ledger"
	"github.com/frahmantamala/pix-gateway/internal/provider"
)

// Repository is the withdrawal persistence boundary. The compound operations
// are transactional: a withdrawal is never observable without its ledger
// pair, and a finalization never lands without its entries settling.
type Repository interface {
	Create(w *withdrawalmodel.Withdrawal, entries []*ledgermodel.Entry) error
	GetByID(id int64) (*withdrawalmodel.Withdrawal, error)
	GetByIdempotencyKey(userID int64, idempotencyKey string) (*withdrawalmodel.Withdrawal, error)
	GetByTransferID(transferID string) (*withdrawalmodel.Withdrawal, error)
	ListStuck(statuses []string, olderThan time.Time, limit int) ([]withdrawalmodel.Withdrawal, error)

	// MarkProcessing is conditional on status=REQUESTED; false means another
	// writer already advanced this withdrawal.
	MarkProcessing(id int64, transferID string) (bool, error)

	// FinalizeWithEntries conditionally moves the withdrawal into a terminal
	// status and settles its PENDING ledger entries to entryStatus in the
	// same transaction. False means the withdrawal was already terminal.
	FinalizeWithEntries(id int64, fromStatuses []string, toStatus, entryStatus string, failureReason *string, processedAt time.Time) (bool, error)
}

type PixKeyRepository interface {
	GetByUserID(userID int64) (*pixkeymodel.PixKey, error)
}

// ProviderAPI is the outbound transfer surface of the banking provider.
type ProviderAPI interface {
	CreateBatch(ctx context.Context, name string) (*provider.Batch, error)
	CreateTransfer(ctx context.Context, req provider.CreateTransferRequest) (*provider.Transfer, error)
	GetTransfer(ctx context.Context, transferID string) (*provider.Transfer, error)
	GetTransferByIntegrationID(ctx context.Context, integrationID string) (*provider.Transfer, error)
}

type BalanceReader interface {
	GetBalance(userID int64) (ledger.Balance, error)
}

type ServiceAPI interface {
	Create(ctx context.Context, req CreateWithdrawalRequest) (*withdrawalmodel.Withdrawal, error)
	Submit(ctx context.Context, withdrawalID int64) (*withdrawalmodel.Withdrawal, error)
	HandleProviderStatus(ctx context.Context, transferID, providerStatus, statusReason string) error
	GetByID(ctx context.Context, id int64) (*withdrawalmodel.Withdrawal, error)
	ReconcileStale(ctx context.Context) error
}
