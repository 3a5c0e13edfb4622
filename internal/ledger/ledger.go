package ledger

import (
	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
)

// Balance is the result of folding a user's ledger entries. Available is
// always <= Posted: funds held by pending withdrawal debits are committed to
// an in-flight payout and must not be spendable again.
type Balance struct {
	PostedCents    int64 `json:"posted_cents"`
	AvailableCents int64 `json:"available_cents"`
}

// CalculateBalance is a pure function over ledger entries.
//
// posted  = sum(POSTED credits) - sum(POSTED debits)
// available = posted - sum(PENDING withdrawal-type debits)
//
// Only withdrawal-type pending entries reduce availability; a pending credit
// would not, though the model never produces one since charge credits post
// atomically.
func CalculateBalance(entries []ledgermodel.Entry) Balance {
	var posted, pendingHolds int64

	for i := range entries {
		e := &entries[i]
		switch e.Status {
		case ledgermodel.StatusPosted:
			if e.IsCredit {
				posted += e.AmountCents
			} else {
				posted -= e.AmountCents
			}
		case ledgermodel.StatusPending:
			if e.IsWithdrawalHold() {
				pendingHolds += e.AmountCents
			}
		}
	}

	return Balance{
		PostedCents:    posted,
		AvailableCents: posted - pendingHolds,
	}
}

// Repository is the ledger persistence boundary. Entries are append-only;
// UpdateStatus only moves PENDING rows, making terminal transitions no-ops
// when raced.
type Repository interface {
	CreateAll(entries []*ledgermodel.Entry) error
	UpdateStatusByReference(referenceType string, referenceID int64, fromStatus, toStatus string) (int64, error)
	GetByUserID(userID int64) ([]ledgermodel.Entry, error)
	GetByReference(referenceType string, referenceID int64) ([]ledgermodel.Entry, error)
}

// ServiceAPI is what other components see of the ledger engine.
type ServiceAPI interface {
	AppendEntries(entries []*ledgermodel.Entry) error
	TransitionStatus(referenceType string, referenceID int64, toStatus string) (int64, error)
	GetBalance(userID int64) (Balance, error)
	GetEntriesByReference(referenceType string, referenceID int64) ([]ledgermodel.Entry, error)
}
