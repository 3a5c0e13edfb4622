package ledger

import (
	"fmt"
	"log/slog"

	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
)

type Service struct {
	repository Repository
	logger     *slog.Logger
}

func NewService(repository Repository, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		logger:     logger,
	}
}

// AppendEntries bulk-inserts entries with the status the caller assigned:
// PENDING for debits awaiting settlement, POSTED for confirmed credits.
func (s *Service) AppendEntries(entries []*ledgermodel.Entry) error {
	for _, e := range entries {
		if e.AmountCents < 0 {
			return fmt.Errorf("ledger entry amount must be a non-negative magnitude, got %d", e.AmountCents)
		}
		if e.Status != ledgermodel.StatusPending && e.Status != ledgermodel.StatusPosted {
			return fmt.Errorf("new ledger entries must be PENDING or POSTED, got %s", e.Status)
		}
	}

	if err := s.repository.CreateAll(entries); err != nil {
		s.logger.Error("failed to append ledger entries", "error", err, "count", len(entries))
		return fmt.Errorf("failed to append ledger entries: %w", err)
	}

	return nil
}

// TransitionStatus moves all PENDING entries for a reference to POSTED or
// CANCELED. Already-terminal entries are untouched; the returned count lets
// callers detect a lost race.
func (s *Service) TransitionStatus(referenceType string, referenceID int64, toStatus string) (int64, error) {
	if toStatus != ledgermodel.StatusPosted && toStatus != ledgermodel.StatusCanceled {
		return 0, fmt.Errorf("illegal ledger transition to %s", toStatus)
	}

	updated, err := s.repository.UpdateStatusByReference(referenceType, referenceID, ledgermodel.StatusPending, toStatus)
	if err != nil {
		s.logger.Error("failed to transition ledger entries",
			"error", err,
			"reference_type", referenceType,
			"reference_id", referenceID,
			"to_status", toStatus)
		return 0, fmt.Errorf("failed to transition ledger entries: %w", err)
	}

	s.logger.Info("ledger entries transitioned",
		"reference_type", referenceType,
		"reference_id", referenceID,
		"to_status", toStatus,
		"updated", updated)

	return updated, nil
}

// GetBalance re-derives the balance from the store of record on every call.
func (s *Service) GetBalance(userID int64) (Balance, error) {
	entries, err := s.repository.GetByUserID(userID)
	if err != nil {
		s.logger.Error("failed to load ledger entries for balance", "error", err, "user_id", userID)
		return Balance{}, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	return CalculateBalance(entries), nil
}

func (s *Service) GetEntriesByReference(referenceType string, referenceID int64) ([]ledgermodel.Entry, error) {
	return s.repository.GetByReference(referenceType, referenceID)
}
