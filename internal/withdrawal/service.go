package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/pix-gateway/internal"
	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
	withdrawalmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/withdrawal"
	"github.com/frahmantamala/pix-gateway/internal/core/events"
	"github.com/frahmantamala/pix-gateway/internal/provider"
)

// staleAfter is how long a withdrawal may sit unresolved before the
// reconcile worker asks the provider directly.
const staleAfter = 15 * time.Minute

var nonTerminalStatuses = []string{withdrawalmodel.StatusRequested, withdrawalmodel.StatusProcessing}

type Service struct {
	repository Repository
	pixKeys    PixKeyRepository
	provider   ProviderAPI
	balances   BalanceReader
	eventBus   *events.EventBus
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	repository Repository,
	pixKeys PixKeyRepository,
	providerClient ProviderAPI,
	balances BalanceReader,
	eventBus *events.EventBus,
	logger *slog.Logger,
) *Service {
	return &Service{
		repository: repository,
		pixKeys:    pixKeys,
		provider:   providerClient,
		balances:   balances,
		eventBus:   eventBus,
		logger:     logger,
		now:        time.Now,
	}
}

// Create registers a REQUESTED withdrawal and its two PENDING ledger entries
// (debit + fee) atomically. A replay of the same idempotency key returns the
// existing withdrawal without touching the ledger.
func (s *Service) Create(ctx context.Context, req CreateWithdrawalRequest) (*withdrawalmodel.Withdrawal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repository.GetByIdempotencyKey(req.UserID, req.IdempotencyKey)
	if err == nil {
		s.logger.Info("withdrawal request replayed, returning existing",
			"withdrawal_id", existing.ID,
			"idempotency_key", req.IdempotencyKey)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup by idempotency key: %w", err)
	}

	total := req.AmountCents + req.FeeCents

	balance, err := s.balances.GetBalance(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if balance.AvailableCents < total {
		s.logger.Warn("withdrawal rejected for insufficient balance",
			"user_id", req.UserID,
			"available_cents", balance.AvailableCents,
			"requested_cents", total)
		return nil, apperrors.ErrInsufficientBalance
	}

	now := s.now().UTC()
	w := &withdrawalmodel.Withdrawal{
		UserID:            req.UserID,
		AmountCents:       req.AmountCents,
		FeeCents:          req.FeeCents,
		TotalDebitedCents: total,
		Status:            withdrawalmodel.StatusRequested,
		IdempotencyKey:    req.IdempotencyKey,
	}

	entries := []*ledgermodel.Entry{
		{
			UserID:        req.UserID,
			Type:          ledgermodel.TypeWithdrawalDebit,
			Status:        ledgermodel.StatusPending,
			AmountCents:   req.AmountCents,
			IsCredit:      false,
			ReferenceType: ledgermodel.ReferenceTypeWithdrawal,
			OccurredAt:    now,
		},
		{
			UserID:        req.UserID,
			Type:          ledgermodel.TypeWithdrawalFee,
			Status:        ledgermodel.StatusPending,
			AmountCents:   req.FeeCents,
			IsCredit:      false,
			ReferenceType: ledgermodel.ReferenceTypeWithdrawal,
			OccurredAt:    now,
		},
	}

	if err := s.repository.Create(w, entries); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Two replays raced; the unique (user_id, idempotency_key) index
			// kept a single winner.
			if winner, lookupErr := s.repository.GetByIdempotencyKey(req.UserID, req.IdempotencyKey); lookupErr == nil {
				return winner, nil
			}
			return nil, apperrors.ErrDuplicateIdempotencyKey
		}
		s.logger.Error("failed to create withdrawal", "error", err, "user_id", req.UserID)
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	s.logger.Info("withdrawal created",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"total_debited_cents", w.TotalDebitedCents)

	return w, nil
}

// Submit pushes a REQUESTED withdrawal to the provider. A failure before any
// transfer id exists fails the withdrawal and releases the held funds; once
// a transfer id is known the outcome belongs to the webhook.
func (s *Service) Submit(ctx context.Context, withdrawalID int64) (*withdrawalmodel.Withdrawal, error) {
	w, err := s.repository.GetByID(withdrawalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("load withdrawal: %w", err)
	}

	if w.IsTerminal() || w.TransferaTxID != nil {
		return w, nil
	}

	key, err := s.pixKeys.GetByUserID(w.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.failSubmission(ctx, w, apperrors.ErrPixKeyNotFound.Message, apperrors.ErrPixKeyNotFound)
		}
		return nil, fmt.Errorf("load pix key: %w", err)
	}
	if !key.Verified {
		return s.failSubmission(ctx, w, apperrors.ErrPixKeyNotVerified.Message, apperrors.ErrPixKeyNotVerified)
	}

	batch, err := s.provider.CreateBatch(ctx, fmt.Sprintf("withdrawal-%d", w.ID))
	if err != nil {
		return s.failSubmission(ctx, w, "provider batch creation failed", apperrors.NewExternalError("provider batch creation failed", apperrors.ErrCodeProviderUnavailable, err))
	}

	transfer, err := s.provider.CreateTransfer(ctx, provider.CreateTransferRequest{
		BatchID:       batch.ID,
		Value:         centsToValue(w.AmountCents),
		IntegrationID: w.IdempotencyKey,
		Destination: provider.BankAccount{
			PixKey:         key.KeyValue,
			PixKeyType:     key.KeyType,
			PixDescription: fmt.Sprintf("withdrawal %d", w.ID),
		},
	})
	if err != nil {
		if errors.Is(err, provider.ErrOutcomeUnknown) {
			// The transfer may exist at the provider. Leave the withdrawal as
			// is; the webhook or the reconcile worker resolves it.
			s.logger.Warn("withdrawal submission outcome unknown, awaiting reconciliation",
				"withdrawal_id", w.ID,
				"idempotency_key", w.IdempotencyKey)
			return w, nil
		}
		return s.failSubmission(ctx, w, "provider transfer creation failed", apperrors.NewExternalError("provider transfer creation failed", apperrors.ErrCodeProviderUnavailable, err))
	}

	if _, err := s.repository.MarkProcessing(w.ID, transfer.ID); err != nil {
		s.logger.Error("failed to mark withdrawal processing",
			"error", err,
			"withdrawal_id", w.ID,
			"transfer_id", transfer.ID)
		return nil, fmt.Errorf("failed to mark withdrawal processing: %w", err)
	}

	s.logger.Info("withdrawal submitted to provider",
		"withdrawal_id", w.ID,
		"transfer_id", transfer.ID,
		"transfer_status", transfer.Status)

	return s.repository.GetByID(w.ID)
}

// HandleProviderStatus maps a provider transfer status to the withdrawal's
// outcome. Terminal withdrawals and unknown transfers are idempotent no-ops;
// unknown status strings cause no state change.
func (s *Service) HandleProviderStatus(ctx context.Context, transferID, providerStatus, statusReason string) error {
	w, err := s.repository.GetByTransferID(transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Possibly a payout outside this system or a redelivery after
			// cleanup; not an error toward the provider.
			s.logger.Info("transfer webhook for unknown withdrawal, ignoring",
				"transfer_id", transferID,
				"provider_status", providerStatus)
			return nil
		}
		return fmt.Errorf("load withdrawal by transfer id: %w", err)
	}

	if w.IsTerminal() {
		s.logger.Info("withdrawal already terminal, ignoring redelivery",
			"withdrawal_id", w.ID,
			"status", w.Status,
			"provider_status", providerStatus)
		return nil
	}

	switch providerStatus {
	case provider.TransferStatusFinished:
		return s.complete(ctx, w)

	case provider.TransferStatusReturned, provider.TransferStatusFailed:
		reason := statusReason
		if reason == "" {
			reason = "transfer returned by the destination institution"
		}
		return s.fail(ctx, w, reason)

	case provider.TransferStatusCreated:
		if w.Status != withdrawalmodel.StatusRequested {
			return nil
		}
		if _, err := s.repository.MarkProcessing(w.ID, transferID); err != nil {
			return fmt.Errorf("mark processing from provider status: %w", err)
		}
		return nil

	default:
		// Never guess a terminal outcome from a vocabulary we do not know.
		s.logger.Warn("unknown provider transfer status, taking no action",
			"withdrawal_id", w.ID,
			"transfer_id", transferID,
			"provider_status", providerStatus)
		return nil
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*withdrawalmodel.Withdrawal, error) {
	w, err := s.repository.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("load withdrawal: %w", err)
	}
	return w, nil
}

// ReconcileStale resolves withdrawals the webhook never finalized: PROCESSING
// ones are re-queried by transfer id, REQUESTED ones (a timed-out submission)
// by integration id.
func (s *Service) ReconcileStale(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-staleAfter)

	stuck, err := s.repository.ListStuck(nonTerminalStatuses, cutoff, 50)
	if err != nil {
		return fmt.Errorf("list stuck withdrawals: %w", err)
	}

	for i := range stuck {
		w := &stuck[i]
		if err := s.reconcileOne(ctx, w); err != nil {
			s.logger.Error("failed to reconcile withdrawal",
				"error", err,
				"withdrawal_id", w.ID)
		}
	}

	return nil
}

func (s *Service) reconcileOne(ctx context.Context, w *withdrawalmodel.Withdrawal) error {
	if w.TransferaTxID != nil {
		transfer, err := s.provider.GetTransfer(ctx, *w.TransferaTxID)
		if err != nil {
			return fmt.Errorf("get transfer: %w", err)
		}
		s.logger.Info("reconciling stale withdrawal from provider state",
			"withdrawal_id", w.ID,
			"transfer_id", transfer.ID,
			"provider_status", transfer.Status)
		return s.HandleProviderStatus(ctx, transfer.ID, transfer.Status, transfer.StatusReason)
	}

	// No transfer id: the submission timed out. Ask the provider whether the
	// transfer landed under our idempotency key.
	transfer, err := s.provider.GetTransferByIntegrationID(ctx, w.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("get transfer by integration id: %w", err)
	}

	if transfer == nil {
		// The timed-out submission never reached the provider: safe to fail
		// and release the held funds.
		_, err := s.failSubmission(ctx, w, "transfer was never created at provider", nil)
		return err
	}

	if _, err := s.repository.MarkProcessing(w.ID, transfer.ID); err != nil {
		return fmt.Errorf("adopt recovered transfer id: %w", err)
	}
	return s.HandleProviderStatus(ctx, transfer.ID, transfer.Status, transfer.StatusReason)
}

// complete settles a successful payout: entries PENDING->POSTED and the
// withdrawal COMPLETED, in one transaction.
func (s *Service) complete(ctx context.Context, w *withdrawalmodel.Withdrawal) error {
	finalized, err := s.repository.FinalizeWithEntries(
		w.ID,
		nonTerminalStatuses,
		withdrawalmodel.StatusCompleted,
		ledgermodel.StatusPosted,
		nil,
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("finalize withdrawal as completed: %w", err)
	}
	if !finalized {
		s.logger.Info("withdrawal finalization lost race, already terminal", "withdrawal_id", w.ID)
		return nil
	}

	s.logger.Info("withdrawal completed",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"amount_cents", w.AmountCents)

	transferID := ""
	if w.TransferaTxID != nil {
		transferID = *w.TransferaTxID
	}
	s.eventBus.Publish(ctx, events.NewWithdrawalCompletedEvent(w.ID, w.UserID, w.AmountCents, transferID))

	return nil
}

// fail cancels the held funds: entries PENDING->CANCELED and the withdrawal
// FAILED with a human-readable reason.
func (s *Service) fail(ctx context.Context, w *withdrawalmodel.Withdrawal, reason string) error {
	finalized, err := s.repository.FinalizeWithEntries(
		w.ID,
		nonTerminalStatuses,
		withdrawalmodel.StatusFailed,
		ledgermodel.StatusCanceled,
		&reason,
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("finalize withdrawal as failed: %w", err)
	}
	if !finalized {
		s.logger.Info("withdrawal finalization lost race, already terminal", "withdrawal_id", w.ID)
		return nil
	}

	s.logger.Info("withdrawal failed",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"reason", reason)

	s.eventBus.Publish(ctx, events.NewWithdrawalFailedEvent(w.ID, w.UserID, w.AmountCents, reason))

	return nil
}

// failSubmission handles pre-transfer-id failures during submit: the
// withdrawal fails synchronously and the funds return to available balance.
// When cause is non-nil it is returned so the caller surfaces the original
// error.
func (s *Service) failSubmission(ctx context.Context, w *withdrawalmodel.Withdrawal, reason string, cause error) (*withdrawalmodel.Withdrawal, error) {
	if err := s.fail(ctx, w, reason); err != nil {
		return nil, err
	}

	refreshed, err := s.repository.GetByID(w.ID)
	if err != nil {
		return nil, fmt.Errorf("reload withdrawal: %w", err)
	}

	if cause != nil {
		return refreshed, cause
	}
	return refreshed, nil
}

// centsToValue renders integer cents as the decimal reais value the provider
// expects.
func centsToValue(cents int64) float64 {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).InexactFloat64()
}
