package charge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/frahmantamala/pix-gateway/internal"
	chargemodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/charge"
	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
	"github.com/frahmantamala/pix-gateway/internal/core/events"

	"gorm.io/gorm"
)

type Service struct {
	repository Repository
	eventBus   *events.EventBus
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repository Repository, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		eventBus:   eventBus,
		logger:     logger,
		now:        time.Now,
	}
}

// ReconcileCashIn resolves a provider CashIn event to exactly one charge and
// credits it. Redeliveries are safe: the PENDING->PAID update is conditional
// and a lost race is treated as success.
func (s *Service) ReconcileCashIn(ctx context.Context, event CashInEvent) error {
	matched, err := s.match(event)
	if err != nil {
		return err
	}

	creditCents := event.AmountCents()

	// The provider is the source of truth for money received: a mismatch is
	// flagged for manual review but does not block crediting.
	if creditCents != matched.AmountCents {
		s.logger.Warn("cash-in amount does not match charge",
			"charge_id", matched.ID,
			"charge_amount_cents", matched.AmountCents,
			"provider_amount_cents", creditCents,
			"event_id", event.EventID)
	}

	paidAt := s.now().UTC()
	entry := &ledgermodel.Entry{
		UserID:        matched.MerchantID,
		Type:          ledgermodel.TypeChargeNet,
		Status:        ledgermodel.StatusPosted,
		AmountCents:   creditCents,
		IsCredit:      true,
		ReferenceType: ledgermodel.ReferenceTypeCharge,
		ReferenceID:   matched.ID,
		OccurredAt:    paidAt,
	}

	updated, err := s.repository.MarkPaidWithCredit(matched.ID, paidAt, entry)
	if err != nil {
		s.logger.Error("failed to mark charge paid",
			"error", err,
			"charge_id", matched.ID,
			"event_id", event.EventID)
		return fmt.Errorf("failed to mark charge paid: %w", err)
	}

	if !updated {
		// Another delivery already transitioned this charge; no second credit
		// was written.
		s.logger.Info("charge already paid, skipping duplicate delivery",
			"charge_id", matched.ID,
			"event_id", event.EventID)
		return nil
	}

	s.logger.Info("charge reconciled as paid",
		"charge_id", matched.ID,
		"merchant_id", matched.MerchantID,
		"amount_cents", creditCents,
		"event_id", event.EventID)

	s.eventBus.Publish(ctx, events.NewPaymentReceivedEvent(matched.ID, matched.MerchantID, creditCents, event.Txid))

	return nil
}

// match applies the prioritized key strategy: pix txid first, then the
// caller-supplied external reference.
func (s *Service) match(event CashInEvent) (*chargemodel.Charge, error) {
	if event.Txid != "" {
		matched, err := s.repository.GetByPixTxid(event.Txid)
		if err == nil {
			return matched, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup by pix txid: %w", err)
		}
	}

	if event.IntegrationID != "" {
		matched, err := s.repository.GetByExternalRef(event.IntegrationID)
		if err == nil {
			return matched, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup by external ref: %w", err)
		}
	}

	// Record the attempted keys so a "received but not applied" incident can
	// be diagnosed from logs and the attempt trail.
	s.logger.Error("no charge matched cash-in event",
		"event_id", event.EventID,
		"txid", event.Txid,
		"integration_id", event.IntegrationID)

	return nil, apperrors.ErrChargeNotFound.WithDetails(map[string]string{
		"txid":           event.Txid,
		"integration_id": event.IntegrationID,
	})
}
