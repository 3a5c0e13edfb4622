package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/frahmantamala/pix-gateway/internal"
	"github.com/frahmantamala/pix-gateway/internal/charge"
	webhookmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/webhook"

	"gorm.io/gorm"
)

// AttemptRepository is the append-only delivery log. Create always inserts;
// redeliveries of the same event id get their own row.
type AttemptRepository interface {
	Create(attempt *webhookmodel.Attempt) error
	CountByEvent(provider, eventID string) (int64, error)
	MarkProcessed(attemptID int64, status string, errorMessage *string) error
	ListRecent(provider string, limit int) ([]webhookmodel.Attempt, error)
	ListByEventID(provider, eventID string) ([]webhookmodel.Attempt, error)
}

type ConfigRepository interface {
	GetActive(provider string) (*webhookmodel.Config, error)
}

// ChargeReconciler is implemented by the charge service.
type ChargeReconciler interface {
	ReconcileCashIn(ctx context.Context, event charge.CashInEvent) error
}

// TransferStatusHandler is implemented by the withdrawal service.
type TransferStatusHandler interface {
	HandleProviderStatus(ctx context.Context, transferID, providerStatus, statusReason string) error
}

type Service struct {
	attempts        AttemptRepository
	configs         ConfigRepository
	charges         ChargeReconciler
	withdrawals     TransferStatusHandler
	maxClockSkew    time.Duration
	unmatchedPolicy string
	logger          *slog.Logger
	now             func() time.Time
}

func NewService(
	attempts AttemptRepository,
	configs ConfigRepository,
	charges ChargeReconciler,
	withdrawals TransferStatusHandler,
	cfg apperrors.WebhookConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		attempts:        attempts,
		configs:         configs,
		charges:         charges,
		withdrawals:     withdrawals,
		maxClockSkew:    cfg.MaxClockSkew,
		unmatchedPolicy: cfg.UnmatchedPolicy,
		logger:          logger,
		now:             time.Now,
	}
}

// Process handles one inbound delivery. The attempt row is recorded before
// any signature or business validation can short-circuit, so rejected and
// malformed deliveries stay auditable.
func (s *Service) Process(ctx context.Context, provider string, body []byte, signatureHeader string) error {
	// The envelope is decoded best-effort first: even a delivery that will be
	// rejected should be logged with its event id when one is readable.
	var event ProviderEvent
	parseErr := json.Unmarshal(body, &event)

	config, err := s.configs.GetActive(provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordAttempt(provider, event, false, webhookmodel.AttemptStatusRejected, strPtr("unknown provider"))
			return apperrors.ErrUnknownProvider
		}
		return fmt.Errorf("load webhook config: %w", err)
	}

	valid, timestamp := VerifySignature(config.Secret, body, signatureHeader)

	attempt := s.recordAttempt(provider, event, valid, webhookmodel.AttemptStatusReceived, nil)

	if !valid {
		s.finalize(attempt, webhookmodel.AttemptStatusRejected, strPtr("invalid signature"))
		return apperrors.ErrInvalidSignature
	}

	if skew := s.now().Sub(timestamp); skew > s.maxClockSkew || skew < -s.maxClockSkew {
		s.finalize(attempt, webhookmodel.AttemptStatusRejected, strPtr("signature timestamp outside tolerance"))
		return apperrors.ErrSignatureExpired
	}

	if parseErr != nil {
		s.finalize(attempt, webhookmodel.AttemptStatusRejected, strPtr("malformed payload"))
		return apperrors.NewValidationError("malformed webhook payload", apperrors.ErrCodeInvalidPayload).WithCause(parseErr)
	}

	if err := s.dispatch(ctx, event); err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok && appErr.Code == apperrors.ErrCodeChargeNotFound {
			s.finalize(attempt, webhookmodel.AttemptStatusFailed, strPtr(appErr.GetDetailedMessage()))
			if s.unmatchedPolicy == apperrors.UnmatchedPolicyAck {
				// Policy "ack": answer 200 so the provider stops redelivering
				// an event we will never be able to match; the failed attempt
				// row is the hook for manual diagnosis.
				s.logger.Warn("acknowledging unmatched cash-in per policy",
					"provider", provider, "event_id", event.ID)
				return nil
			}
			return err
		}
		s.finalize(attempt, webhookmodel.AttemptStatusFailed, strPtr(err.Error()))
		return err
	}

	s.finalize(attempt, webhookmodel.AttemptStatusProcessed, nil)
	return nil
}

func (s *Service) dispatch(ctx context.Context, event ProviderEvent) error {
	switch event.Object {
	case ObjectCashIn:
		var cashIn charge.CashInEvent
		if err := json.Unmarshal(event.Data, &cashIn); err != nil {
			return apperrors.NewValidationError("malformed cash-in data", apperrors.ErrCodeInvalidPayload).WithCause(err)
		}
		cashIn.EventID = event.ID
		return s.charges.ReconcileCashIn(ctx, cashIn)

	case ObjectTransfer:
		var transfer TransferEventData
		if err := json.Unmarshal(event.Data, &transfer); err != nil {
			return apperrors.NewValidationError("malformed transfer data", apperrors.ErrCodeInvalidPayload).WithCause(err)
		}
		return s.withdrawals.HandleProviderStatus(ctx, transfer.ID, transfer.Status, transfer.StatusReason)

	default:
		// Unknown event kinds are acknowledged without action; guessing a
		// handler for them could corrupt state.
		s.logger.Info("ignoring webhook event of unhandled kind", "object", event.Object, "event_id", event.ID)
		return nil
	}
}

// recordAttempt appends a new delivery row. The ordinal counts provider-side
// redeliveries of the same event id.
func (s *Service) recordAttempt(provider string, event ProviderEvent, signatureValid bool, status string, errorMessage *string) *webhookmodel.Attempt {
	ordinal := int64(0)
	if event.ID != "" {
		count, err := s.attempts.CountByEvent(provider, event.ID)
		if err != nil {
			s.logger.Error("failed to count webhook attempts", "error", err, "event_id", event.ID)
		} else {
			ordinal = count
		}
	}

	eventType := event.Object
	if eventType == "" {
		eventType = "unknown"
	}

	attempt := &webhookmodel.Attempt{
		Provider:       provider,
		Type:           eventType,
		EventID:        event.ID,
		Attempt:        int(ordinal) + 1,
		Status:         status,
		SignatureValid: signatureValid,
		ErrorMessage:   errorMessage,
	}

	if err := s.attempts.Create(attempt); err != nil {
		// Attempt recording failing must not block reconciliation, but it is
		// an audit gap worth alerting on.
		s.logger.Error("failed to record webhook attempt",
			"error", err,
			"provider", provider,
			"event_id", event.ID)
		return nil
	}

	return attempt
}

func (s *Service) finalize(attempt *webhookmodel.Attempt, status string, errorMessage *string) {
	if attempt == nil {
		return
	}
	if err := s.attempts.MarkProcessed(attempt.ID, status, errorMessage); err != nil {
		s.logger.Error("failed to finalize webhook attempt",
			"error", err,
			"attempt_id", attempt.ID,
			"status", status)
	}
}

// ListAttempts is the diagnostics read path, not part of the hot path.
func (s *Service) ListAttempts(provider, eventID string, limit int) ([]webhookmodel.Attempt, error) {
	if eventID != "" {
		return s.attempts.ListByEventID(provider, eventID)
	}
	return s.attempts.ListRecent(provider, limit)
}

func strPtr(s string) *string {
	return &s
}
