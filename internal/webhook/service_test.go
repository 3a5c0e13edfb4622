package webhook_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/pix-gateway/internal"
	"github.com/frahmantamala/pix-gateway/internal/charge"
	webhookmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/webhook"
	"github.com/frahmantamala/pix-gateway/internal/webhook"
)

// Mock attempt repository for testing
type mockAttemptRepo struct {
	attempts    []*webhookmodel.Attempt
	createError error
	markError   error
}

func newMockAttemptRepo() *mockAttemptRepo {
	return &mockAttemptRepo{}
}

func (m *mockAttemptRepo) Create(attempt *webhookmodel.Attempt) error {
	if m.createError != nil {
		return m.createError
	}
	attempt.ID = int64(len(m.attempts) + 1)
	attempt.CreatedAt = time.Now()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *mockAttemptRepo) CountByEvent(provider, eventID string) (int64, error) {
	var count int64
	for _, a := range m.attempts {
		if a.Provider == provider && a.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (m *mockAttemptRepo) MarkProcessed(attemptID int64, status string, errorMessage *string) error {
	if m.markError != nil {
		return m.markError
	}
	for _, a := range m.attempts {
		if a.ID == attemptID {
			a.Status = status
			a.ErrorMessage = errorMessage
			now := time.Now()
			a.ProcessedAt = &now
		}
	}
	return nil
}

func (m *mockAttemptRepo) ListRecent(provider string, limit int) ([]webhookmodel.Attempt, error) {
	var out []webhookmodel.Attempt
	for _, a := range m.attempts {
		if provider == "" || a.Provider == provider {
			out = append(out, *a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockAttemptRepo) ListByEventID(provider, eventID string) ([]webhookmodel.Attempt, error) {
	var out []webhookmodel.Attempt
	for _, a := range m.attempts {
		if a.Provider == provider && a.EventID == eventID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAttemptRepo) last() *webhookmodel.Attempt {
	if len(m.attempts) == 0 {
		return nil
	}
	return m.attempts[len(m.attempts)-1]
}

type mockConfigRepo struct {
	config *webhookmodel.Config
	err    error
}

func (m *mockConfigRepo) GetActive(provider string) (*webhookmodel.Config, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.config, nil
}

type mockReconciler struct {
	events []charge.CashInEvent
	err    error
}

func (m *mockReconciler) ReconcileCashIn(ctx context.Context, event charge.CashInEvent) error {
	m.events = append(m.events, event)
	return m.err
}

type transferCall struct {
	transferID string
	status     string
	reason     string
}

type mockTransferHandler struct {
	calls []transferCall
	err   error
}

func (m *mockTransferHandler) HandleProviderStatus(ctx context.Context, transferID, providerStatus, statusReason string) error {
	m.calls = append(m.calls, transferCall{transferID, providerStatus, statusReason})
	return m.err
}

var _ = Describe("WebhookService", func() {
	const secret = "whsec_service_test"

	var (
		attempts    *mockAttemptRepo
		configs     *mockConfigRepo
		reconciler  *mockReconciler
		transfers   *mockTransferHandler
		service     *webhook.Service
		logger      *slog.Logger
		maxSkew     time.Duration
		makeService func(policy string) *webhook.Service
	)

	cashInBody := func(eventID, txid string, value string) []byte {
		return []byte(fmt.Sprintf(`{"id":%q,"object":"CashIn","data":{"txid":%q,"value":%s}}`, eventID, txid, value))
	}

	transferBody := func(eventID, transferID, status, reason string) []byte {
		data, _ := json.Marshal(map[string]string{
			"id":                 transferID,
			"status":             status,
			"status_description": reason,
		})
		return []byte(fmt.Sprintf(`{"id":%q,"object":"Transfer","data":%s}`, eventID, data))
	}

	BeforeEach(func() {
		attempts = newMockAttemptRepo()
		configs = &mockConfigRepo{config: &webhookmodel.Config{ID: 1, Provider: "transfeera", MerchantID: 1, Secret: secret, Active: true}}
		reconciler = &mockReconciler{}
		transfers = &mockTransferHandler{}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		maxSkew = 5 * time.Minute

		makeService = func(policy string) *webhook.Service {
			return webhook.NewService(attempts, configs, reconciler, transfers, apperrors.WebhookConfig{
				MaxClockSkew:    maxSkew,
				UnmatchedPolicy: policy,
			}, logger)
		}
		service = makeService(apperrors.UnmatchedPolicyAck)
	})

	Describe("Process", func() {
		Context("with a valid signed cash-in delivery", func() {
			It("should dispatch to the reconciler and mark the attempt processed", func() {
				body := cashInBody("evt-1", "tx-1", "150.00")
				header := signBody(secret, body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).ToNot(HaveOccurred())
				Expect(reconciler.events).To(HaveLen(1))
				Expect(reconciler.events[0].EventID).To(Equal("evt-1"))
				Expect(reconciler.events[0].Txid).To(Equal("tx-1"))
				Expect(reconciler.events[0].AmountCents()).To(Equal(int64(15000)))

				Expect(attempts.attempts).To(HaveLen(1))
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusProcessed))
				Expect(attempts.last().SignatureValid).To(BeTrue())
			})
		})

		Context("with a transfer outcome delivery", func() {
			It("should dispatch the provider status to the withdrawal side", func() {
				body := transferBody("evt-2", "tr-99", "FINALIZADO", "")
				header := signBody(secret, body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).ToNot(HaveOccurred())
				Expect(transfers.calls).To(HaveLen(1))
				Expect(transfers.calls[0].transferID).To(Equal("tr-99"))
				Expect(transfers.calls[0].status).To(Equal("FINALIZADO"))
			})
		})

		Context("when the signature is invalid", func() {
			It("should record a rejected attempt before returning the error", func() {
				body := cashInBody("evt-3", "tx-3", "10.00")
				header := signBody("wrong-secret", body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).To(Equal(apperrors.ErrInvalidSignature))
				Expect(reconciler.events).To(BeEmpty())

				Expect(attempts.attempts).To(HaveLen(1))
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusRejected))
				Expect(attempts.last().SignatureValid).To(BeFalse())
			})
		})

		Context("when the signature timestamp is outside tolerance", func() {
			It("should reject a stale delivery", func() {
				body := cashInBody("evt-4", "tx-4", "10.00")
				header := signBody(secret, body, time.Now().Add(-10*time.Minute))

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).To(Equal(apperrors.ErrSignatureExpired))
				Expect(reconciler.events).To(BeEmpty())
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusRejected))
				Expect(attempts.last().SignatureValid).To(BeTrue())
			})
		})

		Context("when no active config exists for the provider", func() {
			It("should reject with unknown provider and still record the attempt", func() {
				configs.err = gorm.ErrRecordNotFound
				body := cashInBody("evt-5", "tx-5", "10.00")

				err := service.Process(context.Background(), "unknown-psp", body, "t=1,v1=aa")

				Expect(err).To(Equal(apperrors.ErrUnknownProvider))
				Expect(attempts.attempts).To(HaveLen(1))
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusRejected))
			})
		})

		Context("when the payload is not valid JSON", func() {
			It("should reject with a validation error after recording the attempt", func() {
				body := []byte(`{not json`)
				header := signBody(secret, body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidPayload))
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusRejected))
			})
		})

		Context("when no charge matches the cash-in", func() {
			It("should acknowledge under the ack policy", func() {
				reconciler.err = apperrors.ErrChargeNotFound
				body := cashInBody("evt-6", "tx-missing", "10.00")
				header := signBody(secret, body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).ToNot(HaveOccurred())
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusFailed))
			})

			It("should propagate the error under the retry policy", func() {
				service = makeService(apperrors.UnmatchedPolicyRetry)
				reconciler.err = apperrors.ErrChargeNotFound
				body := cashInBody("evt-7", "tx-missing", "10.00")
				header := signBody(secret, body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).To(Equal(apperrors.ErrChargeNotFound))
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusFailed))
			})
		})

		Context("with an event kind without a handler", func() {
			It("should acknowledge without dispatching", func() {
				body := []byte(`{"id":"evt-8","object":"PixKeyValidation","data":{}}`)
				header := signBody(secret, body, time.Now())

				err := service.Process(context.Background(), "transfeera", body, header)

				Expect(err).ToNot(HaveOccurred())
				Expect(reconciler.events).To(BeEmpty())
				Expect(transfers.calls).To(BeEmpty())
				Expect(attempts.last().Status).To(Equal(webhookmodel.AttemptStatusProcessed))
			})
		})

		Context("when the same event is redelivered", func() {
			It("should record an increasing attempt ordinal", func() {
				body := cashInBody("evt-9", "tx-9", "10.00")
				header := signBody(secret, body, time.Now())

				Expect(service.Process(context.Background(), "transfeera", body, header)).To(Succeed())
				Expect(service.Process(context.Background(), "transfeera", body, header)).To(Succeed())

				Expect(attempts.attempts).To(HaveLen(2))
				Expect(attempts.attempts[0].Attempt).To(Equal(1))
				Expect(attempts.attempts[1].Attempt).To(Equal(2))
			})
		})
	})

	Describe("ListAttempts", func() {
		It("should filter by event id when one is given", func() {
			body := cashInBody("evt-a", "tx-a", "10.00")
			header := signBody(secret, body, time.Now())
			Expect(service.Process(context.Background(), "transfeera", body, header)).To(Succeed())

			other := cashInBody("evt-b", "tx-b", "10.00")
			Expect(service.Process(context.Background(), "transfeera", other, signBody(secret, other, time.Now()))).To(Succeed())

			found, err := service.ListAttempts("transfeera", "evt-a", 50)
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].EventID).To(Equal("evt-a"))
		})
	})
})
