package postgres

import (
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
	pixkeymodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/pixkey"
	withdrawalmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/withdrawal"
)

func TestWithdrawalRepository(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Withdrawal Repository Suite")
}

var _ = ginkgo.Describe("WithdrawalRepository", func() {
	var (
		db   *gorm.DB
		repo *WithdrawalRepository
	)

	pendingEntries := func() []*ledgermodel.Entry {
		return []*ledgermodel.Entry{
			{
				UserID:        1,
				Type:          ledgermodel.TypeWithdrawalDebit,
				Status:        ledgermodel.StatusPending,
				AmountCents:   10000,
				IsCredit:      false,
				ReferenceType: ledgermodel.ReferenceTypeWithdrawal,
				OccurredAt:    time.Now().UTC(),
			},
			{
				UserID:        1,
				Type:          ledgermodel.TypeWithdrawalFee,
				Status:        ledgermodel.StatusPending,
				AmountCents:   150,
				IsCredit:      false,
				ReferenceType: ledgermodel.ReferenceTypeWithdrawal,
				OccurredAt:    time.Now().UTC(),
			},
		}
	}

	newWithdrawal := func(key string) *withdrawalmodel.Withdrawal {
		return &withdrawalmodel.Withdrawal{
			UserID:            1,
			AmountCents:       10000,
			FeeCents:          150,
			TotalDebitedCents: 10150,
			Status:            withdrawalmodel.StatusRequested,
			IdempotencyKey:    key,
		}
	}

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
			TranslateError: true,
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		err = db.AutoMigrate(&withdrawalmodel.Withdrawal{}, &ledgermodel.Entry{}, &pixkeymodel.PixKey{})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		// The production schema enforces one withdrawal per idempotency key.
		err = db.Exec("CREATE UNIQUE INDEX idx_withdrawals_idempotency ON withdrawals (user_id, idempotency_key)").Error
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		repo = NewWithdrawalRepository(db).(*WithdrawalRepository)
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("should insert the withdrawal with its ledger pair", func() {
			w := newWithdrawal("key-1")

			err := repo.Create(w, pendingEntries())

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(w.ID).To(gomega.BeNumerically(">", 0))

			var count int64
			gomega.Expect(db.Model(&ledgermodel.Entry{}).
				Where("reference_type = ? AND reference_id = ?", ledgermodel.ReferenceTypeWithdrawal, w.ID).
				Count(&count).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(count).To(gomega.Equal(int64(2)))
		})

		ginkgo.It("should reject a duplicate idempotency key and roll the entries back", func() {
			gomega.Expect(repo.Create(newWithdrawal("key-dup"), pendingEntries())).ToNot(gomega.HaveOccurred())

			err := repo.Create(newWithdrawal("key-dup"), pendingEntries())

			gomega.Expect(err).To(gomega.MatchError(gorm.ErrDuplicatedKey))

			var count int64
			gomega.Expect(db.Model(&ledgermodel.Entry{}).Count(&count).Error).ToNot(gomega.HaveOccurred())
			gomega.Expect(count).To(gomega.Equal(int64(2)))
		})
	})

	ginkgo.Describe("MarkProcessing", func() {
		ginkgo.It("should advance a REQUESTED withdrawal and bump the version", func() {
			w := newWithdrawal("key-2")
			gomega.Expect(repo.Create(w, pendingEntries())).ToNot(gomega.HaveOccurred())

			advanced, err := repo.MarkProcessing(w.ID, "tr-1")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(advanced).To(gomega.BeTrue())

			reloaded, err := repo.GetByID(w.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(reloaded.Status).To(gomega.Equal(withdrawalmodel.StatusProcessing))
			gomega.Expect(*reloaded.TransferaTxID).To(gomega.Equal("tr-1"))
			gomega.Expect(reloaded.Version).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("should refuse when the withdrawal already moved on", func() {
			w := newWithdrawal("key-3")
			gomega.Expect(repo.Create(w, pendingEntries())).ToNot(gomega.HaveOccurred())

			advanced, err := repo.MarkProcessing(w.ID, "tr-1")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(advanced).To(gomega.BeTrue())

			advanced, err = repo.MarkProcessing(w.ID, "tr-other")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(advanced).To(gomega.BeFalse())

			reloaded, _ := repo.GetByID(w.ID)
			gomega.Expect(*reloaded.TransferaTxID).To(gomega.Equal("tr-1"))
		})
	})

	ginkgo.Describe("FinalizeWithEntries", func() {
		var w *withdrawalmodel.Withdrawal

		nonTerminal := []string{withdrawalmodel.StatusRequested, withdrawalmodel.StatusProcessing}

		ginkgo.BeforeEach(func() {
			w = newWithdrawal("key-4")
			gomega.Expect(repo.Create(w, pendingEntries())).ToNot(gomega.HaveOccurred())
			_, err := repo.MarkProcessing(w.ID, "tr-1")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		entryStatuses := func() []string {
			var entries []ledgermodel.Entry
			gomega.Expect(db.Where("reference_type = ? AND reference_id = ?",
				ledgermodel.ReferenceTypeWithdrawal, w.ID).Find(&entries).Error).ToNot(gomega.HaveOccurred())
			out := make([]string, len(entries))
			for i, e := range entries {
				out[i] = e.Status
			}
			return out
		}

		ginkgo.It("should complete the withdrawal and post its entries together", func() {
			finalized, err := repo.FinalizeWithEntries(w.ID, nonTerminal,
				withdrawalmodel.StatusCompleted, ledgermodel.StatusPosted, nil, time.Now().UTC())

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(finalized).To(gomega.BeTrue())

			reloaded, _ := repo.GetByID(w.ID)
			gomega.Expect(reloaded.Status).To(gomega.Equal(withdrawalmodel.StatusCompleted))
			gomega.Expect(reloaded.ProcessedAt).ToNot(gomega.BeNil())
			gomega.Expect(entryStatuses()).To(gomega.ConsistOf(ledgermodel.StatusPosted, ledgermodel.StatusPosted))
		})

		ginkgo.It("should fail the withdrawal with a reason and cancel its entries", func() {
			reason := "transfer returned by the destination institution"

			finalized, err := repo.FinalizeWithEntries(w.ID, nonTerminal,
				withdrawalmodel.StatusFailed, ledgermodel.StatusCanceled, &reason, time.Now().UTC())

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(finalized).To(gomega.BeTrue())

			reloaded, _ := repo.GetByID(w.ID)
			gomega.Expect(reloaded.Status).To(gomega.Equal(withdrawalmodel.StatusFailed))
			gomega.Expect(*reloaded.FailureReason).To(gomega.Equal(reason))
			gomega.Expect(entryStatuses()).To(gomega.ConsistOf(ledgermodel.StatusCanceled, ledgermodel.StatusCanceled))
		})

		ginkgo.It("should be a no-op once the withdrawal is terminal", func() {
			finalized, err := repo.FinalizeWithEntries(w.ID, nonTerminal,
				withdrawalmodel.StatusCompleted, ledgermodel.StatusPosted, nil, time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(finalized).To(gomega.BeTrue())

			finalized, err = repo.FinalizeWithEntries(w.ID, nonTerminal,
				withdrawalmodel.StatusFailed, ledgermodel.StatusCanceled, nil, time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(finalized).To(gomega.BeFalse())

			gomega.Expect(entryStatuses()).To(gomega.ConsistOf(ledgermodel.StatusPosted, ledgermodel.StatusPosted))
		})
	})

	ginkgo.Describe("ListStuck", func() {
		ginkgo.It("should return only old non-terminal withdrawals", func() {
			old := newWithdrawal("key-old")
			gomega.Expect(repo.Create(old, nil)).ToNot(gomega.HaveOccurred())
			gomega.Expect(db.Model(&withdrawalmodel.Withdrawal{}).Where("id = ?", old.ID).
				Update("created_at", time.Now().Add(-time.Hour)).Error).ToNot(gomega.HaveOccurred())

			fresh := newWithdrawal("key-fresh")
			gomega.Expect(repo.Create(fresh, nil)).ToNot(gomega.HaveOccurred())

			done := newWithdrawal("key-done")
			gomega.Expect(repo.Create(done, nil)).ToNot(gomega.HaveOccurred())
			gomega.Expect(db.Model(&withdrawalmodel.Withdrawal{}).Where("id = ?", done.ID).
				Updates(map[string]interface{}{
					"status":     withdrawalmodel.StatusCompleted,
					"created_at": time.Now().Add(-time.Hour),
				}).Error).ToNot(gomega.HaveOccurred())

			stuck, err := repo.ListStuck([]string{withdrawalmodel.StatusRequested, withdrawalmodel.StatusProcessing},
				time.Now().Add(-15*time.Minute), 50)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(stuck).To(gomega.HaveLen(1))
			gomega.Expect(stuck[0].ID).To(gomega.Equal(old.ID))
		})
	})

	ginkgo.Describe("GetByIdempotencyKey", func() {
		ginkgo.It("should scope lookups to the user", func() {
			w := newWithdrawal("key-5")
			gomega.Expect(repo.Create(w, nil)).ToNot(gomega.HaveOccurred())

			found, err := repo.GetByIdempotencyKey(1, "key-5")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(found.ID).To(gomega.Equal(w.ID))

			_, err = repo.GetByIdempotencyKey(2, "key-5")
			gomega.Expect(err).To(gomega.MatchError(gorm.ErrRecordNotFound))
		})
	})
})

var _ = ginkgo.Describe("PixKeyRepository", func() {
	var (
		db   *gorm.DB
		repo *PixKeyRepository
	)

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(db.AutoMigrate(&pixkeymodel.PixKey{})).ToNot(gomega.HaveOccurred())

		repo = NewPixKeyRepository(db).(*PixKeyRepository)
	})

	ginkgo.It("should prefer a verified key over a newer unverified one", func() {
		gomega.Expect(db.Create(&pixkeymodel.PixKey{
			UserID: 1, KeyType: pixkeymodel.TypeEmail, KeyValue: "old@mail.com", Verified: true,
			CreatedAt: time.Now().Add(-time.Hour),
		}).Error).ToNot(gomega.HaveOccurred())
		gomega.Expect(db.Create(&pixkeymodel.PixKey{
			UserID: 1, KeyType: pixkeymodel.TypeRandom, KeyValue: "uuid-key", Verified: false,
			CreatedAt: time.Now(),
		}).Error).ToNot(gomega.HaveOccurred())

		key, err := repo.GetByUserID(1)

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(key.KeyValue).To(gomega.Equal("old@mail.com"))
	})

	ginkgo.It("should return record-not-found for a user without keys", func() {
		_, err := repo.GetByUserID(42)
		gomega.Expect(err).To(gomega.MatchError(gorm.ErrRecordNotFound))
	})
})
