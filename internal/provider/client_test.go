package provider_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/pix-gateway/internal"
	"github.com/frahmantamala/pix-gateway/internal/provider"
)

func TestProvider(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Provider Suite")
}

// fakeTransfeera serves both the authorization endpoint and the transfer API
// from one listener so the client config can point at a single URL.
type fakeTransfeera struct {
	mu sync.Mutex

	tokenCalls    int
	apiCalls      int
	currentToken  string
	failuresLeft  int
	rejectWith    int
	transferSleep time.Duration
	transfers     []provider.Transfer

	server *httptest.Server
}

func newFakeTransfeera() *fakeTransfeera {
	f := &fakeTransfeera{currentToken: "token-1"}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeTransfeera) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/authorization" {
		f.tokenCalls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": f.currentToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		return
	}

	f.apiCalls++

	if r.Header.Get("Authorization") != "Bearer "+f.currentToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if f.failuresLeft > 0 {
		f.failuresLeft--
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if f.rejectWith != 0 {
		w.WriteHeader(f.rejectWith)
		w.Write([]byte(`{"message":"bad request"}`))
		return
	}

	if f.transferSleep > 0 {
		f.mu.Unlock()
		time.Sleep(f.transferSleep)
		f.mu.Lock()
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/batch":
		json.NewEncoder(w).Encode(provider.Batch{ID: "batch-1", Name: "test"})
	case r.Method == http.MethodPost && r.URL.Path == "/batch/batch-1/transfers":
		json.NewEncoder(w).Encode(provider.Transfer{ID: "tr-1", Status: provider.TransferStatusCreated})
	case r.Method == http.MethodGet && r.URL.Path == "/transfer/tr-1":
		json.NewEncoder(w).Encode(provider.Transfer{ID: "tr-1", Status: provider.TransferStatusFinished})
	case r.Method == http.MethodGet && r.URL.Path == "/transfer":
		json.NewEncoder(w).Encode(f.transfers)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

var _ = Describe("Client", func() {
	var (
		fake   *fakeTransfeera
		client *provider.Client
	)

	transferRequest := func() provider.CreateTransferRequest {
		return provider.CreateTransferRequest{
			BatchID:       "batch-1",
			Value:         100.50,
			IntegrationID: "idem-1",
			Destination: provider.BankAccount{
				PixKey:     "demo@mail.com",
				PixKeyType: "email",
			},
		}
	}

	newClient := func(timeout time.Duration) *provider.Client {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		return provider.NewClient(internal.ProviderConfig{
			BaseURL:        fake.server.URL,
			LoginURL:       fake.server.URL,
			ClientID:       "client-id",
			ClientSecret:   "client-secret",
			RequestTimeout: timeout,
			MaxRetries:     2,
		}, logger)
	}

	BeforeEach(func() {
		fake = newFakeTransfeera()
		client = newClient(2 * time.Second)
	})

	AfterEach(func() {
		fake.server.Close()
	})

	Describe("authentication", func() {
		It("should fetch a token once and reuse it across calls", func() {
			_, err := client.CreateBatch(context.Background(), "first")
			Expect(err).ToNot(HaveOccurred())

			_, err = client.CreateBatch(context.Background(), "second")
			Expect(err).ToNot(HaveOccurred())

			Expect(fake.tokenCalls).To(Equal(1))
		})

		It("should refresh the token and retry once on a 401", func() {
			_, err := client.CreateBatch(context.Background(), "warmup")
			Expect(err).ToNot(HaveOccurred())

			// Provider rotates the expected token; the cached one is now stale.
			fake.mu.Lock()
			fake.currentToken = "token-2"
			fake.mu.Unlock()

			batch, err := client.CreateBatch(context.Background(), "after-rotation")
			Expect(err).ToNot(HaveOccurred())
			Expect(batch.ID).To(Equal("batch-1"))
			Expect(fake.tokenCalls).To(Equal(2))
		})
	})

	Describe("CreateTransfer", func() {
		It("should create a transfer", func() {
			transfer, err := client.CreateTransfer(context.Background(), transferRequest())

			Expect(err).ToNot(HaveOccurred())
			Expect(transfer.ID).To(Equal("tr-1"))
			Expect(transfer.Status).To(Equal(provider.TransferStatusCreated))
		})

		It("should retry through transient server errors", func() {
			fake.mu.Lock()
			fake.failuresLeft = 2
			fake.mu.Unlock()

			transfer, err := client.CreateTransfer(context.Background(), transferRequest())

			Expect(err).ToNot(HaveOccurred())
			Expect(transfer.ID).To(Equal("tr-1"))
		})

		It("should not retry a definite rejection", func() {
			fake.mu.Lock()
			fake.rejectWith = http.StatusBadRequest
			fake.mu.Unlock()

			_, err := client.CreateTransfer(context.Background(), transferRequest())

			Expect(err).To(HaveOccurred())
			Expect(fake.apiCalls).To(Equal(1))
		})

		It("should surface a timeout as an unknown outcome without retrying", func() {
			fake.mu.Lock()
			fake.transferSleep = 500 * time.Millisecond
			fake.mu.Unlock()

			shortClient := newClient(100 * time.Millisecond)

			_, err := shortClient.CreateTransfer(context.Background(), transferRequest())

			Expect(err).To(MatchError(provider.ErrOutcomeUnknown))
		})

		It("should reject an invalid request locally", func() {
			req := transferRequest()
			req.Value = 0

			_, err := client.CreateTransfer(context.Background(), req)

			Expect(err).To(HaveOccurred())
			Expect(fake.apiCalls).To(BeZero())
		})
	})

	Describe("GetTransfer", func() {
		It("should fetch a transfer by provider id", func() {
			transfer, err := client.GetTransfer(context.Background(), "tr-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(transfer.Status).To(Equal(provider.TransferStatusFinished))
		})
	})

	Describe("GetTransferByIntegrationID", func() {
		It("should return nil when the provider has no matching transfer", func() {
			transfer, err := client.GetTransferByIntegrationID(context.Background(), "never-sent")

			Expect(err).ToNot(HaveOccurred())
			Expect(transfer).To(BeNil())
		})

		It("should return the first match when one exists", func() {
			fake.mu.Lock()
			fake.transfers = []provider.Transfer{{ID: "tr-9", Status: provider.TransferStatusFinished, IntegrationID: "idem-9"}}
			fake.mu.Unlock()

			transfer, err := client.GetTransferByIntegrationID(context.Background(), "idem-9")

			Expect(err).ToNot(HaveOccurred())
			Expect(transfer).ToNot(BeNil())
			Expect(transfer.ID).To(Equal("tr-9"))
		})
	})
})
