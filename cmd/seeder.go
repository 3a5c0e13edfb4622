package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := initGorm(sqlxDB)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"webhook_attempts", "ledger_entries", "withdrawals", "charges", "pix_keys", "webhook_configs"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		demoMerchantID := int64(1)

		// Webhook signing secret for the sandbox provider account.
		providerName := "transfeera"
		var exists int
		row := db.Raw("SELECT 1 FROM webhook_configs WHERE provider = ? AND active = true", providerName).Row()
		if err := row.Scan(&exists); err != nil {
			secret := uuid.NewString()
			if err := db.Exec("INSERT INTO webhook_configs (provider, merchant_id, secret, active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())", providerName, demoMerchantID, secret).Error; err != nil {
				log.Fatalf("failed to insert webhook config: %v", err)
			}
			fmt.Println("Seeded webhook config for provider:", providerName)
			fmt.Println("Signing secret (register this at the provider dashboard):", secret)
		} else {
			fmt.Println("webhook config already exists for provider:", providerName)
		}

		// Demo merchant with a verified pix key for cash-out testing.
		row = db.Raw("SELECT 1 FROM pix_keys WHERE user_id = ?", demoMerchantID).Row()
		if err := row.Scan(&exists); err != nil {
			if err := db.Exec("INSERT INTO pix_keys (user_id, key_type, key_value, verified, created_at, updated_at) VALUES (?, 'email', 'demo@mail.com', true, now(), now())", demoMerchantID).Error; err != nil {
				log.Fatalf("failed to insert pix key: %v", err)
			}
			fmt.Println("Seeded verified pix key for user:", demoMerchantID)
		}

		// Pending charges a sandbox webhook can pay.
		charges := []struct {
			Method      string
			AmountCents int64
			Txid        *string
			ExternalRef *string
		}{
			{"PIX", 15000, strPtr("demo-txid-0001"), nil},
			{"PIX", 42090, strPtr("demo-txid-0002"), strPtr("order-1002")},
			{"BOLETO", 99900, nil, strPtr("order-1003")},
		}

		for _, c := range charges {
			var ref string
			if c.ExternalRef != nil {
				ref = *c.ExternalRef
			} else if c.Txid != nil {
				ref = *c.Txid
			}

			row := db.Raw("SELECT 1 FROM charges WHERE COALESCE(pix_txid, '') = COALESCE(?, '') AND COALESCE(external_ref, '') = COALESCE(?, '')", c.Txid, c.ExternalRef).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}

			if err := db.Exec("INSERT INTO charges (merchant_id, method, status, amount_cents, currency, pix_txid, external_ref, created_at, updated_at) VALUES (?, ?, 'PENDING', ?, 'BRL', ?, ?, now(), now())", demoMerchantID, c.Method, c.AmountCents, c.Txid, c.ExternalRef).Error; err != nil {
				log.Fatalf("failed to insert charge %s: %v", ref, err)
			}
			fmt.Printf("Seeded pending charge: %s (%d cents)\n", ref, c.AmountCents)
		}

		fmt.Println("Sample data seeded successfully")
	},
}

func strPtr(s string) *string {
	return &s
}
