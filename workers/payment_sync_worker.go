// workers/payment_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"sportconnect/models"

	"gorm.io/gorm"
)

// PaymentSyncClient polls the payment service for processor charge records
// and reconciles them onto local escrow rows. Stakes are created locally
// first; the processor confirms the capture asynchronously, and this worker
// backfills the stripe_payment_id so settlements can be traced end to end.
type PaymentSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewPaymentSyncClient(db *gorm.DB) *PaymentSyncClient {
	baseURL := os.Getenv("PAYMENT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("PAYMENT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("SPORT_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("SPORT_SERVICE_TOKEN environment variable is required for payment sync")
	}

	return &PaymentSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ChargeRecord is one captured charge as reported by the payment service.
type ChargeRecord struct {
	StripePaymentID string    `json:"stripe_payment_id"`
	ChallengeID     string    `json:"challenge_id"`
	PayerID         string    `json:"payer_id"`
	Amount          int64     `json:"amount"`
	CapturedAt      time.Time `json:"captured_at"`
}

func (c *PaymentSyncClient) GetCapturedCharges(ctx context.Context, since time.Time) ([]ChargeRecord, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/internal/charges", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payment service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Charges []ChargeRecord `json:"charges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode payment service response: %w", err)
	}

	return response.Charges, nil
}

// PollPayments reconciles captured charges onto local escrow rows on a ticker.
func PollPayments(ctx context.Context, client *PaymentSyncClient, pollInterval time.Duration) {
	log.Println("Starting payment reconciliation polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Payment polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			charges, err := client.GetCapturedCharges(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling charges: %v", err)
				continue
			}
			if len(charges) == 0 {
				continue
			}

			log.Printf("📥 Received %d captured charge(s) from payment service.", len(charges))

			var reconciled, skipped int
			for _, charge := range charges {
				// Match on the escrow row the stake handler created. The
				// processor id is only set once; a re-delivered charge
				// matches zero rows and is skipped.
				res := client.DB.Model(&models.Payment{}).
					Where("challenge_id = ? AND payer_id = ? AND stripe_payment_id IS NULL",
						charge.ChallengeID, charge.PayerID).
					Update("stripe_payment_id", charge.StripePaymentID)
				if res.Error != nil {
					log.Printf("❌ Failed to reconcile charge %s: %v", charge.StripePaymentID, res.Error)
					continue
				}
				if res.RowsAffected == 0 {
					skipped++
					continue
				}
				reconciled++
			}

			// Advance the window only after a successful pass so a failed
			// tick retries the same range.
			lastSyncTime = tickTime
			log.Printf("✅ Reconciled %d charge(s), %d already reconciled.", reconciled, skipped)
		}
	}
}
