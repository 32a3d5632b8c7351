package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afyalink/referral-service/internal/db"
	"github.com/afyalink/referral-service/internal/referral"
)

// simulate hammers the payment callback endpoint with duplicate
// deliveries of the same result and verifies that the ledger and the
// referral settle exactly once. Run seed first and point it at a live
// api-server.

type roundResult struct {
	acks        int64
	ackFailures int64
	settledOK   bool
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rounds := flag.Int("rounds", 20, "number of referrals to settle")
	storm := flag.Int("storm", 8, "concurrent duplicate callbacks per referral")
	failEvery := flag.Int("fail-every", 5, "every Nth round delivers a failure result instead")
	flag.Parse()

	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	physicianID, err := anyPhysician(context.Background(), pool)
	if err != nil {
		log.Fatalf("no physicians found, run seed first: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var settled, broken int
	start := time.Now()

	for round := 0; round < *rounds; round++ {
		wantSuccess := *failEvery == 0 || (round+1)%*failEvery != 0

		res, err := runRound(context.Background(), pool, client, baseURL, physicianID, *storm, wantSuccess)
		if err != nil {
			log.Printf("round %d error: %v", round, err)
			broken++
			continue
		}
		if res.settledOK {
			settled++
		} else {
			broken++
		}
		log.Printf("round %d: acks=%d ack_failures=%d settled_ok=%v success=%v",
			round, res.acks, res.ackFailures, res.settledOK, wantSuccess)
	}

	log.Printf("simulation done in %s: rounds=%d settled=%d broken=%d",
		time.Since(start), *rounds, settled, broken)
	if broken > 0 {
		os.Exit(1)
	}
}

func anyPhysician(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	var id uuid.UUID
	err := pool.QueryRow(ctx, `SELECT id FROM physicians LIMIT 1`).Scan(&id)
	return id, err
}

// runRound plants a pending-payment referral with a pending ledger
// entry, storms the callback endpoint with identical deliveries, then
// checks that both rows settled exactly once.
func runRound(ctx context.Context, pool *pgxpool.Pool, client *http.Client, baseURL string, physicianID uuid.UUID, storm int, success bool) (*roundResult, error) {
	referralID := uuid.New()
	correlationID := "SIM-" + uuid.New().String()
	phone := "254712345678"

	_, err := pool.Exec(ctx, `
		INSERT INTO referrals (
			id, physician_id, patient_name, medical_history, lab_results,
			diagnosis, referring_hospital, receiving_facility, priority,
			status, referral_token, patient_phone, stk_phone_number
		)
		VALUES ($1, $2, 'Sim Patient', '', 'sim labs', 'sim diagnosis',
			'Sim Hospital', 'Sim Referral Centre', 'Routine',
			'pending-payment', $3, $4, $4)
	`, referralID, physicianID, referral.GenerateToken(), phone)
	if err != nil {
		return nil, fmt.Errorf("insert referral: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO payments (id, referral_id, phone_number, amount, status, correlation_id)
		VALUES ($1, $2, $3, 1000, 'pending', $4)
	`, uuid.New(), referralID, phone, correlationID)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	body := callbackBody(correlationID, phone, success)

	res := &roundResult{}
	var wg sync.WaitGroup
	for i := 0; i < storm; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Post(baseURL+"/api/payments/callback", "application/json", bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&res.ackFailures, 1)
				return
			}
			defer resp.Body.Close()

			var ack struct {
				ResultCode int `json:"ResultCode"`
			}
			if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&ack) != nil || ack.ResultCode != 0 {
				atomic.AddInt64(&res.ackFailures, 1)
				return
			}
			atomic.AddInt64(&res.acks, 1)
		}()
	}
	wg.Wait()

	var paymentStatus, referralStatus string
	err = pool.QueryRow(ctx, `
		SELECT p.status, r.status
		FROM payments p JOIN referrals r ON r.id = p.referral_id
		WHERE p.correlation_id = $1
	`, correlationID).Scan(&paymentStatus, &referralStatus)
	if err != nil {
		return nil, fmt.Errorf("check settlement: %w", err)
	}

	if success {
		res.settledOK = paymentStatus == "completed" && referralStatus == "paid"
	} else {
		res.settledOK = paymentStatus == "failed" && referralStatus == "pending-payment"
	}
	return res, nil
}

func callbackBody(correlationID, phone string, success bool) []byte {
	resultCode := 0
	resultDesc := "The service request is processed successfully."
	items := []map[string]any{
		{"Name": "Amount", "Value": 1000.0},
		{"Name": "MpesaReceiptNumber", "Value": "SIM" + uuid.New().String()[:8]},
		{"Name": "PhoneNumber", "Value": phone},
	}
	if !success {
		resultCode = 1032
		resultDesc = "Request cancelled by user"
		items = nil
	}

	payload := map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"MerchantRequestID": uuid.New().String(),
				"CheckoutRequestID": correlationID,
				"ResultCode":        resultCode,
				"ResultDesc":        resultDesc,
				"CallbackMetadata":  map[string]any{"Item": items},
			},
		},
	}
	body, _ := json.Marshal(payload)
	return body
}
