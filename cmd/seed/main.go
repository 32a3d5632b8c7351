package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afyalink/referral-service/internal/db"
	"github.com/afyalink/referral-service/internal/referral"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	migrationsDir := flag.String("migrations", "migrations", "path to migrations directory")
	physicianCount := flag.Int("physicians", 25, "number of physicians to seed")
	clinicCount := flag.Int("clinics", 10, "number of clinics to seed")
	referralCount := flag.Int("referrals", 200, "number of referrals to seed")
	flag.Parse()

	log.Println("seed starting")

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

	n, err := db.NewMigrator(pool, *migrationsDir).Up(context.Background())
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("applied %d migrations", n)

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAdmin(context.Background(), pool); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	physicianIDs, err := seedPhysicians(context.Background(), pool, *physicianCount)
	if err != nil {
		log.Fatalf("seed physicians: %v", err)
	}
	if err := seedClinics(context.Background(), pool, *clinicCount); err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	if err := seedReferrals(context.Background(), pool, physicianIDs, *referralCount); err != nil {
		log.Fatalf("seed referrals: %v", err)
	}

	log.Println("seed complete")
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, role, full_name, email, phone_number, is_active)
		VALUES ($1, 'admin', 'System Administrator', 'admin@afyalink.example', '+254700000000', true)
		ON CONFLICT (email) DO NOTHING
	`, uuid.New())
	return err
}

func seedPhysicians(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d physicians", count)

	hospitals := []string{
		"Kenyatta National Hospital",
		"Moi Teaching and Referral Hospital",
		"Aga Khan University Hospital",
		"Coast General Hospital",
		"Nakuru Level 5 Hospital",
	}
	specializations := []string{
		"Cardiology",
		"Oncology",
		"General Surgery",
		"Internal Medicine",
		"Pediatrics",
		"Nephrology",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		userID := uuid.New()
		name := gofakeit.Name()
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, role, full_name, email, phone_number, is_active)
			VALUES ($1, 'physician', $2, $3, $4, true)
		`, userID, name, gofakeit.Email(), kenyanPhone())
		if err != nil {
			return nil, err
		}

		physID := uuid.New()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO physicians (id, user_id, license_id, hospital, specialization, is_verified)
			VALUES ($1, $2, $3, $4, $5, true)
		`, physID, userID,
			"KMP-"+gofakeit.DigitN(6),
			hospitals[gofakeit.Number(0, len(hospitals)-1)],
			spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, physID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Println("physicians seeded")
	return ids, nil
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clinics", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, facility_name, location, max_patients_per_day, contact_phone, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, true)
		`, uuid.New(),
			gofakeit.LastName()+" Clinic",
			gofakeit.Company()+" Medical Centre",
			gofakeit.City(),
			gofakeit.Number(10, 40),
			kenyanPhone())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Println("clinics seeded")
	return nil
}

func seedReferrals(ctx context.Context, pool *pgxpool.Pool, physicianIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d referrals", count)

	if len(physicianIDs) == 0 {
		log.Println("no physicians, skipping referrals")
		return nil
	}

	priorities := []string{"Routine", "Routine", "Routine", "Urgent", "Emergency"}
	statuses := []string{"pending-admin", "pending-admin", "pending-payment", "paid", "completed", "cancelled"}
	diagnoses := []string{
		"Suspected myocardial infarction",
		"Chronic kidney disease stage 4",
		"Breast mass requiring biopsy",
		"Uncontrolled type 2 diabetes",
		"Complicated fracture of the femur",
	}

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			physID := physicianIDs[gofakeit.Number(0, len(physicianIDs)-1)]
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			patientID := "MRN-" + gofakeit.DigitN(8)

			var phone, stkPhone *string
			var paidAt, completedAt *time.Time
			if status != "pending-admin" {
				p := kenyanPhone()
				phone, stkPhone = &p, &p
			}
			if status == "paid" || status == "completed" {
				t := time.Now().Add(-time.Duration(gofakeit.Number(1, 72)) * time.Hour)
				paidAt = &t
				completedAt = &t
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO referrals (
					id, physician_id, patient_name, patient_id, medical_history,
					lab_results, diagnosis, referring_hospital, receiving_facility,
					priority, status, referral_token, patient_phone, stk_phone_number,
					paid_at, completed_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			`, uuid.New(), physID, gofakeit.Name(), patientID,
				gofakeit.Sentence(12),
				gofakeit.Sentence(8),
				diagnoses[gofakeit.Number(0, len(diagnoses)-1)],
				gofakeit.Company()+" Hospital",
				gofakeit.Company()+" Referral Centre",
				priorities[gofakeit.Number(0, len(priorities)-1)],
				status,
				referral.GenerateToken(),
				phone, stkPhone, paidAt, completedAt)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Println("referrals seeded")
	return nil
}

func kenyanPhone() string {
	return "+2547" + gofakeit.DigitN(8)
}
