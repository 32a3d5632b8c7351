package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationColumns = `
	id, user_id, type, title, message, is_read, booking_id, referral_id, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification

	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.IsRead,
		&n.BookingID,
		&n.ReferralID,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	return &n, nil
}

func (repo *PgRepository) Create(ctx context.Context, n *Notification) (*Notification, error) {
	id := uuid.New()

	row := repo.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, is_read, booking_id, referral_id, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, now())
		RETURNING `+notificationColumns+`
	`, id, n.UserID, n.Type, n.Title, n.Message, n.BookingID, n.ReferralID)

	return scanNotification(row)
}

func (repo *PgRepository) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (repo *PgRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := repo.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE user_id = $1
		  AND is_read = false
	`, userID).Scan(&count)
	return count, err
}

func (repo *PgRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := repo.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = true
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (repo *PgRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := repo.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = true
		WHERE user_id = $1
		  AND is_read = false
	`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
