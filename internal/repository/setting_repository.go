package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenacity/ops-backend/internal/model"
)

// SettingRepository reads per-user notification preferences.
type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

// GetByUser returns a user's settings, or the defaults when no record exists.
func (r *SettingRepository) GetByUser(ctx context.Context, userID string) (model.UserSettings, error) {
	s := model.UserSettings{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT lesson_reminder, shift_reminder, invoice_reminder
		 FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&s.LessonReminder, &s.ShiftReminder, &s.InvoiceReminder)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return model.UserSettings{}, err
	}
	return s, nil
}
