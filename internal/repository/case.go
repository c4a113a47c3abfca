package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"coachline/internal/models"
)

// ErrCaseNotFound is returned when a slug has no provisioned case row.
var ErrCaseNotFound = errors.New("case not found")

// ErrPhoneAlreadySet is returned by SetPhoneNumber when the case already
// carries a different number and no override was requested.
var ErrPhoneAlreadySet = errors.New("phone number already on file")

// CaseRepository backs the out-of-core GET /start, PUT /phone and POST
// /call collaborators plus the C12 alert notifier's mute bookkeeping.
type CaseRepository interface {
	Create(ctx context.Context, slug string) error
	GetBySlug(ctx context.Context, slug string) (*models.Case, error)
	SetPhoneNumber(ctx context.Context, slug, phoneNumber string, override bool) error
	SetAlertChatID(ctx context.Context, slug string, chatID int64) error
	SetAlertsMuted(ctx context.Context, slug string, muted bool) error
}

type caseRepository struct {
	db *sqlx.DB
}

func NewCaseRepository(db *sqlx.DB) CaseRepository {
	return &caseRepository{db: db}
}

func (r *caseRepository) Create(ctx context.Context, slug string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO cases (slug) VALUES ($1) ON CONFLICT (slug) DO NOTHING`, slug)
	return err
}

func (r *caseRepository) GetBySlug(ctx context.Context, slug string) (*models.Case, error) {
	var c models.Case
	query := `SELECT slug, phone_number, alert_chat_id, alerts_muted FROM cases WHERE slug = $1`
	if err := r.db.GetContext(ctx, &c, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) SetPhoneNumber(ctx context.Context, slug, phoneNumber string, override bool) error {
	existing, err := r.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !override && existing.PhoneNumber != nil && *existing.PhoneNumber != phoneNumber {
		return ErrPhoneAlreadySet
	}

	_, err = r.db.ExecContext(ctx, `UPDATE cases SET phone_number = $1 WHERE slug = $2`, phoneNumber, slug)
	return err
}

func (r *caseRepository) SetAlertChatID(ctx context.Context, slug string, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE cases SET alert_chat_id = $1 WHERE slug = $2`, chatID, slug)
	return err
}

func (r *caseRepository) SetAlertsMuted(ctx context.Context, slug string, muted bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE cases SET alerts_muted = $1 WHERE slug = $2`, muted, slug)
	return err
}
