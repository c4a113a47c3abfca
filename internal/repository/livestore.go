package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"coachline/internal/crypto"
	"coachline/internal/models"
)

// ErrSlugMismatch is returned by GetSnapshot when call_id exists but under a
// different slug than the caller presented.
var ErrSlugMismatch = errors.New("slug does not match call")

// Snapshot is the C3 get_snapshot result, feeding C8's GET /live.
type Snapshot struct {
	models.CallSession
	Transcript []models.TranscriptChunk
}

// LiveStore is the C3 contract: the session/transcript persistence the
// ingest path and the per-call worker both read and write.
type LiveStore interface {
	UpsertSession(ctx context.Context, callID, slug string, status *models.Status) error
	AppendChunk(ctx context.Context, callID, sourceEventID string, speaker models.Speaker, text string, isFinal bool, timestampMs int64) (inserted bool, err error)
	GetChunks(ctx context.Context, callID string, limit int) ([]models.TranscriptChunk, error)
	GetSummary(ctx context.Context, callID string) (*models.SessionSummary, error)
	GetSnapshot(ctx context.Context, callID, slug string, transcriptLimit int) (*Snapshot, error)
	SetStatus(ctx context.Context, callID string, status models.Status, lastError *string) error
	SetAnalyzing(ctx context.Context, callID string, analyzing bool) error
	SetAdvice(ctx context.Context, callID string, advice models.CoachingAdvice, lastError *string, analyzing bool) error
	ListSessions(ctx context.Context, status *models.Status, limit, offset int) ([]models.CallSession, int, error)

	// Subscribe registers interest in row changes for callID, for C8's
	// long-poll GET /live to wake up without a fixed poll cadence. The
	// returned cancel func must be called once the subscriber stops
	// watching.
	Subscribe(callID string) (<-chan struct{}, func())
}

type liveStore struct {
	db         *sqlx.DB
	keyManager *crypto.KeyManager
	notifier   *Notifier
	logger     *zap.Logger
}

func NewLiveStore(db *sqlx.DB, keyManager *crypto.KeyManager, notifier *Notifier, logger *zap.Logger) LiveStore {
	return &liveStore{db: db, keyManager: keyManager, notifier: notifier, logger: logger}
}

func (s *liveStore) UpsertSession(ctx context.Context, callID, slug string, status *models.Status) error {
	var statusVal *string
	if status != nil {
		v := string(*status)
		statusVal = &v
	}

	query := `
		INSERT INTO sessions (call_id, slug, status, updated_at)
		VALUES ($1, $2, COALESCE($3, 'unknown'), now())
		ON CONFLICT (call_id) DO UPDATE SET updated_at = now()
	`
	if _, err := s.db.ExecContext(ctx, query, callID, slug, statusVal); err != nil {
		return err
	}
	s.notifier.publishSession(callID)
	return nil
}

func (s *liveStore) AppendChunk(ctx context.Context, callID, sourceEventID string, speaker models.Speaker, text string, isFinal bool, timestampMs int64) (bool, error) {
	encrypted, err := s.keyManager.EncryptChunkText(text)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO transcript_chunks (call_id, source_event_id, speaker, text, timestamp_ms, is_final)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (call_id, source_event_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, callID, sourceEventID, speaker, encrypted, timestampMs, isFinal)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		s.notifier.publishChunk(callID)
	}
	return rows > 0, nil
}

type chunkRow struct {
	ID          int64  `db:"id"`
	CallID      string `db:"call_id"`
	Speaker     string `db:"speaker"`
	Text        string `db:"text"`
	TimestampMs int64  `db:"timestamp_ms"`
	IsFinal     bool   `db:"is_final"`
}

func (s *liveStore) GetChunks(ctx context.Context, callID string, limit int) ([]models.TranscriptChunk, error) {
	var rows []chunkRow
	query := `
		SELECT id, call_id, speaker, text, timestamp_ms, is_final
		FROM (
			SELECT id, call_id, speaker, text, timestamp_ms, is_final
			FROM transcript_chunks
			WHERE call_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`
	if err := s.db.SelectContext(ctx, &rows, query, callID, limit); err != nil {
		return nil, err
	}

	chunks := make([]models.TranscriptChunk, 0, len(rows))
	for _, r := range rows {
		text, err := s.keyManager.DecryptChunkText(r.Text)
		if err != nil {
			s.logger.Error("failed to decrypt transcript chunk", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		chunks = append(chunks, models.TranscriptChunk{
			ID:          r.ID,
			CallID:      r.CallID,
			Speaker:     models.Speaker(r.Speaker),
			Text:        text,
			TimestampMs: r.TimestampMs,
			IsFinal:     r.IsFinal,
		})
	}
	return chunks, nil
}

func (s *liveStore) GetSummary(ctx context.Context, callID string) (*models.SessionSummary, error) {
	var row models.SessionSummary
	query := `SELECT slug, status, last_advice_at, advice FROM sessions WHERE call_id = $1`
	if err := s.db.GetContext(ctx, &row, query, callID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (s *liveStore) GetSnapshot(ctx context.Context, callID, slug string, transcriptLimit int) (*Snapshot, error) {
	var session models.CallSession
	query := `
		SELECT call_id, slug, status, assistant_muted, analyzing, last_error, advice, last_advice_at, updated_at
		FROM sessions WHERE call_id = $1
	`
	if err := s.db.GetContext(ctx, &session, query, callID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if session.Slug != slug {
		return nil, ErrSlugMismatch
	}

	chunks, err := s.GetChunks(ctx, callID, transcriptLimit)
	if err != nil {
		return nil, err
	}

	return &Snapshot{CallSession: session, Transcript: chunks}, nil
}

func (s *liveStore) SetStatus(ctx context.Context, callID string, status models.Status, lastError *string) error {
	query := `UPDATE sessions SET status = $1, last_error = COALESCE($2, last_error), updated_at = now() WHERE call_id = $3`
	if _, err := s.db.ExecContext(ctx, query, string(status), lastError, callID); err != nil {
		return err
	}
	s.notifier.publishSession(callID)
	return nil
}

func (s *liveStore) SetAnalyzing(ctx context.Context, callID string, analyzing bool) error {
	query := `UPDATE sessions SET analyzing = $1, updated_at = now() WHERE call_id = $2`
	if _, err := s.db.ExecContext(ctx, query, analyzing, callID); err != nil {
		return err
	}
	s.notifier.publishSession(callID)
	return nil
}

// ListSessions is the cross-slug oversight query behind GET
// /api/admin/sessions, adapted from the teacher's incidentHandler
// status-filtered listing.
func (s *liveStore) ListSessions(ctx context.Context, status *models.Status, limit, offset int) ([]models.CallSession, int, error) {
	var sessions []models.CallSession
	var total int

	if status != nil {
		countQuery := `SELECT COUNT(*) FROM sessions WHERE status = $1`
		if err := s.db.GetContext(ctx, &total, countQuery, string(*status)); err != nil {
			return nil, 0, err
		}
		query := `
			SELECT call_id, slug, status, assistant_muted, analyzing, last_error, advice, last_advice_at, updated_at
			FROM sessions WHERE status = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3
		`
		if err := s.db.SelectContext(ctx, &sessions, query, string(*status), limit, offset); err != nil {
			return nil, 0, err
		}
		return sessions, total, nil
	}

	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sessions`); err != nil {
		return nil, 0, err
	}
	query := `
		SELECT call_id, slug, status, assistant_muted, analyzing, last_error, advice, last_advice_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT $1 OFFSET $2
	`
	if err := s.db.SelectContext(ctx, &sessions, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (s *liveStore) SetAdvice(ctx context.Context, callID string, advice models.CoachingAdvice, lastError *string, analyzing bool) error {
	query := `
		UPDATE sessions
		SET advice = $1, last_error = $2, analyzing = $3, last_advice_at = now(), updated_at = now()
		WHERE call_id = $4
	`
	if _, err := s.db.ExecContext(ctx, query, advice, lastError, analyzing, callID); err != nil {
		return err
	}
	s.notifier.publishSession(callID)
	return nil
}

func (s *liveStore) Subscribe(callID string) (<-chan struct{}, func()) {
	return s.notifier.Subscribe(callID)
}
