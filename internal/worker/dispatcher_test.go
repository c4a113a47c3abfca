package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"coachline/internal/models"
	"coachline/internal/repository"
	"coachline/internal/scoring"
)

type fakeStore struct {
	summary   *models.SessionSummary
	chunks    []models.TranscriptChunk
	adviceCh  chan models.CoachingAdvice
	analyzing []bool
}

func (f *fakeStore) UpsertSession(ctx context.Context, callID, slug string, status *models.Status) error {
	return nil
}
func (f *fakeStore) AppendChunk(ctx context.Context, callID, sourceEventID string, speaker models.Speaker, text string, isFinal bool, timestampMs int64) (bool, error) {
	return true, nil
}
func (f *fakeStore) GetChunks(ctx context.Context, callID string, limit int) ([]models.TranscriptChunk, error) {
	return f.chunks, nil
}
func (f *fakeStore) GetSummary(ctx context.Context, callID string) (*models.SessionSummary, error) {
	return f.summary, nil
}
func (f *fakeStore) GetSnapshot(ctx context.Context, callID, slug string, transcriptLimit int) (*repository.Snapshot, error) {
	return nil, nil
}
func (f *fakeStore) SetStatus(ctx context.Context, callID string, status models.Status, lastError *string) error {
	return nil
}
func (f *fakeStore) SetAnalyzing(ctx context.Context, callID string, analyzing bool) error {
	f.analyzing = append(f.analyzing, analyzing)
	return nil
}
func (f *fakeStore) SetAdvice(ctx context.Context, callID string, advice models.CoachingAdvice, lastError *string, analyzing bool) error {
	f.adviceCh <- advice
	return nil
}
func (f *fakeStore) ListSessions(ctx context.Context, status *models.Status, limit, offset int) ([]models.CallSession, int, error) {
	return nil, 0, nil
}
func (f *fakeStore) Subscribe(callID string) (<-chan struct{}, func()) {
	ch := make(chan struct{})
	return ch, func() {}
}

func TestDispatcher_EnqueueRunsHeuristicCycleWithoutModelConfigured(t *testing.T) {
	store := &fakeStore{
		summary: &models.SessionSummary{Slug: "brave-otter", Status: models.StatusInProgress},
		chunks: []models.TranscriptChunk{
			{Speaker: models.SpeakerOther, Text: "please wire transfer the funds now"},
		},
		adviceCh: make(chan models.CoachingAdvice, 4),
	}

	d := NewDispatcher(store, nil, nil, nil, scoring.DefaultStepCaps, func() time.Duration { return 3 * time.Second }, zap.NewNop())
	d.Enqueue("CA1", false)

	select {
	case advice := <-store.adviceCh:
		if advice.RiskLevel == models.RiskLow {
			t.Fatalf("expected wire-transfer language to raise risk above low, got %+v", advice)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heuristic advice to be persisted")
	}
}

func TestDispatcher_EnqueueOnMissingSessionReleasesMailbox(t *testing.T) {
	store := &fakeStore{summary: nil, adviceCh: make(chan models.CoachingAdvice, 1)}
	d := NewDispatcher(store, nil, nil, nil, scoring.DefaultStepCaps, func() time.Duration { return 3 * time.Second }, zap.NewNop())

	d.Enqueue("CA2", false)
	time.Sleep(50 * time.Millisecond)

	d.mu.Lock()
	_, exists := d.mailboxes["CA2"]
	d.mu.Unlock()
	if exists {
		t.Fatal("expected mailbox to be released once the session summary disappears")
	}
}
