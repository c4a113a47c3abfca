package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"coachline/internal/modelscorer"
	"coachline/internal/models"
	"coachline/internal/notifier"
	"coachline/internal/repository"
	"coachline/internal/scoring"
)

const transcriptWindow = 40

// mailbox is one call's logical scheduling state: spec.md §4.7's
// (pending, running, force_model) triple plus the backoff/last-run state
// the run loop needs across cycles.
type mailbox struct {
	mu             sync.Mutex
	pending        bool
	running        bool
	forceModel     bool
	lastModelRunAt time.Time
	backoff        *Backoff
}

// Dispatcher runs one serialized cycle loop per call_id, fanned out across
// goroutines. There is no shared teacher component to adapt here — the
// teacher's Processor loop polls a fixed ticker across all chats at once,
// which cannot express per-call serialization with cross-call parallelism,
// so this is a fresh implementation of spec.md §4.7/§5 built from its
// concurrency contract directly.
type Dispatcher struct {
	store       repository.LiveStore
	modelClient *modelscorer.Client
	caseRepo    repository.CaseRepository
	notifierBot *notifier.Bot
	stepCaps    scoring.StepCaps
	minInterval func() time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	mailboxes map[string]*mailbox
}

func NewDispatcher(
	store repository.LiveStore,
	modelClient *modelscorer.Client,
	caseRepo repository.CaseRepository,
	notifierBot *notifier.Bot,
	stepCaps scoring.StepCaps,
	minInterval func() time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:       store,
		modelClient: modelClient,
		caseRepo:    caseRepo,
		notifierBot: notifierBot,
		stepCaps:    stepCaps,
		minInterval: minInterval,
		logger:      logger,
		mailboxes:   make(map[string]*mailbox),
	}
}

// Enqueue implements enqueue(call_id, force): marks a run pending and
// starts the call's loop goroutine if it isn't already running.
func (d *Dispatcher) Enqueue(callID string, force bool) {
	mb := d.getOrCreateMailbox(callID)

	mb.mu.Lock()
	mb.pending = true
	if force {
		mb.forceModel = true
	}
	start := !mb.running
	if start {
		mb.running = true
	}
	mb.mu.Unlock()

	if start {
		go d.runLoop(callID, mb)
	}
}

func (d *Dispatcher) getOrCreateMailbox(callID string) *mailbox {
	d.mu.Lock()
	defer d.mu.Unlock()
	mb, ok := d.mailboxes[callID]
	if !ok {
		mb = &mailbox{backoff: NewBackoff()}
		d.mailboxes[callID] = mb
	}
	return mb
}

func (d *Dispatcher) releaseMailbox(callID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mailboxes, callID)
}

// runLoop implements the `while pending: ... run_cycle(f)` loop, serialized
// per call by construction: only one goroutine is ever running for a given
// mailbox, guarded by the running flag under mb.mu.
func (d *Dispatcher) runLoop(callID string, mb *mailbox) {
	for {
		mb.mu.Lock()
		if !mb.pending {
			mb.running = false
			mb.mu.Unlock()
			return
		}
		mb.pending = false
		force := mb.forceModel
		mb.forceModel = false
		mb.mu.Unlock()

		terminal := d.runCycle(context.Background(), callID, mb, force)
		if terminal {
			d.releaseMailbox(callID)
			return
		}
	}
}

// runCycle implements the seven-step cycle of spec.md §4.7. It reports
// whether the call's mailbox slot should be released (summary vanished).
func (d *Dispatcher) runCycle(ctx context.Context, callID string, mb *mailbox, force bool) bool {
	summary, err := d.store.GetSummary(ctx, callID)
	if err != nil {
		d.logger.Error("failed to load session summary", zap.String("call_id", callID), zap.Error(err))
		return false
	}
	if summary == nil {
		return true
	}

	callEnded := summary.Status.Terminal()

	chunks, err := d.store.GetChunks(ctx, callID, transcriptWindow)
	if err != nil {
		d.logger.Error("failed to load transcript chunks", zap.String("call_id", callID), zap.Error(err))
		return false
	}
	if len(chunks) == 0 {
		return false
	}

	var previous *models.CoachingAdvice
	if summary.LastAdviceAt != nil {
		previous = &summary.Advice
	}

	raw := scoring.Heuristic(chunks)
	heuristic := scoring.Stabilize(previous, raw, d.stepCaps)
	heuristic.UpdatedAtMs = time.Now().UnixMilli()

	if err := d.store.SetAdvice(ctx, callID, heuristic, nil, false); err != nil {
		d.logger.Error("failed to persist heuristic advice", zap.String("call_id", callID), zap.Error(err))
	}

	if !d.shouldRunModel(force, callEnded, mb) {
		return false
	}

	d.runModelStage(ctx, callID, summary.Slug, chunks, previous, heuristic, mb)
	return false
}

func (d *Dispatcher) shouldRunModel(force, callEnded bool, mb *mailbox) bool {
	if d.modelClient == nil || !d.modelClient.Configured() {
		return false
	}
	now := time.Now()
	if mb.backoff.CoolingDown(now) {
		return false
	}
	return force || callEnded || now.Sub(mb.lastModelRunAt) >= d.minInterval()
}

func (d *Dispatcher) runModelStage(ctx context.Context, callID, slug string, chunks []models.TranscriptChunk, previous *models.CoachingAdvice, heuristic models.CoachingAdvice, mb *mailbox) {
	if err := d.store.SetAnalyzing(ctx, callID, true); err != nil {
		d.logger.Error("failed to mark session analyzing", zap.String("call_id", callID), zap.Error(err))
	}

	modelCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	modelAdvice, err := d.modelClient.Score(modelCtx, chunks, previous)
	cancel()
	mb.lastModelRunAt = time.Now()

	if err != nil {
		lastError := "Live analysis is delayed."
		var modelErr *modelscorer.ModelError
		if errors.As(err, &modelErr) && modelErr.Status == 429 {
			lastError = "Live analysis is temporarily rate-limited."
			mb.backoff.OnRateLimited(time.Now(), modelErr.RetryAfterMs)
		} else {
			mb.backoff.OnNonRateLimitFailure()
		}
		d.logger.Warn("model scoring failed", zap.String("call_id", callID), zap.Error(err))
		if err := d.store.SetAdvice(ctx, callID, heuristic, &lastError, false); err != nil {
			d.logger.Error("failed to persist delayed advice", zap.String("call_id", callID), zap.Error(err))
		}
		return
	}

	if modelAdvice == nil {
		if err := d.store.SetAdvice(ctx, callID, heuristic, nil, false); err != nil {
			d.logger.Error("failed to persist heuristic advice after unconfigured model", zap.String("call_id", callID), zap.Error(err))
		}
		return
	}

	stabilized := scoring.Stabilize(&heuristic, *modelAdvice, d.stepCaps)
	stabilized.UpdatedAtMs = time.Now().UnixMilli()
	if err := d.store.SetAdvice(ctx, callID, stabilized, nil, false); err != nil {
		d.logger.Error("failed to persist model advice", zap.String("call_id", callID), zap.Error(err))
	}
	mb.backoff.OnSuccess()

	d.maybeAlert(ctx, slug, previous, stabilized)
}

// maybeAlert fires the C12 trusted-contact alert exactly on the
// low/medium-to-high transition, fire-and-forget on its own goroutine.
func (d *Dispatcher) maybeAlert(ctx context.Context, slug string, previous *models.CoachingAdvice, next models.CoachingAdvice) {
	if next.RiskLevel != models.RiskHigh {
		return
	}
	if previous != nil && previous.RiskLevel == models.RiskHigh {
		return
	}
	if d.notifierBot == nil || d.caseRepo == nil {
		return
	}

	c, err := d.caseRepo.GetBySlug(ctx, slug)
	if err != nil || c == nil || c.AlertChatID == nil || c.AlertsMuted {
		return
	}

	chatID := *c.AlertChatID
	go d.notifierBot.AlertElevatedRisk(chatID, slug)
}
