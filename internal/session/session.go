package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/jobs"
	"github.com/hseol/chapter-translator/internal/pricing"
	"github.com/hseol/chapter-translator/internal/token"
	"github.com/hseol/chapter-translator/internal/translate"
	"github.com/hseol/chapter-translator/pkg/log"
)

// Phase is where a translation run currently stands. Phases move
// forward only; a new run starts over from idle.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseEstimating           Phase = "estimating"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseSubmitted            Phase = "submitted"
	PhasePolling              Phase = "polling"
	PhaseSucceeded            Phase = "succeeded"
	PhaseFailed               Phase = "failed"
)

// PricingSource supplies the current price table.
type PricingSource interface {
	Get(ctx context.Context) (pricing.Table, error)
}

// Submitter hands a translation job to the background queue and
// reports whether a new job was created.
type Submitter interface {
	Submit(ctx context.Context, payload jobs.JobPayload) (jobID string, created bool, err error)
}

// StatusChecker reads a chapter's current translation status.
type StatusChecker interface {
	TranslationStatus(ctx context.Context, chapterID string) (chapter.Status, error)
}

// Saver persists a manual edit of a chapter's translation.
type Saver interface {
	SaveEdit(ctx context.Context, chapterID, content string) error
}

// Confirmer decides whether a quoted run proceeds. A nil Confirmer
// auto-confirms.
type Confirmer func(ctx context.Context, quote *Quote) (bool, error)

// Notifier observes phase transitions. Called outside the session lock.
type Notifier func(phase Phase)

// Quote is an estimate presented before submission.
type Quote struct {
	Estimate token.Estimate `json:"estimate"`
	Cost     *pricing.Cost  `json:"cost,omitempty"`
	Message  string         `json:"message"`
}

// Request is one translation run.
type Request struct {
	NovelID   string
	ChapterID string
	Text      string
	Model     string
	Thinking  bool
}

// Outcome reports how a run ended.
type Outcome struct {
	JobID    string         `json:"job_id"`
	Quote    *Quote         `json:"quote"`
	Declined bool           `json:"declined,omitempty"`
	Status   chapter.Status `json:"status,omitempty"`
	Polls    int            `json:"polls,omitempty"`
}

// Options tune a session.
type Options struct {
	PollInterval time.Duration
	MaxPolls     int
}

// Deps are the session's collaborators.
type Deps struct {
	Estimator token.Estimator
	Prices    PricingSource
	Submitter Submitter
	Statuses  StatusChecker
	Saver     Saver
	Confirmer Confirmer
	Notifier  Notifier
}

// Session drives one reader's translation lifecycle: estimate, confirm,
// submit, poll. It owns a single slot so only one run is in flight.
type Session struct {
	deps Deps
	opts Options
	slot *Slot

	mu    sync.RWMutex
	phase Phase
}

func New(deps Deps, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 100
	}
	return &Session{
		deps:  deps,
		opts:  opts,
		slot:  NewSlot(),
		phase: PhaseIdle,
	}
}

func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Session) SlotState() SlotState {
	return s.slot.State()
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	if s.deps.Notifier != nil {
		s.deps.Notifier(p)
	}
}

// Estimate quotes a chapter without claiming the slot. The text is
// cleaned the same way the translator cleans it so token counts match
// what will actually be sent. A missing price table degrades the quote
// to tokens-only rather than failing it.
func (s *Session) Estimate(ctx context.Context, text, model string) (*Quote, error) {
	cleaned := translate.CleanText(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil, NewError(ErrValidation, "no translatable text")
	}

	est := s.deps.Estimator.Estimate(cleaned)
	quote := &Quote{Estimate: est}

	table, err := s.deps.Prices.Get(ctx)
	if err != nil {
		log.Warn("Pricing unavailable for estimate: %v", err)
		quote.Message = fmt.Sprintf("Estimated %s input / %s output tokens (cost unavailable)",
			humanize.Comma(int64(est.InputTokens)), humanize.Comma(int64(est.OutputTokens)))
		return quote, nil
	}

	cost, err := pricing.ComputeCost(est, table, model)
	if err != nil {
		log.Warn("No price for model %s: %v", model, err)
		quote.Message = fmt.Sprintf("Estimated %s input / %s output tokens (cost unavailable)",
			humanize.Comma(int64(est.InputTokens)), humanize.Comma(int64(est.OutputTokens)))
		return quote, nil
	}

	quote.Cost = &cost
	quote.Message = fmt.Sprintf("Estimated %s input / %s output tokens, about %s",
		humanize.Comma(int64(est.InputTokens)), humanize.Comma(int64(est.OutputTokens)),
		pricing.FormatCost(cost.TotalCost))
	return quote, nil
}

// Translate runs the full lifecycle for one chapter. A second call
// while a run is in flight is a no-op returning a busy error; nothing
// is estimated or submitted.
func (s *Session) Translate(ctx context.Context, req Request) (*Outcome, error) {
	if !s.slot.TryAcquire(req.ChapterID) {
		return nil, NewError(ErrBusy, "a translation is already running").
			WithContext("chapter_id", s.slot.Owner())
	}
	defer s.slot.Release()

	s.setPhase(PhaseEstimating)
	quote, err := s.Estimate(ctx, req.Text, req.Model)
	if err != nil {
		s.setPhase(PhaseFailed)
		return nil, err
	}

	if s.deps.Confirmer != nil {
		s.setPhase(PhaseAwaitingConfirmation)
		ok, err := s.deps.Confirmer(ctx, quote)
		if err != nil {
			s.setPhase(PhaseFailed)
			return nil, WrapError(err, ErrUnknown, "confirmation failed")
		}
		if !ok {
			s.setPhase(PhaseIdle)
			return &Outcome{Quote: quote, Declined: true}, nil
		}
	}

	jobID, created, err := s.deps.Submitter.Submit(ctx, jobs.JobPayload{
		NovelID:   req.NovelID,
		ChapterID: req.ChapterID,
		Thinking:  req.Thinking,
	})
	if err != nil {
		s.setPhase(PhaseFailed)
		return nil, WrapError(err, ErrSubmission, "failed to submit translation job").
			WithContext("chapter_id", req.ChapterID)
	}
	if !created {
		log.Info("Chapter %s already queued as %s, polling it", req.ChapterID, jobID)
	}
	s.setPhase(PhaseSubmitted)

	outcome := &Outcome{JobID: jobID, Quote: quote}
	status, polls, err := s.poll(ctx, req.ChapterID)
	outcome.Status = status
	outcome.Polls = polls
	if err != nil {
		s.setPhase(PhaseFailed)
		return outcome, err
	}
	s.setPhase(PhaseSucceeded)
	return outcome, nil
}

// Begin starts an asynchronous run: it claims the slot, quotes,
// submits, and leaves polling to a background goroutine that releases
// the slot when the run ends. Callers observe progress through Phase
// and the chapter's own status.
func (s *Session) Begin(ctx context.Context, req Request) (*Quote, string, error) {
	if !s.slot.TryAcquire(req.ChapterID) {
		return nil, "", NewError(ErrBusy, "a translation is already running").
			WithContext("chapter_id", s.slot.Owner())
	}

	s.setPhase(PhaseEstimating)
	quote, err := s.Estimate(ctx, req.Text, req.Model)
	if err != nil {
		s.setPhase(PhaseFailed)
		s.slot.Release()
		return nil, "", err
	}

	jobID, created, err := s.deps.Submitter.Submit(ctx, jobs.JobPayload{
		NovelID:   req.NovelID,
		ChapterID: req.ChapterID,
		Thinking:  req.Thinking,
	})
	if err != nil {
		s.setPhase(PhaseFailed)
		s.slot.Release()
		return nil, "", WrapError(err, ErrSubmission, "failed to submit translation job").
			WithContext("chapter_id", req.ChapterID)
	}
	if !created {
		log.Info("Chapter %s already queued as %s, polling it", req.ChapterID, jobID)
	}
	s.setPhase(PhaseSubmitted)

	go func() {
		defer s.slot.Release()
		if _, _, err := s.poll(context.Background(), req.ChapterID); err != nil {
			log.Error("Translation run for chapter %s ended with error: %v", req.ChapterID, err)
			s.setPhase(PhaseFailed)
			return
		}
		s.setPhase(PhaseSucceeded)
	}()

	return quote, jobID, nil
}

// poll watches the chapter status until it is terminal or the poll
// budget runs out. A status that moves backwards (in progress back to
// none) means the job was lost and polling stops early.
func (s *Session) poll(ctx context.Context, chapterID string) (chapter.Status, int, error) {
	s.setPhase(PhasePolling)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var last chapter.Status
	for polls := 1; polls <= s.opts.MaxPolls; polls++ {
		select {
		case <-ctx.Done():
			return last, polls - 1, WrapError(ctx.Err(), ErrPollingTimeout, "polling cancelled").
				WithContext("chapter_id", chapterID)
		case <-ticker.C:
		}

		status, err := s.deps.Statuses.TranslationStatus(ctx, chapterID)
		if err != nil {
			log.Warn("Status check failed for chapter %s (poll %d): %v", chapterID, polls, err)
			continue
		}

		switch status {
		case chapter.StatusCompleted:
			return status, polls, nil
		case chapter.StatusFailed:
			return status, polls, NewError(ErrTranslationFailed, "translation job failed").
				WithContext("chapter_id", chapterID)
		}

		if last == chapter.StatusInProgress && status == chapter.StatusNone {
			return status, polls, NewError(ErrStatusRegressed, "translation job disappeared").
				WithContext("chapter_id", chapterID)
		}
		last = status
	}

	return last, s.opts.MaxPolls, NewError(ErrPollingTimeout, "translation did not finish in time").
		WithContext("chapter_id", chapterID).
		WithContext("polls", s.opts.MaxPolls)
}

// SaveEdit persists a manual edit. Whitespace-only content is rejected
// before the store is touched.
func (s *Session) SaveEdit(ctx context.Context, chapterID, content string) error {
	if err := chapter.ValidateEdit(content); err != nil {
		return WrapError(err, ErrValidation, "refusing to save empty translation").
			WithContext("chapter_id", chapterID)
	}
	if err := s.deps.Saver.SaveEdit(ctx, chapterID, content); err != nil {
		return WrapError(err, ErrSave, "failed to save translation").
			WithContext("chapter_id", chapterID)
	}
	return nil
}
