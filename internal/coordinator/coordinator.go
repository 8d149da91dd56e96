// Package coordinator drives a single document-processing job through
// submission and status polling to a terminal outcome.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/entity"
	"github.com/anthill1650-eng/Medscan/internal/scanapi"
)

// ErrNoImage is returned by Submit when no image handle was supplied.
// It is a precondition failure: no network request is issued.
var ErrNoImage = errors.New("no image selected")

// SubmissionError means the submission request itself failed; no session was
// created and the caller may submit again.
type SubmissionError struct {
	Reason string
	Cause  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %s", e.Reason)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// PollErrorPolicy decides how a transport failure on a single status poll is
// charged against the attempt budget.
type PollErrorPolicy int

const (
	// PollErrorCountsAttempt treats every scheduled round as one attempt no
	// matter how it fails. Keeps elapsed time bounded by interval*MaxAttempts.
	PollErrorCountsAttempt PollErrorPolicy = iota
	// PollErrorFreeRetry does not charge transport failures against the
	// budget. Consecutive failures are still capped at MaxAttempts so a dead
	// network terminates.
	PollErrorFreeRetry
)

// OutcomeKind classifies how tracking ended.
type OutcomeKind string

const (
	OutcomeDone      OutcomeKind = "done"
	OutcomeJobFailed OutcomeKind = "job_failed"
	// OutcomeTimedOut is a soft outcome: the poll budget ran out with the job
	// still in flight. The caller may track again or re-submit.
	OutcomeTimedOut OutcomeKind = "timed_out"
)

// Outcome is the terminal result of Track.
type Outcome struct {
	Kind        OutcomeKind
	Snapshot    Snapshot
	ErrorDetail string
}

// Snapshot is the coordinator's current best-known view of the job,
// possibly partial. The presentation layer only ever sees copies.
type Snapshot struct {
	DocID       string
	Status      constants.DocStatus
	Pages       []entity.Page
	Summary     string
	Labs        *entity.LabReport
	ErrorDetail string
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Pages != nil {
		out.Pages = make([]entity.Page, len(s.Pages))
		copy(out.Pages, s.Pages)
	}
	return out
}

// API is what the coordinator needs from the backend.
type API interface {
	Upload(ctx context.Context, files []scanapi.UploadFile) (*entity.DocResult, error)
	Status(ctx context.Context, docID string) (*entity.StatusResponse, error)
}

// Config holds the polling budget. Zero values fall back to the defaults of
// the original client: 2s interval, 60 attempts (~120s overall).
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	ErrorPolicy  PollErrorPolicy
}

type Option func(*Coordinator)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.clock = c
		}
	}
}

// WithOnUpdate registers a callback invoked with a snapshot copy after
// submission and after every poll that changes status or result.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(co *Coordinator) { co.onUpdate = fn }
}

// Coordinator owns one job at a time. It is safe to read the snapshot from
// another goroutine while Track runs; Submit/Track themselves are sequential.
type Coordinator struct {
	api      API
	cfg      Config
	clock    Clock
	logger   *slog.Logger
	onUpdate func(Snapshot)

	mu              sync.Mutex
	snapshot        Snapshot
	attempts        int
	deadlineReached bool
	active          bool
}

func New(api API, cfg Config, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	c := &Coordinator{api: api, cfg: cfg, clock: realClock{}, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Snapshot returns a copy of the current job view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.clone()
}

// Submit sends the captured images to the backend and stores the immediate
// (possibly partial) snapshot so there is something to show before the first
// poll. It does not start polling; call Track with the returned DocID.
func (c *Coordinator) Submit(ctx context.Context, files ...scanapi.UploadFile) (Snapshot, error) {
	if len(files) == 0 {
		return Snapshot{}, ErrNoImage
	}

	res, err := c.api.Upload(ctx, files)
	if err != nil {
		c.logger.Error("coordinator.submit_failed", "error", err)
		return Snapshot{}, &SubmissionError{Reason: err.Error(), Cause: err}
	}

	status := res.Status
	if !status.IsValid() {
		status = constants.StatusQueued
	}

	c.mu.Lock()
	c.snapshot = Snapshot{
		DocID:   res.DocID,
		Status:  status,
		Pages:   res.Pages,
		Summary: res.Summary,
		Labs:    res.Labs,
	}
	c.attempts = 0
	c.deadlineReached = false
	c.active = true
	snap := c.snapshot.clone()
	c.mu.Unlock()

	c.logger.Info("coordinator.submitted", "doc_id", snap.DocID, "status", snap.Status, "pages", len(snap.Pages))
	c.emit(snap)
	return snap, nil
}

// Track polls the job until it reaches a terminal status or the attempt
// budget runs out. The only suspension points are the inter-poll pause and
// the outstanding request; cancellation is observed between polls.
func (c *Coordinator) Track(ctx context.Context, docID string) (Outcome, error) {
	if docID == "" {
		return Outcome{}, fmt.Errorf("doc id is required")
	}

	c.mu.Lock()
	if c.snapshot.DocID == docID && c.snapshot.Status.IsTerminal() {
		// Terminal statuses are absorbing: answer from the stored snapshot
		// without issuing another request.
		out := c.terminalOutcomeLocked()
		c.mu.Unlock()
		return out, nil
	}
	if c.snapshot.DocID != docID {
		// Resuming a job this instance has not seen (e.g. track after
		// restart of the presentation flow): start a fresh session.
		c.snapshot = Snapshot{DocID: docID, Status: constants.StatusQueued}
	}
	c.attempts = 0
	c.deadlineReached = false
	c.active = true
	c.mu.Unlock()

	transportFailures := 0

	for attempt := 1; attempt <= c.cfg.MaxAttempts; {
		if err := c.clock.Pause(ctx, c.cfg.PollInterval); err != nil {
			// Cancelled between polls: stop, leave the session non-terminal.
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			c.logger.Info("coordinator.track_cancelled", "doc_id", docID, "attempt", attempt)
			return Outcome{}, err
		}

		resp, err := c.api.Status(ctx, docID)
		if err != nil {
			// A single failed poll is "no new information this round".
			c.logger.Warn("coordinator.poll_failed", "doc_id", docID, "attempt", attempt, "error", err)
			if c.cfg.ErrorPolicy == PollErrorCountsAttempt {
				attempt++
				c.bumpAttempts()
			} else {
				transportFailures++
				if transportFailures >= c.cfg.MaxAttempts {
					break
				}
			}
			continue
		}
		transportFailures = 0

		changed, terminal := c.reconcile(resp)
		if changed {
			c.emit(c.Snapshot())
		}
		if terminal {
			c.mu.Lock()
			out := c.terminalOutcomeLocked()
			c.mu.Unlock()
			c.logger.Info("coordinator.track_finished", "doc_id", docID, "outcome", out.Kind, "attempts", attempt)
			return out, nil
		}

		attempt++
		c.bumpAttempts()
	}

	// Budget exhausted with the job still in flight: a soft outcome, not an
	// error. Counters reset so the caller may track again with a fresh budget.
	c.mu.Lock()
	c.deadlineReached = true
	c.active = false
	snap := c.snapshot.clone()
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Warn("coordinator.track_timed_out", "doc_id", docID, "max_attempts", c.cfg.MaxAttempts)
	return Outcome{Kind: OutcomeTimedOut, Snapshot: snap}, nil
}

func (c *Coordinator) bumpAttempts() {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
}

// reconcile merges one status observation into the snapshot. A populated
// result replaces the stored pages; an empty or missing one updates status
// only, so a momentarily incomplete payload never erases a rendered result.
func (c *Coordinator) reconcile(resp *entity.StatusResponse) (changed, terminal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.snapshot

	if c.snapshot.Status.IsTerminal() {
		return false, true
	}

	if resp.Status.IsValid() && resp.Status != c.snapshot.Status {
		c.snapshot.Status = resp.Status
		changed = true
	}

	if resp.Result != nil && len(resp.Result.Pages) > 0 {
		c.snapshot.Pages = resp.Result.Pages
		c.snapshot.Summary = resp.Result.Summary
		c.snapshot.Labs = resp.Result.Labs
		changed = true
	} else {
		c.snapshot.Pages = prev.Pages
	}

	if c.snapshot.Status == constants.StatusError {
		detail := "document processing failed"
		if resp.Error != nil && *resp.Error != "" {
			detail = *resp.Error
		}
		c.snapshot.ErrorDetail = detail
	}

	terminal = c.snapshot.Status.IsTerminal()
	if terminal {
		c.active = false
	}
	return changed, terminal
}

func (c *Coordinator) terminalOutcomeLocked() Outcome {
	snap := c.snapshot.clone()
	if snap.Status == constants.StatusError {
		return Outcome{Kind: OutcomeJobFailed, Snapshot: snap, ErrorDetail: snap.ErrorDetail}
	}
	return Outcome{Kind: OutcomeDone, Snapshot: snap}
}

func (c *Coordinator) emit(snap Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(snap)
	}
}
