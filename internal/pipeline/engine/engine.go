// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package engine drives the resume pipeline: it claims queued jobs one at a
time, runs extraction, and settles each claim as completed or failed.

The loop wakes on submission signals and otherwise polls on a short
ticker, so a missed signal only delays a job by one poll interval. A job
is never retried; every claim ends in exactly one terminal state, and a
run that dies mid-job is repaired at the next startup by failing the
stranded row forward.
*/
package engine

import (
	stdctx "context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/resumora/resumora/internal/extract"
	"github.com/resumora/resumora/internal/pipeline/job"
	"github.com/resumora/resumora/internal/platform/apperr"
)

// # Defaults

const (
	// defaultDeadline bounds one job end to end, payload fetch included.
	defaultDeadline = 45 * time.Second
	// defaultPollInterval is the idle re-check cadence.
	defaultPollInterval = 2 * time.Second
)

// interruptedMessage is stamped on jobs recovered from a dead run.
const interruptedMessage = "Interrupted; please retry."

// payloadMissingMessage is stamped when a claimed job's text is gone.
const payloadMissingMessage = "payload not found"

// failureMessages maps extraction error kinds to the user-facing text
// stored on the failed job.
var failureMessages = map[string]string{
	extract.KindUnavailable:    "The AI service is temporarily unavailable. Please try again later.",
	extract.KindTimeout:        "Processing timed out. The document may be too complex or the service is busy.",
	extract.KindQuotaExhausted: "Service usage limit reached. Please try again later.",
	extract.KindParseFailure:   "We couldn't understand the AI's response. Please try again.",
	extract.KindSchemaFailure:  "Extraction returned an incomplete result. Please try again.",
	extract.KindUnknown:        "Processing failed. Please try again.",
}

func failureMessage(kind string) string {
	if message, ok := failureMessages[kind]; ok {
		return message
	}
	return failureMessages[extract.KindUnknown]
}

// # Collaborator Contracts

/*
Queue is the slice of the job service the engine drives.
*/
type Queue interface {
	PeekNext(context stdctx.Context) (*job.Job, error)
	ClaimNext(context stdctx.Context) (*job.Job, error)
	CompleteSuccess(context stdctx.Context, jobID string, result []byte, bundleName string, processingSeconds float64) error
	CompleteFailure(context stdctx.Context, jobID, errorKind, errorMessage string, processingSeconds float64) error
	RecomputePositions(context stdctx.Context) (int64, error)
	FailInterrupted(context stdctx.Context, errorKind, errorMessage string) (int64, error)
	WakeSignal() <-chan struct{}
}

/*
PayloadSource resolves a job's payload reference to the stored text.
*/
type PayloadSource interface {
	Fetch(context stdctx.Context, ref string) (string, error)
}

/*
Extractor turns resume text into a structured record.
*/
type Extractor interface {
	Extract(context stdctx.Context, principalID, cleanedText string) (*extract.Record, error)
}

/*
Publisher writes the completed record as a static bundle.
*/
type Publisher interface {
	WriteBundle(jobID, name string, recordJSON []byte) (string, error)
}

// # Engine

// Config tunes the processing loop.
type Config struct {
	// Deadline bounds extraction for a single job.
	Deadline time.Duration
	// PollInterval is how often the idle loop re-checks the queue.
	PollInterval time.Duration
}

/*
Engine is the single-flight job processor. Exactly one job is in flight
at a time; ordering is whatever the queue store hands out, oldest first.
*/
type Engine struct {
	queue     Queue
	payloads  PayloadSource
	extractor Extractor
	publisher Publisher
	logger    *slog.Logger
	config    Config
	done      chan struct{}
}

/*
NewEngine wires the processing loop.

Parameters:
  - queue: Job queue to drain.
  - payloads: Payload text source.
  - extractor: Structured extraction service.
  - publisher: Bundle writer for completed records.
  - logger: Structured logger.
  - config: Loop tuning; zero values take defaults.

Returns:
  - *Engine: Ready to Run.
*/
func NewEngine(queue Queue, payloads PayloadSource, extractor Extractor, publisher Publisher, logger *slog.Logger, config Config) *Engine {
	if config.Deadline <= 0 {
		config.Deadline = defaultDeadline
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	return &Engine{
		queue:     queue,
		payloads:  payloads,
		extractor: extractor,
		publisher: publisher,
		logger:    logger,
		config:    config,
		done:      make(chan struct{}),
	}
}

/*
Run recovers interrupted jobs, then processes the queue until the context
is cancelled. Blocks; start it on its own goroutine. The in-flight job is
finished before Run returns, so a graceful shutdown never strands a
claimed row.
*/
func (engine *Engine) Run(context stdctx.Context) {
	defer close(engine.done)

	engine.recoverInterrupted(context)
	engine.drain(context)

	ticker := time.NewTicker(engine.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-context.Done():
			return
		case <-engine.queue.WakeSignal():
			engine.drain(context)
		case <-ticker.C:
			engine.drain(context)
		}
	}
}

// Done is closed once Run has returned.
func (engine *Engine) Done() <-chan struct{} {
	return engine.done
}

/*
recoverInterrupted fails forward whatever a previous run left in
processing, then recomputes queue positions so the depth gauge starts
accurate.
*/
func (engine *Engine) recoverInterrupted(context stdctx.Context) {
	if _, err := engine.queue.FailInterrupted(context, extract.KindUnknown, interruptedMessage); err != nil {
		engine.logger.Error("interrupted job recovery failed", "error", err)
	}
	if _, err := engine.queue.RecomputePositions(context); err != nil {
		engine.logger.Error("queue position recompute failed", "error", err)
	}
}

/*
drain processes jobs until the queue is empty or the context dies. The
peek keeps the idle path cheap; claiming takes the queue lock, peeking
does not.
*/
func (engine *Engine) drain(context stdctx.Context) {
	for context.Err() == nil {
		next, err := engine.queue.PeekNext(context)
		if err != nil {
			engine.logger.Error("queue peek failed", "error", err)
			return
		}
		if next == nil {
			return
		}

		claimed, err := engine.queue.ClaimNext(context)
		if err != nil {
			engine.logger.Error("queue claim failed", "error", err)
			return
		}
		if claimed == nil {
			return
		}

		engine.process(context, claimed)

		if _, err := engine.queue.RecomputePositions(context); err != nil {
			engine.logger.Error("queue position recompute failed", "error", err)
		}
	}
}

/*
process runs one claimed job to a terminal state. Completions use an
uncancellable base context: once a job is claimed the row must settle
even if shutdown starts mid-extraction.
*/
func (engine *Engine) process(context stdctx.Context, claimed *job.Job) {
	background := stdctx.WithoutCancel(context)
	started := time.Now()

	engine.logger.Info("job processing started", "jobID", claimed.ID, "payloadRef", claimed.PayloadRef)

	text, err := engine.payloads.Fetch(background, claimed.PayloadRef)
	if err != nil {
		message := failureMessage(extract.KindUnknown)
		if ae := apperr.As(err); ae != nil && ae.Code == "NOT_FOUND" {
			message = payloadMissingMessage
		}
		engine.logger.Error("job payload fetch failed", "jobID", claimed.ID, "payloadRef", claimed.PayloadRef, "error", err)
		engine.completeFailure(background, claimed, extract.KindUnknown, message, started)
		return
	}

	extractContext, cancel := stdctx.WithTimeout(background, engine.config.Deadline)
	defer cancel()

	record, err := engine.extractor.Extract(extractContext, claimed.PrincipalID, text)
	if err != nil {
		kind := extract.KindOf(err)
		engine.logger.Warn("job extraction failed", "jobID", claimed.ID, "kind", kind, "error", err)
		engine.completeFailure(background, claimed, kind, failureMessage(kind), started)
		return
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		engine.logger.Error("job result encoding failed", "jobID", claimed.ID, "error", err)
		engine.completeFailure(background, claimed, extract.KindUnknown, failureMessage(extract.KindUnknown), started)
		return
	}

	bundleName, err := engine.publisher.WriteBundle(claimed.ID, record.PersonalInfo.Name, recordJSON)
	if err != nil {
		// The job still completes; the record on the row is enough to
		// rebuild the bundle later.
		engine.logger.Error("bundle publish failed", "jobID", claimed.ID, "error", err)
		bundleName = ""
	}

	seconds := time.Since(started).Seconds()
	if err := engine.queue.CompleteSuccess(background, claimed.ID, recordJSON, bundleName, seconds); err != nil {
		engine.logger.Error("job completion failed", "jobID", claimed.ID, "error", err)
		return
	}
	engine.logger.Info("job completed", "jobID", claimed.ID, "bundle", bundleName, "processingSeconds", seconds)
}

func (engine *Engine) completeFailure(context stdctx.Context, claimed *job.Job, kind, message string, started time.Time) {
	seconds := time.Since(started).Seconds()
	if err := engine.queue.CompleteFailure(context, claimed.ID, kind, message, seconds); err != nil {
		engine.logger.Error("job failure completion failed", "jobID", claimed.ID, "error", err)
	}
}
