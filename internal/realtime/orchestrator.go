package realtime

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/okhamid/interviewly/config"
	"github.com/okhamid/interviewly/internal/audio"
	"github.com/okhamid/interviewly/internal/detect"
	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/services"
	"github.com/okhamid/interviewly/internal/storage"
	"github.com/okhamid/interviewly/internal/utils"
)

const (
	ControlStop       = "stop"
	ControlPause      = "pause"
	ControlResume     = "resume"
	ControlRegenerate = "regenerate_answer"
)

// ControlMessage is a parsed inbound control frame.
type ControlMessage struct {
	Type       string `json:"type"`
	QuestionID string `json:"question_id,omitempty"`
}

// Teardown reasons.
const (
	reasonStop       = "stop"
	reasonDisconnect = "disconnect"
	reasonIdle       = "idle_timeout"
)

type genJob struct {
	question *models.DetectedQuestion
	attempt  int
}

// Orchestrator owns one session's pipeline: audio frames in, events out.
// Three goroutines run per session — ingest, transcribe, generate — so audio
// ingestion never blocks on an external round trip. Transcription and
// generation are each FIFO with a single in-flight call; flushed windows
// queue up to the configured depth, after which the oldest is dropped.
type Orchestrator struct {
	session *models.Session
	cfg     config.Pipeline
	log     *logrus.Entry

	store       services.DocumentStore
	transcriber services.TranscriptionService
	assembler   services.ContextService
	generator   services.AnswerService
	archiver    storage.Uploader // optional

	buffer   *audio.Buffer
	detector *detect.Detector

	frames  chan []byte
	control chan ControlMessage
	windows chan *audio.Window
	genJobs chan genJob
	events  chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	started      atomic.Bool
	paused       atomic.Bool
	ended        atomic.Bool
	buffering    atomic.Bool
	transcribing atomic.Bool
	answering    atomic.Bool

	emitMu sync.RWMutex
	closed bool

	mu        sync.Mutex
	pausedAt  time.Time
	questions map[string]*models.DetectedQuestion
	attempts  map[string]int
	genCancel context.CancelFunc
	windowSeq int64
}

// Deps bundles the collaborators every orchestrator shares.
type Deps struct {
	Store       services.DocumentStore
	Transcriber services.TranscriptionService
	Assembler   services.ContextService
	Generator   services.AnswerService
	Archiver    storage.Uploader
	Logger      *logrus.Logger
	Pipeline    config.Pipeline
}

func NewOrchestrator(session *models.Session, d Deps, sampleRate, channels int32) *Orchestrator {
	cfg := d.Pipeline
	if sampleRate > 0 {
		cfg.SampleRate = sampleRate
	}
	if channels > 0 {
		cfg.Channels = channels
	}
	if cfg.WindowQueueDepth <= 0 {
		cfg.WindowQueueDepth = 4
	}

	log := d.Logger
	if log == nil {
		log = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		session:     session,
		cfg:         cfg,
		log:         log.WithField("session_id", session.SessionID),
		store:       d.Store,
		transcriber: d.Transcriber,
		assembler:   d.Assembler,
		generator:   d.Generator,
		archiver:    d.Archiver,
		buffer:      audio.NewBuffer(cfg.SampleRate, cfg.Channels, cfg.FlushWindow),
		detector:    detect.New(cfg.QuestionFloor, cfg.Debounce),
		frames:      make(chan []byte, 64),
		control:     make(chan ControlMessage, 8),
		windows:     make(chan *audio.Window, cfg.WindowQueueDepth),
		genJobs:     make(chan genJob, 8),
		events:      make(chan Event, 256),
		ctx:         ctx,
		cancel:      cancel,
		questions:   make(map[string]*models.DetectedQuestion),
		attempts:    make(map[string]int),
	}

	// A client re-registering a paused session resumes where it left off:
	// still paused, with the pause grace clock restarted.
	if session.Status == models.SessionPaused {
		o.started.Store(true)
		o.paused.Store(true)
		o.pausedAt = time.Now()
	}
	return o
}

func (o *Orchestrator) Start() {
	o.restoreQuestions()
	o.wg.Add(3)
	go o.run()
	go o.transcribeLoop()
	go o.generateLoop()
}

// restoreQuestions reloads detected questions from the persisted Q&A history
// so a reconnecting client can still regenerate answers from before the
// disconnect. A fresh session has no history and restores nothing.
func (o *Orchestrator) restoreQuestions() {
	ctx, cancel := context.WithTimeout(o.ctx, 5*time.Second)
	defer cancel()

	rows, err := o.store.RecentSessionQA(ctx, o.session.SessionID, 50)
	if err != nil {
		o.log.WithError(err).Warn("question history restore failed")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range rows {
		o.questions[rec.QuestionID] = &models.DetectedQuestion{
			QuestionID: rec.QuestionID,
			SessionID:  rec.SessionID,
			Text:       rec.Question,
			Type:       rec.QuestionType,
			DetectedAt: rec.CreatedAt,
		}
		if rec.Attempt > o.attempts[rec.QuestionID] {
			o.attempts[rec.QuestionID] = rec.Attempt
		}
	}
}

// Events is the outbound stream for the websocket writer. Closed once
// teardown completes.
func (o *Orchestrator) Events() <-chan Event { return o.events }

func (o *Orchestrator) SessionID() string { return o.session.SessionID }

// State reports the pipeline phase, most significant first.
func (o *Orchestrator) State() string {
	switch {
	case o.ended.Load():
		return "ended"
	case o.paused.Load():
		return "paused"
	case o.answering.Load():
		return "answering"
	case o.transcribing.Load():
		return "transcribing"
	case o.buffering.Load():
		return "buffering"
	case o.started.Load():
		return "listening"
	default:
		return "idle"
	}
}

// HandleAudio accepts one inbound binary frame. Never blocks: when the
// ingest loop is behind, the frame is dropped with a warning.
func (o *Orchestrator) HandleAudio(data []byte) {
	if o.ended.Load() {
		return
	}
	select {
	case o.frames <- data:
	default:
		o.log.Warn("ingest backlog, dropping audio frame")
	}
}

// HandleControl accepts one parsed control message.
func (o *Orchestrator) HandleControl(msg ControlMessage) {
	if o.ended.Load() {
		return
	}
	select {
	case o.control <- msg:
	default:
		o.log.Warn("control backlog, dropping message")
	}
}

// EmitError surfaces a session-local failure to the client. The connection
// stays open; the UI can offer a retry.
func (o *Orchestrator) EmitError(err error) {
	o.emit(newEvent(EventError, ErrorData{
		Code:    utils.CodeOf(err),
		Message: utils.SafeMessage(err),
	}))
}

func (o *Orchestrator) emit(ev Event) {
	o.emitMu.RLock()
	defer o.emitMu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.events <- ev:
	default:
		o.log.WithField("event", ev.Type).Warn("event channel full, dropping event")
	}
}

func (o *Orchestrator) run() {
	defer o.wg.Done()

	idle := time.NewTimer(o.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return

		case data := <-o.frames:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.cfg.IdleTimeout)

			if o.paused.Load() {
				// dropped, not buffered: audio during pause must not
				// surface in any transcript
				continue
			}
			if !o.started.Load() {
				o.started.Store(true)
				o.setSessionStatus(models.SessionActive)
			}
			if err := o.buffer.Append(data); err != nil {
				o.log.WithError(err).Warn("unsupported audio frame dropped")
				o.EmitError(err)
				continue
			}
			o.buffering.Store(o.buffer.Duration() > 0)
			if o.buffer.ShouldFlush() {
				o.enqueueWindow(o.buffer.Flush())
				o.buffering.Store(false)
			}

		case msg := <-o.control:
			switch msg.Type {
			case ControlStop:
				go o.Teardown(reasonStop)
				return
			case ControlPause:
				o.pause()
			case ControlResume:
				o.resume()
			case ControlRegenerate:
				o.regenerate(msg.QuestionID)
			default:
				err := utils.E(utils.CodeMalformedMessage, "Orchestrator", fmt.Sprintf("unknown control type %q", msg.Type), nil)
				o.log.WithError(err).Warn("malformed control message")
				o.EmitError(err)
			}

		case <-idle.C:
			o.log.Warn("session idle timeout reached")
			go o.Teardown(reasonIdle)
			return
		}
	}
}

func (o *Orchestrator) pause() {
	if o.paused.Swap(true) {
		return
	}
	o.mu.Lock()
	o.pausedAt = time.Now()
	o.mu.Unlock()

	o.cancelGeneration()
	o.setSessionStatus(models.SessionPaused)
	o.emit(newEvent(EventStatus, StatusData{Status: models.SessionPaused}))
}

func (o *Orchestrator) resume() {
	if !o.paused.Swap(false) {
		return
	}
	o.setSessionStatus(models.SessionActive)
	o.emit(newEvent(EventStatus, StatusData{Status: models.SessionActive}))
}

func (o *Orchestrator) regenerate(questionID string) {
	o.mu.Lock()
	q, ok := o.questions[questionID]
	o.mu.Unlock()

	if !ok {
		err := utils.E(utils.CodeNotFound, "Orchestrator.regenerate", "unknown question id", nil)
		o.log.WithField("question_id", questionID).Warn("regenerate for unknown question")
		o.EmitError(err)
		return
	}
	o.enqueueGeneration(genJob{question: q, attempt: o.nextAttempt(questionID)})
}

// nextAttempt numbers a regeneration one past every attempt seen so far, in
// memory or in the persisted history. After a reconnect memory can lag the
// store; after a failed generation the store lags memory.
func (o *Orchestrator) nextAttempt(questionID string) int {
	o.mu.Lock()
	last := o.attempts[questionID]
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(o.ctx, 5*time.Second)
	defer cancel()
	if persisted, err := o.store.QAAttempts(ctx, questionID); err != nil {
		o.log.WithError(err).WithField("question_id", questionID).Warn("persisted attempt count unavailable")
	} else if int(persisted) > last {
		last = int(persisted)
	}

	next := last + 1
	o.mu.Lock()
	o.attempts[questionID] = next
	o.mu.Unlock()
	return next
}

// enqueueWindow hands a flushed window to the transcriber, dropping the
// oldest queued window when the backlog hits the configured depth.
func (o *Orchestrator) enqueueWindow(w *audio.Window) {
	if w == nil {
		return
	}

	o.mu.Lock()
	o.windowSeq++
	seq := o.windowSeq
	o.mu.Unlock()

	if o.archiver != nil {
		go o.archiveWindow(w, seq)
	}

	for {
		select {
		case o.windows <- w:
			return
		default:
		}
		select {
		case dropped := <-o.windows:
			o.log.WithField("dropped_duration", dropped.Duration.String()).
				Warn("transcription backlog full, dropping oldest window")
		default:
		}
	}
}

func (o *Orchestrator) enqueueGeneration(job genJob) {
	select {
	case o.genJobs <- job:
	default:
		o.log.WithField("question_id", job.question.QuestionID).Warn("generation backlog full, dropping job")
		o.EmitError(utils.E(utils.CodeUnavailable, "Orchestrator", "answer generation backlog full", nil))
	}
}

func (o *Orchestrator) archiveWindow(w *audio.Window, seq int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := fmt.Sprintf("sessions/%s/windows/%06d.pcm", o.session.SessionID, seq)
	if _, err := o.archiver.Upload(ctx, name, "application/octet-stream", bytes.NewReader(w.Samples)); err != nil {
		o.log.WithError(err).WithField("window", seq).Warn("audio window archive failed")
	}
}

func (o *Orchestrator) transcribeLoop() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		case w := <-o.windows:
			o.transcribing.Store(true)
			o.processWindow(w)
			o.transcribing.Store(false)
		}
	}
}

func (o *Orchestrator) processWindow(w *audio.Window) {
	seg, err := o.transcriber.Transcribe(o.ctx, o.session.SessionID, w, o.session.Language)
	if err != nil {
		if o.ctx.Err() != nil {
			return
		}
		o.log.WithError(err).Error("transcription failed")
		o.EmitError(err)
		return
	}

	// Quiet windows still yield a (possibly empty) segment; skipping them
	// would lose quiet speech.
	o.emit(newEvent(EventTranscript, TranscriptData{
		Text:       seg.Text,
		Speaker:    seg.Speaker,
		IsFinal:    seg.IsFinal,
		Confidence: seg.Confidence,
	}))
	if err := o.store.AppendTranscript(o.ctx, seg); err != nil {
		o.log.WithError(err).Error("transcript persist failed")
	}

	if seg.Text == "" || seg.LowConfidence {
		return
	}

	q := o.detector.Classify(o.session.SessionID, seg.SegmentID, seg.Text)
	if q == nil {
		return
	}

	o.mu.Lock()
	o.questions[q.QuestionID] = q
	o.attempts[q.QuestionID] = 1
	o.mu.Unlock()

	o.emit(newEvent(EventQuestionDetected, QuestionData{
		QuestionID:   q.QuestionID,
		Question:     q.Text,
		QuestionType: q.Type,
		Confidence:   q.Confidence,
	}))
	o.enqueueGeneration(genJob{question: q, attempt: 1})
}

func (o *Orchestrator) generateLoop() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		case job := <-o.genJobs:
			o.answering.Store(true)
			o.processGeneration(job)
			o.answering.Store(false)
		}
	}
}

func (o *Orchestrator) processGeneration(job genJob) {
	genCtx, cancel := context.WithCancel(o.ctx)
	o.mu.Lock()
	o.genCancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.genCancel = nil
		o.mu.Unlock()
		cancel()
	}()

	log := o.log.WithField("question_id", job.question.QuestionID)

	pctx, err := o.assembler.Assemble(genCtx, o.session)
	if err != nil {
		// partial context degrades answer quality but never blocks
		log.WithError(err).Warn("prompt context is partial")
		o.EmitError(err)
	}

	var seq int64
	rec, err := o.generator.Generate(genCtx, job.question, pctx, job.attempt, func(token string) {
		seq++
		o.emit(newEvent(EventAnswerToken, AnswerTokenData{
			QuestionID: job.question.QuestionID,
			Token:      token,
			Seq:        seq,
		}))
	})
	if err != nil {
		if genCtx.Err() != nil {
			// cancelled by pause/stop: provider result, if any, is discarded
			log.Info("generation cancelled, discarding result")
			return
		}
		log.WithError(err).Error("answer generation failed")
		o.EmitError(err)
		return
	}

	if err := o.store.AppendQA(o.ctx, rec); err != nil {
		log.WithError(err).Error("q&a persist failed")
	}

	o.emit(newEvent(EventAnswerGenerated, AnswerData{
		QuestionID:  rec.QuestionID,
		Answer:      rec.Answer,
		Confidence:  rec.Confidence,
		ContextUsed: rec.Context,
	}))
}

func (o *Orchestrator) cancelGeneration() {
	o.mu.Lock()
	cancel := o.genCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) setSessionStatus(status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.UpdateSessionStatus(ctx, o.session.SessionID, status); err != nil {
		o.log.WithError(err).WithField("status", status).Error("session status update failed")
	}
}

// Teardown ends the session: stops the loops, flushes any partial window for
// a final best-effort transcription bounded by the grace timeout, and
// settles the persisted status. Idempotent; safe from any goroutine except
// the run loop itself.
func (o *Orchestrator) Teardown(reason string) {
	o.once.Do(func() {
		o.ended.Store(true)
		o.cancelGeneration()
		o.cancel()
		o.wg.Wait()

		graceCtx, cancel := context.WithTimeout(context.Background(), o.cfg.GraceTimeout)
		defer cancel()

		// loops are stopped; the buffer is unowned now
		if w := o.buffer.Flush(); w != nil && o.started.Load() {
			if seg, err := o.transcriber.Transcribe(graceCtx, o.session.SessionID, w, o.session.Language); err == nil {
				o.emit(newEvent(EventTranscript, TranscriptData{
					Text:       seg.Text,
					Speaker:    seg.Speaker,
					IsFinal:    seg.IsFinal,
					Confidence: seg.Confidence,
				}))
				if perr := o.store.AppendTranscript(graceCtx, seg); perr != nil {
					o.log.WithError(perr).Error("final transcript persist failed")
				}
			} else {
				o.log.WithError(err).Warn("final window transcription failed")
			}
		}

		o.mu.Lock()
		pausedAt := o.pausedAt
		o.mu.Unlock()

		staysPaused := reason == reasonDisconnect &&
			o.paused.Load() &&
			time.Since(pausedAt) <= o.cfg.PauseGrace

		if staysPaused {
			o.log.WithField("reason", reason).Info("session left paused on disconnect")
		} else {
			if err := o.store.EndSession(graceCtx, o.session.SessionID); err != nil {
				o.log.WithError(err).Error("session end persist failed")
			}
			o.emit(newEvent(EventStatus, StatusData{Status: models.SessionEnded}))
		}

		o.log.WithField("reason", reason).Info("session torn down")

		o.emitMu.Lock()
		o.closed = true
		o.emitMu.Unlock()
		close(o.events)
	})
}
