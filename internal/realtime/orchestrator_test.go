package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhamid/interviewly/config"
	"github.com/okhamid/interviewly/internal/audio"
	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/services"
	"github.com/okhamid/interviewly/internal/utils"
)

type fakeStore struct {
	mu          sync.Mutex
	sessions    map[string]*models.Session
	transcripts []*models.TranscriptSegment
	qaRecords   []*models.QARecord
	statuses    []string
	endedIDs    []string
}

func newFakeStore(sessions ...*models.Session) *fakeStore {
	f := &fakeStore{sessions: make(map[string]*models.Session)}
	for _, s := range sessions {
		f.sessions[s.SessionID] = s
	}
	return f
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, utils.E(utils.CodeSessionNotFound, "fakeStore.GetSession", "session not found", nil)
	}
	return s, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	return &models.Profile{ProfileID: profileID, Skills: []string{"Go"}}, nil
}

func (f *fakeStore) GetJobDescription(ctx context.Context, jdID string) (*models.JobDescription, error) {
	return &models.JobDescription{JDID: jdID, RequiredSkills: []string{"Go"}}, nil
}

func (f *fakeStore) RecentSessionQA(ctx context.Context, sessionID string, limit int) ([]models.QARecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.QARecord
	for _, qa := range f.qaRecords {
		if qa.SessionID == sessionID {
			out = append(out, *qa)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) AppendTranscript(ctx context.Context, seg *models.TranscriptSegment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, seg)
	return nil
}

func (f *fakeStore) AppendQA(ctx context.Context, qa *models.QARecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qaRecords = append(f.qaRecords, qa)
	return nil
}

func (f *fakeStore) QAAttempts(ctx context.Context, questionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, qa := range f.qaRecords {
		if qa.QuestionID == questionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if s, ok := f.sessions[sessionID]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeStore) EndSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endedIDs = append(f.endedIDs, sessionID)
	if s, ok := f.sessions[sessionID]; ok {
		s.Status = models.SessionEnded
	}
	return nil
}

func (f *fakeStore) transcriptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcripts)
}

func (f *fakeStore) qaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.qaRecords)
}

// fakeTranscriber returns its queued texts in order, then empty segments.
type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, sessionID string, w *audio.Window, language string) (*models.TranscriptSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var text string
	if len(f.texts) > 0 {
		text = f.texts[0]
		f.texts = f.texts[1:]
	}
	return &models.TranscriptSegment{
		SessionID:  sessionID,
		SegmentID:  "seg",
		Text:       text,
		Speaker:    services.SpeakerInterviewer,
		IsFinal:    true,
		Confidence: 0.9,
		Language:   language,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAssembler struct{}

func (fakeAssembler) Assemble(ctx context.Context, sess *models.Session) (*services.PromptContext, error) {
	return &services.PromptContext{
		ProfileSection: "Skills: Go",
		JDSection:      "Required Skills: Go",
	}, nil
}

// fakeGenerator answers instantly, or blocks until cancelled when block is
// set. started receives once per in-flight call.
type fakeGenerator struct {
	block   bool
	started chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, q *models.DetectedQuestion, pctx *services.PromptContext, attempt int, onToken func(string)) (*models.QARecord, error) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if onToken != nil {
		onToken("I build ")
		onToken("Go services.")
	}
	return &models.QARecord{
		SessionID:    q.SessionID,
		QuestionID:   q.QuestionID,
		Question:     q.Text,
		QuestionType: q.Type,
		Answer:       "I build Go services.",
		Confidence:   0.8,
		Context:      pctx.Used(),
		Provider:     "fake",
		Attempt:      attempt,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func testPipeline() config.Pipeline {
	return config.Pipeline{
		SampleRate:       16000,
		Channels:         1,
		Language:         "en-US",
		FlushWindow:      50 * time.Millisecond,
		STTTimeout:       time.Second,
		LLMTimeout:       time.Second,
		QuestionFloor:    0.5,
		TranscriptFloor:  0.4,
		Debounce:         2 * time.Second,
		WindowQueueDepth: 4,
		GraceTimeout:     time.Second,
		PauseGrace:       time.Minute,
		IdleTimeout:      10 * time.Second,
		PriorQALimit:     3,
	}
}

func testSession() *models.Session {
	return &models.Session{
		SessionID:        "s1",
		ProfileID:        "p1",
		JobDescriptionID: "jd1",
		Status:           models.SessionPending,
		Language:         "en-US",
		CreatedAt:        time.Now().UTC(),
	}
}

func testDeps(store *fakeStore, tr *fakeTranscriber, gen *fakeGenerator, cfg config.Pipeline) Deps {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return Deps{
		Store:       store,
		Transcriber: tr,
		Assembler:   fakeAssembler{},
		Generator:   gen,
		Logger:      log,
		Pipeline:    cfg,
	}
}

// windowBytes is one flush worth of PCM16 at the test pipeline's format.
func windowBytes(cfg config.Pipeline) []byte {
	n := int(int64(cfg.SampleRate) * int64(cfg.Channels) * 2 * int64(cfg.FlushWindow) / int64(time.Second))
	return make([]byte, n)
}

// waitFor reads events until one of the wanted type arrives or the timeout
// elapses. The channel closing first is a failure.
func waitFor(t *testing.T, events <-chan Event, typ string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed while waiting for %q", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", typ)
		}
	}
}

// drain collects remaining events until the channel closes.
func drain(t *testing.T, events <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func hasEvent(events []Event, typ string) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func TestOrchestratorAudioToAnswer(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())
	tr := &fakeTranscriber{texts: []string{"What is your greatest strength?"}}
	gen := &fakeGenerator{}

	o := NewOrchestrator(testSession(), testDeps(store, tr, gen, cfg), 0, 0)
	o.Start()

	o.HandleAudio(windowBytes(cfg))

	ev := waitFor(t, o.Events(), EventTranscript, 2*time.Second)
	td, ok := ev.Data.(TranscriptData)
	require.True(t, ok)
	assert.Equal(t, "What is your greatest strength?", td.Text)
	assert.Equal(t, services.SpeakerInterviewer, td.Speaker)
	assert.True(t, td.IsFinal)

	qev := waitFor(t, o.Events(), EventQuestionDetected, 2*time.Second)
	qd, ok := qev.Data.(QuestionData)
	require.True(t, ok)
	assert.Equal(t, "What is your greatest strength?", qd.Question)
	assert.NotEmpty(t, qd.QuestionID)

	tok := waitFor(t, o.Events(), EventAnswerToken, 2*time.Second)
	tokData, ok := tok.Data.(AnswerTokenData)
	require.True(t, ok)
	assert.Equal(t, qd.QuestionID, tokData.QuestionID)
	assert.Equal(t, int64(1), tokData.Seq)

	aev := waitFor(t, o.Events(), EventAnswerGenerated, 2*time.Second)
	ad, ok := aev.Data.(AnswerData)
	require.True(t, ok)
	assert.Equal(t, qd.QuestionID, ad.QuestionID)
	assert.Equal(t, "I build Go services.", ad.Answer)
	assert.Contains(t, ad.ContextUsed.ProfileSection, "Skills")

	o.HandleControl(ControlMessage{Type: ControlStop})
	rest := drain(t, o.Events(), 3*time.Second)
	assert.True(t, hasEvent(rest, EventStatus), "teardown reports the ended status")

	assert.Equal(t, 1, store.transcriptCount())
	assert.Equal(t, 1, store.qaCount())
	assert.Contains(t, store.statuses, models.SessionActive)
	assert.Contains(t, store.endedIDs, "s1")
}

func TestOrchestratorPauseDropsAudio(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())
	tr := &fakeTranscriber{texts: []string{"should never surface"}}
	gen := &fakeGenerator{}

	o := NewOrchestrator(testSession(), testDeps(store, tr, gen, cfg), 0, 0)
	o.Start()

	o.HandleControl(ControlMessage{Type: ControlPause})
	pev := waitFor(t, o.Events(), EventStatus, 2*time.Second)
	assert.Equal(t, models.SessionPaused, pev.Data.(StatusData).Status)

	// audio while paused is dropped outright
	o.HandleAudio(windowBytes(cfg))
	o.HandleAudio(windowBytes(cfg))

	o.HandleControl(ControlMessage{Type: ControlResume})
	rev := waitFor(t, o.Events(), EventStatus, 2*time.Second)
	assert.Equal(t, models.SessionActive, rev.Data.(StatusData).Status)

	o.HandleControl(ControlMessage{Type: ControlStop})
	drain(t, o.Events(), 3*time.Second)

	assert.Equal(t, 0, tr.callCount(), "paused audio must never reach transcription")
	assert.Equal(t, 0, store.transcriptCount())
}

func TestOrchestratorPauseCancelsGeneration(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())
	tr := &fakeTranscriber{texts: []string{"What is your greatest strength?"}}
	gen := &fakeGenerator{block: true, started: make(chan struct{}, 1)}

	o := NewOrchestrator(testSession(), testDeps(store, tr, gen, cfg), 0, 0)
	o.Start()

	o.HandleAudio(windowBytes(cfg))
	waitFor(t, o.Events(), EventQuestionDetected, 2*time.Second)

	select {
	case <-gen.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}

	o.HandleControl(ControlMessage{Type: ControlPause})
	waitFor(t, o.Events(), EventStatus, 2*time.Second)

	o.HandleControl(ControlMessage{Type: ControlStop})
	rest := drain(t, o.Events(), 3*time.Second)

	assert.False(t, hasEvent(rest, EventAnswerGenerated), "cancelled generation is discarded")
	assert.Equal(t, 0, store.qaCount())
}

func TestOrchestratorRegenerateUnknownQuestion(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())
	o := NewOrchestrator(testSession(), testDeps(store, &fakeTranscriber{}, &fakeGenerator{}, cfg), 0, 0)
	o.Start()

	o.HandleControl(ControlMessage{Type: ControlRegenerate, QuestionID: "nope"})
	ev := waitFor(t, o.Events(), EventError, 2*time.Second)
	assert.Equal(t, utils.CodeNotFound, ev.Data.(ErrorData).Code)

	o.HandleControl(ControlMessage{Type: ControlStop})
	drain(t, o.Events(), 3*time.Second)
}

func TestOrchestratorRegenerateBumpsAttempt(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())
	tr := &fakeTranscriber{texts: []string{"What is your greatest strength?"}}
	gen := &fakeGenerator{}

	o := NewOrchestrator(testSession(), testDeps(store, tr, gen, cfg), 0, 0)
	o.Start()

	o.HandleAudio(windowBytes(cfg))
	qev := waitFor(t, o.Events(), EventQuestionDetected, 2*time.Second)
	qid := qev.Data.(QuestionData).QuestionID
	waitFor(t, o.Events(), EventAnswerGenerated, 2*time.Second)

	o.HandleControl(ControlMessage{Type: ControlRegenerate, QuestionID: qid})
	waitFor(t, o.Events(), EventAnswerGenerated, 2*time.Second)

	o.HandleControl(ControlMessage{Type: ControlStop})
	drain(t, o.Events(), 3*time.Second)

	require.Equal(t, 2, store.qaCount())
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.qaRecords[0].Attempt)
	assert.Equal(t, 2, store.qaRecords[1].Attempt)
	assert.Equal(t, qid, store.qaRecords[1].QuestionID)
}

func TestOrchestratorRegenerateAfterReconnect(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())
	tr := &fakeTranscriber{texts: []string{"What is your greatest strength?"}}
	gen := &fakeGenerator{}

	first := NewOrchestrator(testSession(), testDeps(store, tr, gen, cfg), 0, 0)
	first.Start()

	first.HandleAudio(windowBytes(cfg))
	qid := waitFor(t, first.Events(), EventQuestionDetected, 2*time.Second).Data.(QuestionData).QuestionID
	waitFor(t, first.Events(), EventAnswerGenerated, 2*time.Second)
	first.HandleControl(ControlMessage{Type: ControlRegenerate, QuestionID: qid})
	waitFor(t, first.Events(), EventAnswerGenerated, 2*time.Second)

	first.Teardown(reasonDisconnect)
	drain(t, first.Events(), time.Second)

	// the replacement orchestrator knows nothing in memory; the persisted
	// history must carry the question and its attempt count across
	sess := testSession()
	sess.Status = models.SessionActive
	second := NewOrchestrator(sess, testDeps(store, &fakeTranscriber{}, gen, cfg), 0, 0)
	second.Start()

	second.HandleControl(ControlMessage{Type: ControlRegenerate, QuestionID: qid})
	waitFor(t, second.Events(), EventAnswerGenerated, 2*time.Second)

	second.HandleControl(ControlMessage{Type: ControlStop})
	drain(t, second.Events(), 3*time.Second)

	require.Equal(t, 3, store.qaCount())
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, []int{
		store.qaRecords[0].Attempt,
		store.qaRecords[1].Attempt,
		store.qaRecords[2].Attempt,
	})
	assert.Equal(t, qid, store.qaRecords[2].QuestionID)
}

func TestOrchestratorRestoresPausedState(t *testing.T) {
	cfg := testPipeline()
	sess := testSession()
	sess.Status = models.SessionPaused
	store := newFakeStore(sess)
	tr := &fakeTranscriber{texts: []string{"should never surface"}}

	o := NewOrchestrator(sess, testDeps(store, tr, &fakeGenerator{}, cfg), 0, 0)
	o.Start()

	assert.Equal(t, "paused", o.State())

	// still paused: inbound audio is dropped until the client resumes
	o.HandleAudio(windowBytes(cfg))
	o.HandleAudio(windowBytes(cfg))

	o.Teardown(reasonDisconnect)
	drain(t, o.Events(), time.Second)

	assert.Equal(t, 0, tr.callCount())
	assert.Empty(t, store.endedIDs, "a re-registered paused session keeps its grace window")
}

func TestOrchestratorIdleTimeout(t *testing.T) {
	cfg := testPipeline()
	cfg.IdleTimeout = 50 * time.Millisecond
	store := newFakeStore(testSession())

	o := NewOrchestrator(testSession(), testDeps(store, &fakeTranscriber{}, &fakeGenerator{}, cfg), 0, 0)
	o.Start()

	events := drain(t, o.Events(), 3*time.Second)
	assert.True(t, hasEvent(events, EventStatus))
	assert.Contains(t, store.endedIDs, "s1")
}

func TestOrchestratorTeardownIdempotent(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())

	o := NewOrchestrator(testSession(), testDeps(store, &fakeTranscriber{}, &fakeGenerator{}, cfg), 0, 0)
	o.Start()

	o.Teardown(reasonStop)
	o.Teardown(reasonDisconnect)

	drain(t, o.Events(), time.Second)
	assert.Equal(t, "ended", o.State())

	// late traffic after teardown is a no-op
	o.HandleAudio(windowBytes(cfg))
	o.HandleControl(ControlMessage{Type: ControlResume})
	o.EmitError(utils.E(utils.CodeInternal, "test", "late", nil))
}

func TestOrchestratorDisconnectWhilePausedStaysPaused(t *testing.T) {
	cfg := testPipeline()
	store := newFakeStore(testSession())

	o := NewOrchestrator(testSession(), testDeps(store, &fakeTranscriber{}, &fakeGenerator{}, cfg), 0, 0)
	o.Start()

	o.HandleControl(ControlMessage{Type: ControlPause})
	waitFor(t, o.Events(), EventStatus, 2*time.Second)

	o.Teardown(reasonDisconnect)
	drain(t, o.Events(), time.Second)

	assert.Empty(t, store.endedIDs, "a paused session survives disconnect within the grace window")
	assert.Contains(t, store.statuses, models.SessionPaused)
}
