package config

import (
	"os"
	"strconv"
	"time"
)

// Pipeline holds the tunables of the live session pipeline. Every value the
// detector/buffer/gateway treats as a threshold is sourced from env so it can
// be adjusted without a rebuild.
type Pipeline struct {
	SampleRate int32
	Channels   int32
	Language   string

	// FlushWindow is the buffered audio duration that triggers transcription.
	FlushWindow time.Duration

	STTTimeout time.Duration
	LLMTimeout time.Duration

	// QuestionFloor is the minimum detection confidence; below it the
	// detector reports no question at all.
	QuestionFloor float64
	// TranscriptFloor marks (but does not drop) low-confidence segments.
	TranscriptFloor float64
	// Debounce suppresses re-detection of a near-identical question.
	Debounce time.Duration

	// WindowQueueDepth bounds how many flushed windows may wait for the
	// transcriber before the oldest is dropped.
	WindowQueueDepth int

	// GraceTimeout bounds the final flush-and-transcribe on teardown.
	GraceTimeout time.Duration
	// PauseGrace keeps a disconnected session in paused state when a pause
	// was the last observed control message within this window.
	PauseGrace time.Duration
	// IdleTimeout ends a session that has received no audio for this long.
	IdleTimeout time.Duration

	// PriorQALimit bounds how many parent-session Q&A pairs enter the prompt.
	PriorQALimit int

	// STTRatePerSec / LLMRatePerSec throttle calls across all sessions.
	STTRatePerSec float64
	LLMRatePerSec float64
}

func LoadPipeline() Pipeline {
	return Pipeline{
		SampleRate:       int32(envInt("AUDIO_SAMPLE_RATE", 16000)),
		Channels:         int32(envInt("AUDIO_CHANNELS", 1)),
		Language:         envStr("STT_LANGUAGE", "en-US"),
		FlushWindow:      envDuration("FLUSH_WINDOW", 3*time.Second),
		STTTimeout:       envDuration("STT_TIMEOUT", 10*time.Second),
		LLMTimeout:       envDuration("LLM_TIMEOUT", 30*time.Second),
		QuestionFloor:    envFloat("QUESTION_CONFIDENCE_FLOOR", 0.5),
		TranscriptFloor:  envFloat("TRANSCRIPT_CONFIDENCE_FLOOR", 0.4),
		Debounce:         envDuration("QUESTION_DEBOUNCE", 2*time.Second),
		WindowQueueDepth: envInt("WINDOW_QUEUE_DEPTH", 4),
		GraceTimeout:     envDuration("TEARDOWN_GRACE", 5*time.Second),
		PauseGrace:       envDuration("PAUSE_GRACE", 30*time.Second),
		IdleTimeout:      envDuration("SESSION_IDLE_TIMEOUT", 5*time.Minute),
		PriorQALimit:     envInt("PRIOR_QA_LIMIT", 3),
		STTRatePerSec:    envFloat("STT_RATE_PER_SEC", 10),
		LLMRatePerSec:    envFloat("LLM_RATE_PER_SEC", 5),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
