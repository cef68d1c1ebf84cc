package audio

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/okhamid/interviewly/internal/utils"
)

// Window is a contiguous buffer of raw PCM16 samples awaiting transcription.
// Ownership transfers to the caller on Flush; a window is never transcribed
// twice.
type Window struct {
	Samples    []byte
	Duration   time.Duration
	SampleRate int32
	Channels   int32
}

// Buffer accumulates appended audio chunks into fixed-duration windows.
// Flushing is time-based, not silence-based, so transcription latency stays
// bounded; quiet windows still get transcribed rather than skipped.
//
// Not safe for concurrent use; each session's ingest goroutine owns one.
type Buffer struct {
	sampleRate int32
	channels   int32
	threshold  time.Duration

	buf bytes.Buffer
}

func NewBuffer(sampleRate, channels int32, threshold time.Duration) *Buffer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	if threshold <= 0 {
		threshold = 3 * time.Second
	}
	return &Buffer{sampleRate: sampleRate, channels: channels, threshold: threshold}
}

// Append validates and accumulates one inbound chunk. Chunks are PCM16LE;
// a chunk carrying a RIFF/WAVE header has the header stripped and its fmt
// block checked against the negotiated format.
func (b *Buffer) Append(chunk []byte) error {
	const op = "audio.Buffer.Append"

	if len(chunk) == 0 {
		return nil
	}

	pcm, err := stripWAVHeader(chunk, b.sampleRate, b.channels)
	if err != nil {
		return err
	}
	if len(pcm)%2 != 0 {
		return utils.E(utils.CodeUnsupportedFormat, op, "audio payload is not 16-bit aligned", nil)
	}

	b.buf.Write(pcm)
	return nil
}

// Duration reports how much audio is currently buffered.
func (b *Buffer) Duration() time.Duration {
	bytesPerSec := int64(b.sampleRate) * int64(b.channels) * 2
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(int64(b.buf.Len()) * int64(time.Second) / bytesPerSec)
}

// ShouldFlush reports whether accumulated duration crossed the threshold.
func (b *Buffer) ShouldFlush() bool {
	return b.Duration() >= b.threshold
}

// Flush returns the accumulated window and resets the buffer, or nil when
// nothing is buffered.
func (b *Buffer) Flush() *Window {
	if b.buf.Len() == 0 {
		return nil
	}
	w := &Window{
		Samples:    append([]byte(nil), b.buf.Bytes()...),
		Duration:   b.Duration(),
		SampleRate: b.sampleRate,
		Channels:   b.channels,
	}
	b.buf.Reset()
	return w
}

// stripWAVHeader returns the PCM payload of chunk. Raw PCM passes through
// untouched. A RIFF container must be PCM (format tag 1) and match the
// negotiated rate and channel count.
func stripWAVHeader(chunk []byte, sampleRate, channels int32) ([]byte, error) {
	const op = "audio.Buffer.Append"

	if len(chunk) < 12 || !bytes.HasPrefix(chunk, []byte("RIFF")) {
		return chunk, nil
	}
	if !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return nil, utils.E(utils.CodeUnsupportedFormat, op, "RIFF container is not WAVE", nil)
	}

	rest := chunk[12:]
	var data []byte
	sawFmt := false
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := binary.LittleEndian.Uint32(rest[4:8])
		body := rest[8:]
		if uint32(len(body)) < size {
			size = uint32(len(body))
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, utils.E(utils.CodeUnsupportedFormat, op, "truncated fmt chunk", nil)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			ch := binary.LittleEndian.Uint16(body[2:4])
			rate := binary.LittleEndian.Uint32(body[4:8])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != 16 {
				return nil, utils.E(utils.CodeUnsupportedFormat, op, "only PCM16 audio is supported", nil)
			}
			if int32(ch) != channels || int32(rate) != sampleRate {
				return nil, utils.E(utils.CodeUnsupportedFormat, op, "audio format does not match negotiated rate/channels", nil)
			}
			sawFmt = true
		case "data":
			data = body[:size]
		}
		// chunks are word-aligned
		adv := 8 + int(size)
		if size%2 == 1 {
			adv++
		}
		if adv > len(rest) {
			break
		}
		rest = rest[adv:]
	}

	if !sawFmt || data == nil {
		return nil, utils.E(utils.CodeUnsupportedFormat, op, "WAVE container missing fmt/data chunk", nil)
	}
	return data, nil
}
