package internal_capture

import (
	"bytes"
	"time"

	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
)

// State tracks a capture session through its lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateCapturing
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateCapturing:
		return "capturing"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// session accumulates PCM and decides when enough speech has been heard.
// All accounting is in audio time (bytes at the canonical rate), so the
// logic is independent of network jitter and fully deterministic.
type session struct {
	cfg      Config
	audioCfg internal_audio.AudioConfig

	state       State
	buf         bytes.Buffer
	frames      int
	silentBytes int
}

func newSession(cfg Config, audioCfg internal_audio.AudioConfig) *session {
	return &session{cfg: cfg, audioCfg: audioCfg, state: StateIdle}
}

func (s *session) capturedDuration() time.Duration {
	return s.audioDuration(s.buf.Len())
}

func (s *session) audioDuration(bytes int) time.Duration {
	return time.Duration(float64(bytes) / float64(s.audioCfg.BytesPerSecond()) * float64(time.Second))
}

func (s *session) durationBytes(d time.Duration) int {
	return int(d.Seconds() * float64(s.audioCfg.BytesPerSecond()))
}

// processFrame appends one PCM frame and reports whether the endpoint has
// been reached. A frame below the silence threshold extends the running
// silent stretch; any louder frame resets it. The silence window only opens
// once the minimum duration of audio has been captured: quiet heard before
// that point never counts toward it.
func (s *session) processFrame(pcm []byte) (stop bool) {
	if len(pcm) == 0 {
		return false
	}
	s.state = StateCapturing
	s.frames++
	s.buf.Write(pcm)

	if internal_audio.RMS(pcm) < s.cfg.SilenceThreshold {
		s.silentBytes += len(pcm)
	} else {
		s.silentBytes = 0
	}
	if over := s.buf.Len() - s.durationBytes(s.cfg.MinDuration); s.silentBytes > over {
		s.silentBytes = max(over, 0)
	}

	captured := s.capturedDuration()
	if captured >= s.cfg.MaxDuration {
		s.state = StateDraining
		return true
	}
	if captured >= s.cfg.MinDuration && s.silentBytes > 0 &&
		s.audioDuration(s.silentBytes) >= s.cfg.SilenceDuration {
		s.state = StateDraining
		return true
	}
	return false
}

// finish closes out the session and returns the captured audio as a
// canonical wav, or nil when nothing was heard.
func (s *session) finish() []byte {
	if s.buf.Len() == 0 {
		s.state = StateFailed
		return nil
	}
	s.state = StateDone
	return internal_audio.PCMToWAV(s.buf.Bytes(), s.audioCfg)
}
