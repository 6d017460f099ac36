package internal_capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	internal_audio "github.com/vocalisai/vocalis/api/voice-auth-api/internal/audio"
	"github.com/vocalisai/vocalis/pkg/commons"
)

var (
	// ErrConnection marks a failed dial or handshake to the listen socket.
	ErrConnection = errors.New("capture: connection failed")
	// ErrConnectionClosed marks a socket that closed before any audio arrived.
	ErrConnectionClosed = errors.New("capture: connection closed before audio")
	// ErrNoAudioCaptured marks a session that ended with an empty buffer.
	ErrNoAudioCaptured = errors.New("capture: no audio captured")
	// ErrInvalidListenURL marks a listen url that is not ws(s) or http(s).
	ErrInvalidListenURL = errors.New("capture: invalid listen url")
)

const readLimitBytes = 1 << 20

// Config holds the endpointing knobs for a live capture session.
type Config struct {
	MinDuration      time.Duration
	MaxDuration      time.Duration
	SilenceDuration  time.Duration
	SilenceThreshold float64
	ConnectTimeout   time.Duration
}

// Engine captures caller audio from a live call's listen websocket and
// endpoints it on trailing silence.
type Engine struct {
	cfg      Config
	audioCfg internal_audio.AudioConfig
	logger   commons.Logger
	dialer   *websocket.Dialer
	clock    func() time.Time
}

func NewEngine(cfg Config, audioCfg internal_audio.AudioConfig, logger commons.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		audioCfg: audioCfg,
		logger:   logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		clock: time.Now,
	}
}

// mediaFrame is the JSON envelope carried on the listen socket. Messages
// without an audio field are control traffic and skipped.
type mediaFrame struct {
	Audio *string `json:"audio"`
}

// Capture connects to listenURL, accumulates caller PCM until the endpoint
// rules fire, and returns the audio as a canonical wav. The socket is always
// closed before returning.
func (e *Engine) Capture(ctx context.Context, listenURL string) ([]byte, error) {
	wsURL, err := normalizeListenURL(listenURL)
	if err != nil {
		return nil, err
	}

	started := e.clock()
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		e.logger.Warnw("listen socket dial failed",
			"url", wsURL, "status", status, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer conn.Close()
	conn.SetReadLimit(readLimitBytes)

	// watchdog: a cancelled context unblocks the read loop by closing the
	// socket out from under it
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s := newSession(e.cfg, e.audioCfg)
	s.state = StateConnecting

	// max duration is an absolute wall-clock bound on the session, even when
	// the stream keeps delivering frames that carry no audio
	hardStop := e.clock().Add(e.cfg.MaxDuration)
	conn.SetReadDeadline(hardStop)

	for e.clock().Before(hardStop) {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !e.clock().Before(hardStop) {
				// our own deadline expired, not a remote hangup
				e.logger.Debugw("session reached wall-clock bound",
					"frames", s.frames, "captured", s.capturedDuration().Seconds())
				break
			}
			if s.frames == 0 {
				e.logger.Warnw("listen socket closed before audio", "error", err)
				return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			// remote hung up mid-stream; endpoint on what we have
			e.logger.Debugw("listen socket closed mid-stream",
				"error", err, "captured", s.capturedDuration().Seconds())
			break
		}

		pcm, ok := e.decodeFrame(msgType, payload)
		if !ok {
			continue
		}
		if s.processFrame(pcm) {
			break
		}
	}

	wav := s.finish()
	if wav == nil {
		return nil, ErrNoAudioCaptured
	}
	e.logger.Infow("capture complete",
		"state", s.state.String(),
		"frames", s.frames,
		"duration", s.capturedDuration().Seconds(),
		"elapsed_ms", e.clock().Sub(started).Milliseconds())
	return wav, nil
}

// decodeFrame extracts PCM from one websocket message. Binary messages are
// raw PCM; text messages carry the JSON envelope. Anything malformed is
// logged and skipped so one bad frame cannot kill a live session.
func (e *Engine) decodeFrame(msgType int, payload []byte) ([]byte, bool) {
	switch msgType {
	case websocket.BinaryMessage:
		return payload, len(payload) > 0
	case websocket.TextMessage:
		var frame mediaFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			e.logger.Warnw("skipping malformed media frame", "error", err)
			return nil, false
		}
		if frame.Audio == nil {
			// control message
			return nil, false
		}
		pcm, err := base64.StdEncoding.DecodeString(*frame.Audio)
		if err != nil {
			e.logger.Warnw("skipping frame with bad base64 audio", "error", err)
			return nil, false
		}
		return pcm, len(pcm) > 0
	default:
		return nil, false
	}
}

func normalizeListenURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidListenURL, raw)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidListenURL, raw)
	}
	return parsed.String(), nil
}
