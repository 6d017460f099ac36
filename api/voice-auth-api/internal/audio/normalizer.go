package internal_audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zaf/g711"

	"github.com/vocalisai/vocalis/pkg/commons"
)

var (
	// ErrEmptyInput marks a zero-length payload handed to Normalize.
	ErrEmptyInput = errors.New("audio: empty input")
	// ErrUnsupportedOrCorrupt marks input no decode path could make sense of.
	ErrUnsupportedOrCorrupt = errors.New("audio: unsupported or corrupt input")
)

const transcodeTimeout = 30 * time.Second

// Normalizer converts arbitrary input audio into the canonical capture
// format. Canonical input passes through a pure re-emit path; G.711 and
// off-format PCM are converted natively; everything else goes through an
// external ffmpeg transcode.
type Normalizer struct {
	cfg    AudioConfig
	logger commons.Logger

	// ffmpegPath is swappable for tests; empty means "ffmpeg" on PATH.
	ffmpegPath string
}

func NewNormalizer(cfg AudioConfig, logger commons.Logger) *Normalizer {
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize returns data as a canonical wav. The output always carries the
// fixed 44-byte header, so normalizing an already-normalized payload is a
// byte-identical no-op.
func (n *Normalizer) Normalize(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	info, err := parseWAV(data)
	if err == nil {
		switch {
		case info.canonical(n.cfg):
			payload := data[info.dataOffset : info.dataOffset+info.dataLen]
			return PCMToWAV(payload, n.cfg), nil
		case info.format == formatAlaw || info.format == formatUlaw:
			return n.normalizeG711(info, data)
		case info.format == formatPCM && info.bitsPerSample == 16:
			return n.normalizePCM(info, data)
		}
		// exotic wav (float, adpcm, 24-bit): hand off to ffmpeg
	} else if !errors.Is(err, ErrNotWAV) {
		return nil, err
	}

	return n.transcode(ctx, data)
}

func (n *Normalizer) normalizeG711(info wavInfo, data []byte) ([]byte, error) {
	encoded := data[info.dataOffset : info.dataOffset+info.dataLen]
	var lpcm []byte
	if info.format == formatAlaw {
		lpcm = g711.DecodeAlaw(encoded)
	} else {
		lpcm = g711.DecodeUlaw(encoded)
	}

	samples := bytesToInt16(lpcm)
	if info.channels == 2 {
		samples = downmixStereo16(samples)
	}
	samples = resampleLinear16(samples, int(info.sampleRate), n.cfg.SampleRate)
	n.logger.Debugw("g711 decode",
		"format", info.format, "in_rate", info.sampleRate, "out_samples", len(samples))
	return PCMToWAV(int16ToBytes(samples), n.cfg), nil
}

func (n *Normalizer) normalizePCM(info wavInfo, data []byte) ([]byte, error) {
	samples := bytesToInt16(data[info.dataOffset : info.dataOffset+info.dataLen])
	switch info.channels {
	case 1:
	case 2:
		samples = downmixStereo16(samples)
	default:
		return nil, fmt.Errorf("audio: %d-channel pcm not supported", info.channels)
	}
	samples = resampleLinear16(samples, int(info.sampleRate), n.cfg.SampleRate)
	return PCMToWAV(int16ToBytes(samples), n.cfg), nil
}

// transcode shells out to ffmpeg for compressed formats (mp3, m4a, ogg,
// flac, wma and friends). Input and output go through temp files since
// several demuxers need seekable input.
func (n *Normalizer) transcode(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vocalis-audio-*")
	if err != nil {
		return nil, fmt.Errorf("audio: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input")
	outPath := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("audio: temp write: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	bin := n.ffmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-ac", strconv.Itoa(n.cfg.Channels),
		"-ar", strconv.Itoa(n.cfg.SampleRate),
		"-sample_fmt", "s16",
		"-f", "wav",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("audio: transcode timed out: %w", ctx.Err())
		}
		n.logger.Warnw("ffmpeg transcode failed",
			"error", err, "stderr", stderr.String())
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOrCorrupt, firstLine(stderr.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("audio: read transcode output: %w", err)
	}

	// ffmpeg writes extension chunks; re-emit through our own header so the
	// output is canonical regardless of the ffmpeg build.
	info, err := parseWAV(out)
	if err != nil || !info.canonical(n.cfg) {
		return nil, ErrUnsupportedOrCorrupt
	}
	return PCMToWAV(out[info.dataOffset:info.dataOffset+info.dataLen], n.cfg), nil
}

func firstLine(s string) string {
	if i := bytes.IndexByte([]byte(s), '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
