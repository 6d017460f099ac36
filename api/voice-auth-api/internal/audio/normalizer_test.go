package internal_audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/vocalisai/vocalis/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-audio"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

// buildWAV assembles a minimal wav with an arbitrary fmt chunk for exercising
// the non-canonical decode paths.
func buildWAV(format, channels uint16, rate uint32, bits uint16, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(payload)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, format)
	binary.Write(&b, binary.LittleEndian, channels)
	binary.Write(&b, binary.LittleEndian, rate)
	binary.Write(&b, binary.LittleEndian, rate*uint32(channels)*uint32(bits)/8)
	binary.Write(&b, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&b, binary.LittleEndian, bits)
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
	return b.Bytes()
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	_, err := n.Normalize(context.Background(), nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Normalize(nil) = %v, want ErrEmptyInput", err)
	}
}

func TestNormalizeCanonicalPassThrough(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	in := PCMToWAV(make([]byte, 96000), canonicalConfig())

	out, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Error("canonical input was not returned byte-identical")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	in := buildWAV(formatPCM, 2, 8000, 16, make([]byte, 32000))

	once, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	twice, err := n.Normalize(context.Background(), once)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Error("Normalize is not idempotent")
	}
}

func TestNormalizeUlaw(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	// one second of µ-law at 8 kHz
	in := buildWAV(formatUlaw, 1, 8000, 8, make([]byte, 8000))

	out, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if err := ValidateWAV(out, canonicalConfig()); err != nil {
		t.Fatalf("output not canonical: %v", err)
	}
	dur, err := Duration(out, canonicalConfig())
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if dur < 0.99 || dur > 1.01 {
		t.Errorf("duration = %v, want ~1.0", dur)
	}
}

func TestNormalizeAlaw(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	in := buildWAV(formatAlaw, 1, 8000, 8, make([]byte, 16000))

	out, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if err := ValidateWAV(out, canonicalConfig()); err != nil {
		t.Fatalf("output not canonical: %v", err)
	}
}

func TestNormalizeStereoPCM(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	// one second of 16 kHz stereo
	in := buildWAV(formatPCM, 2, 16000, 16, make([]byte, 64000))

	out, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	dur, err := Duration(out, canonicalConfig())
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if dur < 0.99 || dur > 1.01 {
		t.Errorf("duration = %v, want ~1.0", dur)
	}
}

func TestNormalizeUnsupportedInput(t *testing.T) {
	n := NewNormalizer(canonicalConfig(), newTestLogger(t))
	n.ffmpegPath = "/nonexistent/ffmpeg"

	_, err := n.Normalize(context.Background(), []byte("definitely not audio data of any kind"))
	if !errors.Is(err, ErrUnsupportedOrCorrupt) {
		t.Fatalf("Normalize = %v, want ErrUnsupportedOrCorrupt", err)
	}
}
