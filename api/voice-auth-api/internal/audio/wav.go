package internal_audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

var (
	// ErrTruncatedHeader marks input shorter than a complete RIFF/WAVE header.
	ErrTruncatedHeader = errors.New("audio: truncated wav header")
	// ErrNotWAV marks input that does not start with a RIFF/WAVE signature.
	ErrNotWAV = errors.New("audio: not a wav container")
)

const (
	formatPCM  = 1
	formatAlaw = 6
	formatUlaw = 7
)

// wavInfo is the decoded fmt chunk plus the location of the data payload.
type wavInfo struct {
	format        uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
	dataOffset    int
	dataLen       int
}

func (w wavInfo) canonical(cfg AudioConfig) bool {
	return w.format == formatPCM &&
		int(w.channels) == cfg.Channels &&
		int(w.sampleRate) == cfg.SampleRate &&
		int(w.bitsPerSample) == cfg.BitsPerSample
}

// PCMToWAV wraps raw PCM in a RIFF/WAVE container with a fixed 44-byte
// header describing cfg. The same input always yields the same bytes.
func PCMToWAV(pcm []byte, cfg AudioConfig) []byte {
	byteRate := uint32(cfg.BytesPerSecond())
	blockAlign := uint16(cfg.Channels * cfg.BitsPerSample / 8)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(cfg.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(cfg.SampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(cfg.BitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// parseWAV walks the RIFF chunks and returns the fmt description plus the
// data payload location. Unknown chunks are skipped.
func parseWAV(data []byte) (wavInfo, error) {
	if len(data) < 12 {
		return wavInfo{}, ErrTruncatedHeader
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return wavInfo{}, ErrNotWAV
	}

	var info wavInfo
	sawFmt, sawData := false, false
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if chunkLen < 0 || body > len(data) {
			return wavInfo{}, ErrTruncatedHeader
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 || body+16 > len(data) {
				return wavInfo{}, ErrTruncatedHeader
			}
			info.format = binary.LittleEndian.Uint16(data[body : body+2])
			info.channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			info.sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			info.bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			sawFmt = true
		case "data":
			info.dataOffset = body
			info.dataLen = chunkLen
			if body+chunkLen > len(data) {
				// tolerate a header that over-declares; clamp to what we have
				info.dataLen = len(data) - body
			}
			sawData = true
		}
		if sawFmt && sawData {
			break
		}
		// chunks are word aligned
		pos = body + chunkLen + (chunkLen & 1)
	}

	if !sawFmt || !sawData {
		return wavInfo{}, ErrTruncatedHeader
	}
	if info.channels == 0 || info.sampleRate == 0 || info.bitsPerSample == 0 {
		return wavInfo{}, fmt.Errorf("audio: malformed fmt chunk")
	}
	return info, nil
}

// ValidateWAV checks that data is a canonical capture-format wav.
func ValidateWAV(data []byte, cfg AudioConfig) error {
	info, err := parseWAV(data)
	if err != nil {
		return err
	}
	if !info.canonical(cfg) {
		return fmt.Errorf("audio: not canonical format: fmt=%d channels=%d rate=%d bits=%d",
			info.format, info.channels, info.sampleRate, info.bitsPerSample)
	}
	return nil
}

// Duration returns the playback length in seconds of a canonical wav. For the
// fixed 44-byte header this is (len(data)-44) / byte rate.
func Duration(data []byte, cfg AudioConfig) (float64, error) {
	if len(data) < wavHeaderSize {
		return 0, ErrTruncatedHeader
	}
	if err := ValidateWAV(data, cfg); err != nil {
		return 0, err
	}
	return float64(len(data)-wavHeaderSize) / float64(cfg.BytesPerSecond()), nil
}
