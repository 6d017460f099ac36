package internal_audio

import (
	"encoding/binary"
	"math"
)

// RMS computes the root-mean-square level of signed 16-bit little-endian PCM,
// normalized to [0, 1]. A trailing odd byte is ignored; empty input is 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(n)) / 32767.0
}

func bytesToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

func int16ToBytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// downmixStereo16 averages interleaved stereo frames into mono.
func downmixStereo16(samples []int16) []int16 {
	out := make([]int16, len(samples)/2)
	for i := range out {
		l := int32(samples[2*i])
		r := int32(samples[2*i+1])
		out[i] = int16((l + r) / 2)
	}
	return out
}

// resampleLinear16 converts between sample rates with linear interpolation.
// Good enough for speech destined for an embedding model; callers needing
// broadcast quality should transcode externally.
func resampleLinear16(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}
