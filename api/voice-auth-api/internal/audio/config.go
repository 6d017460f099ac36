package internal_audio

// AudioConfig pins the canonical capture format every downstream stage
// assumes: 16 kHz mono signed 16-bit little-endian PCM.
type AudioConfig struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// NewLinear16khzMonoAudioConfig returns the canonical format.
func NewLinear16khzMonoAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond is the PCM byte rate of the format.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * c.BitsPerSample / 8
}
