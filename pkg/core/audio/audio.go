// Package audio converts raw PCM byte chunks to and from a normalized
// waveform representation and a WAV container, and tracks buffered
// durations. Payloads are little-endian 16-bit signed PCM unless stated
// otherwise.
package audio

import (
	"math"
	"time"
)

// Config specifies the audio format parameters.
type Config struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultConfig returns the standard telephone-quality configuration
// used on the caller audio channel.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the play time of the given byte count.
func (c Config) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesForDuration returns the byte count covering d.
func (c Config) BytesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
}

// SamplesForDuration returns the per-channel sample count covering d.
func (c Config) SamplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(int64(c.SampleRate) * int64(d) / int64(time.Second))
}

// Decode interprets little-endian 16-bit signed PCM and normalizes to
// [-1, 1) by dividing by 32768. A trailing odd byte is ignored.
func Decode(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		samples[i] = float64(s) / 32768.0
	}
	return samples
}

// Concatenate decodes and concatenates an ordered chunk sequence.
// Empty input yields an empty waveform, not an error.
func Concatenate(chunks [][]byte) []float64 {
	var total int
	for _, c := range chunks {
		total += len(c) / 2
	}
	samples := make([]float64, 0, total)
	for _, c := range chunks {
		samples = append(samples, Decode(c)...)
	}
	return samples
}

// EncodePCM16 quantizes normalized samples back to little-endian 16-bit
// PCM. Samples are clipped to [-1, 1] first so out-of-range values
// saturate instead of wrapping around.
func EncodePCM16(samples []float64) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(math.Round(v * 32767.0))
		pcm[2*i] = byte(s)
		pcm[2*i+1] = byte(s >> 8)
	}
	return pcm
}

// Duration returns the play time of totalBytes of PCM under cfg.
func Duration(totalBytes int, cfg Config) time.Duration {
	return cfg.Duration(totalBytes)
}

// HasMinDuration reports whether totalBytes of buffered PCM holds at
// least thresholdSamples samples. This is the buffer-readiness gate for
// the analysis triggers.
func HasMinDuration(totalBytes, thresholdSamples int, cfg Config) bool {
	bytesPerSample := cfg.BitsPerSample / 8
	if bytesPerSample == 0 {
		return false
	}
	return totalBytes/bytesPerSample >= thresholdSamples
}

// RMSEnergy computes the root-mean-square energy of PCM audio,
// normalized to [0, 1].
func RMSEnergy(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
