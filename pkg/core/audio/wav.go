package audio

import (
	"encoding/binary"
)

// wavHeaderSize is the canonical 44-byte RIFF/WAVE header with a single
// fmt chunk followed by the data chunk.
const wavHeaderSize = 44

// EncodeWAV wraps raw PCM bytes in a WAV container so the audio can be
// shipped to external analyzers as a self-describing file.
func EncodeWAV(pcm []byte, cfg Config) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))

	blockAlign := cfg.Channels * cfg.BitsPerSample / 8
	byteRate := cfg.SampleRate * blockAlign

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(cfg.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(cfg.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(cfg.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)

	return out
}

// EncodeWAVSamples quantizes normalized samples and wraps them in a WAV
// container.
func EncodeWAVSamples(samples []float64, cfg Config) []byte {
	return EncodeWAV(EncodePCM16(samples), cfg)
}

// WAVPayload returns the PCM payload of a WAV container produced by
// EncodeWAV, or the input unchanged if it is too short to carry the
// header. It does not parse arbitrary WAV files.
func WAVPayload(wav []byte) []byte {
	if len(wav) < wavHeaderSize {
		return wav
	}
	return wav[wavHeaderSize:]
}
