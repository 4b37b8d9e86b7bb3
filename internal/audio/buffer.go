package audio

import "fmt"

// DefaultSampleRate is the fixed sample rate of the streaming protocol.
const DefaultSampleRate = 16000

// Buffer accumulates raw PCM-16 audio chunks for a single utterance and
// converts them to normalized float samples on demand.
//
// A Buffer is owned by exactly one session and is not safe for concurrent use.
type Buffer struct {
	sampleRate   int
	chunks       [][]float32
	totalSamples int
}

// NewBuffer creates an empty audio buffer for the given sample rate.
func NewBuffer(sampleRate int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Buffer{
		sampleRate: sampleRate,
		chunks:     make([][]float32, 0, 16),
	}
}

// AddChunk decodes a chunk of little-endian 16-bit signed PCM into normalized
// float samples in [-1, 1) and appends it to the buffer.
func (b *Buffer) AddChunk(data []byte) error {
	if len(data)%2 != 0 {
		return fmt.Errorf("audio chunk length must be even (got %d bytes)", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(data[2*i]) | int16(data[2*i+1])<<8
		samples[i] = float32(s) / 32768.0
	}

	b.chunks = append(b.chunks, samples)
	b.totalSamples += len(samples)
	return nil
}

// Samples concatenates all buffered chunks in arrival order. It returns an
// empty slice when nothing has been buffered.
func (b *Buffer) Samples() []float32 {
	out := make([]float32, 0, b.totalSamples)
	for _, chunk := range b.chunks {
		out = append(out, chunk...)
	}
	return out
}

// Clear resets the buffer to empty. Used at the start of a new utterance and
// after a final result has been emitted.
func (b *Buffer) Clear() {
	b.chunks = b.chunks[:0]
	b.totalSamples = 0
}

// Duration returns the buffered audio length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.totalSamples) / float64(b.sampleRate)
}

// TotalSamples returns the number of buffered samples across all chunks.
func (b *Buffer) TotalSamples() int {
	return b.totalSamples
}

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}
