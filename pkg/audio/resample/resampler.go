// ABOUTME: Streaming linear resampler for mono PCM16
// ABOUTME: Interpolates between consecutive input samples across chunk boundaries
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	step       float64 // input samples per output sample
	pos        float64 // offset past prev, in input samples
	prev       int16
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		step:       float64(inputRate) / float64(outputRate),
	}
}

// InputRate returns the rate Process expects
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the rate Process produces
func (r *Resampler) OutputRate() int { return r.outputRate }

// Process appends the resampled form of input to out and returns it
func (r *Resampler) Process(input []int16, out []int16) []int16 {
	for _, cur := range input {
		if !r.primed {
			r.prev = cur
			r.primed = true
			continue
		}
		for r.pos < 1 {
			v := float64(r.prev)*(1-r.pos) + float64(cur)*r.pos
			out = append(out, int16(math.Round(v)))
			r.pos += r.step
		}
		r.pos--
		r.prev = cur
	}
	return out
}

// Flush appends the output still owed for the last input sample
func (r *Resampler) Flush(out []int16) []int16 {
	if !r.primed {
		return out
	}
	for r.pos < 1 {
		out = append(out, r.prev)
		r.pos += r.step
	}
	r.Reset()
	return out
}

// Reset forgets interpolation state
func (r *Resampler) Reset() {
	r.pos = 0
	r.prev = 0
	r.primed = false
}

// OutputLen estimates how many samples n input samples become
func (r *Resampler) OutputLen(n int) int {
	return int(math.Ceil(float64(n) / r.step))
}
