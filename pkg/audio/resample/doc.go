// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts streamed mono PCM16 between sample rates
// Package resample provides sample rate conversion for streamed mono audio.
//
// Input may arrive in pieces of any size; interpolation state carries over
// between calls. Call Flush once the input ends.
//
// Example:
//
//	r := resample.New(44100, 48000)
//	out := r.Process(chunk, nil)
//	out = r.Flush(out)
package resample
