// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Chunk, Buffer and Encoding plus sample conversion functions
// Package audio provides fundamental audio types shared by the decoder, the
// output host and the playback engine.
//
//   - Chunk: an undecoded payload plus its Encoding tag
//   - Buffer: decoded mono float samples with their sample rate
//
// Sample helpers normalize signed 16-bit PCM to [-1, 1] and downmix stereo
// frames with integer arithmetic.
//
// Example:
//
//	buf := audio.Buffer{Samples: samples, SampleRate: 24000}
//	d := buf.Duration()
package audio
