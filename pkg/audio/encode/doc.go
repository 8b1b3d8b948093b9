// ABOUTME: Audio encoder package for producing speech payloads
// ABOUTME: Provides PCM16 byte packing, WAV wrapping and Opus packet encoding
// Package encode produces the payload shapes the playback engine consumes.
//
// It is used by the feed server to put audio on the wire and by tests to
// build fixtures.
//
// Example:
//
//	wav, err := encode.WAV(samples, 16000, 1)
//	pcm := encode.PCM16(samples)
package encode
