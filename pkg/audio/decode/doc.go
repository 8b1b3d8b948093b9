// ABOUTME: Audio decoder package for speech chunks
// ABOUTME: Provides pure decoders for raw PCM16, WAV, MP3 and FLAC plus an Opus packet decoder
// Package decode turns incoming audio payloads into normalized mono buffers.
//
// The container decoders are pure functions: the same bytes always give the
// same buffer or the same rejection reason. Rejections are sentinel errors
// (ErrBadHeader, ErrMissingChunk, ...) so callers can count and log them
// without inspecting strings.
//
// Example:
//
//	buf, err := decode.DecodeWavPCM16(data)
//	if errors.Is(err, decode.ErrBadHeader) {
//	    // not a WAV payload
//	}
package decode
