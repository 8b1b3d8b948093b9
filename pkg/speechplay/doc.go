// ABOUTME: Speech playback library API
// ABOUTME: Provides the Engine that schedules streamed speech chunks gaplessly
// Package speechplay plays speech that arrives in bursts of small chunks.
//
// The Engine decodes each chunk (raw PCM16, WAV, MP3 or Opus), asks the
// Scheduler for the next free slot on the device clock and hands the buffer
// to an output.Host for sample-accurate playback. Chunks that arrive faster
// than real time play back to back; chunks that arrive late start as soon as
// possible.
//
// Ingestion never fails loudly. Rejected chunks are counted in Stats and
// reported through EngineConfig.OnDrop.
//
// Example:
//
//	engine := speechplay.NewEngine(speechplay.EngineConfig{})
//	if err := engine.Initialize(); err != nil {
//	    log.Warn("no audio", "err", err)
//	}
//	engine.AddBase64WavPCM16(payload, speechplay.AddOptions{})
//	engine.SetVolume(0.8)
//	err := engine.Stop()
package speechplay
