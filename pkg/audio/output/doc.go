// ABOUTME: Audio output package for timed playback
// ABOUTME: Provides the Host interface, a software mixer and an oto device backend
// Package output renders scheduled clips on a device clock.
//
// Mixer implements Host entirely in Go and is what tests drive directly.
// Oto wraps a Mixer and plays it on the default sound device.
//
// Example:
//
//	host, err := output.NewOto(24000)
//	gain := host.NewGain(1.0)
//	gain.Connect()
//	clip, err := host.CreateClip(buf)
//	voice, err := host.Start(clip, gain, host.Now(), func() { log.Info("done") })
package output
