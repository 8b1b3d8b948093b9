// ABOUTME: Speech channel wire protocol package
// ABOUTME: Defines protocol messages and the WebSocket player client
// Package protocol implements the speech channel between a feed and a player.
//
// Every frame is a JSON text message {"type": ..., "payload": ...}. Audio
// travels as base64 inside audio/chunk so the player can hand it to the
// engine's base64 ingestion unchanged.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8930", Name: "Desk"})
//	err := client.Connect(ctx)
//	for ev := range client.Events {
//	    if ev.Chunk != nil {
//	        engine.AddBase64PCM16(ev.Chunk.Data, speechplay.AddOptions{SampleRate: ev.Chunk.SampleRate})
//	    } else if ev.Control.Type == protocol.TypeAudioStop {
//	        engine.Stop()
//	    }
//	}
package protocol
