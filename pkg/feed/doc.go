// ABOUTME: Speech feed package documentation
// ABOUTME: Describes the test server that streams speech to players
// Package feed streams speech-shaped audio to connected players.
//
// A Server accepts websocket players on its path, negotiates an encoding
// from the player's client/hello and then sends audio/chunk messages paced
// at real time. Finite sources finish with audio/end.
//
// Example:
//
//	srv, err := feed.NewServer(feed.ServerConfig{
//	    Name:     "Kitchen Tutor",
//	    Encoding: audio.EncodingWavPCM16,
//	    NewSource: func() (feed.Source, error) {
//	        return feed.NewFileSource("lesson.mp3")
//	    },
//	})
//	go srv.Start()
//	defer srv.Stop()
package feed
