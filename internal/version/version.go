// ABOUTME: Build identification reported to feeds
// ABOUTME: Product, manufacturer and version strings sent in client/hello
package version

// Version is overridden at link time with -ldflags "-X .../version.Version=..."
var Version = "0.3.0"

const (
	Product      = "Speechplay"
	Manufacturer = "Lingoloop"
)

// UserAgent identifies the player in logs and device info
func UserAgent() string {
	return Product + "/" + Version
}
