package version

// Version is the current version of the engine library.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rzcastilho/trading-strategy-sub000/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// SchemaVersion is the strategy definition schema version this engine
// implements. A strategy declaring an incompatible schema_version is
// rejected at load time.
const SchemaVersion = "1.0.0"

// GetVersion returns the current version of the library.
func GetVersion() string {
	return Version
}
