package env

// Build metadata, overridden at link time via -ldflags.
var (
	AppName    = "ecsfs"
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)
