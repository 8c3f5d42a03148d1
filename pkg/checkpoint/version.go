package checkpoint

// Version information for the checkpoint module.
const (
	// Version is the current version of the checkpoint module.
	Version = "0.1.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "0.1.0"
)
