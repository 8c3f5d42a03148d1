package hec

// Version information for the hec module.
const (
	// Version is the current version of the hec module.
	Version = "0.1.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "0.1.0"
)
