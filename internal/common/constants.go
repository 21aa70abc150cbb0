package common

const (
	// Compression constants
	DefaultCompressionLevel = "Medium"

	// File operation constants
	DefaultFilePermissions = 0755
)
