package pipeline

// guardSize rejects results that are not strictly smaller than the input. On
// rejection the destination is never created and the source stays untouched.
func guardSize(originalSize, compressedSize int64) error {
	if compressedSize >= originalSize {
		return newError(KindCompressionRegression,
			"Compression resulted in a larger file. Original file preserved.")
	}
	return nil
}
