package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// CopyFile copies src to dst, creating missing parent directories. The data
// is staged into a temporary file in dst's directory and renamed into place,
// so a partial dst is never visible.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destDir := filepath.Dir(dst)
	if err := os.MkdirAll(destDir, DefaultFilePermissions); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(destDir, ".copy-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	if _, err := io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// FormatFileSize formats a byte count as a human-readable string using
// 1024-based units: plain bytes below 1 KB, one-decimal KB below 1 MB,
// two-decimal MB above.
func FormatFileSize(sizeBytes int64) string {
	switch {
	case sizeBytes < 1024:
		return fmt.Sprintf("%d bytes", sizeBytes)
	case sizeBytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(sizeBytes)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
	}
}

// SuggestedOutputPath returns the default output path for an input file,
// e.g. "report.pdf" -> "report_compressed.pdf".
func SuggestedOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)
	if ext == "" {
		ext = ".pdf"
	}
	return stem + "_compressed" + ext
}
