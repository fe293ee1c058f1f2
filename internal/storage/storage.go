// Package storage holds what every artifact store shares: the create-new
// contract and artifact name validation.
package storage

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// ErrExists is returned when an artifact with the same name is already
// present. Stores never overwrite.
var ErrExists = errors.New("artifact already exists")

// ValidateName rejects names that would escape the target directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("artifact name is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid artifact name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("artifact name %q must not contain path separators", name)
	}
	return nil
}

var extraContentTypes = map[string]string{
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".txt":  "text/plain; charset=utf-8",
}

// ContentType guesses a MIME type from the artifact's extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := extraContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
