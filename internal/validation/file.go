package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/templui/evidencekit/internal/model"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("only images or PDF files are allowed")
	ErrInvalidPath     = errors.New("invalid storage path")
)

const (
	DefaultMaxSize = 10 << 20 // 10MB
	maxPathLength  = 1024

	genericMimeType = "application/octet-stream"
)

// FileConstraints defines validation rules for evidence uploads
type FileConstraints struct {
	AllowedMimeTypes    map[string]bool
	AllowedMimePrefixes []string
	MaxSize             int64
}

// EvidenceConstraints accepts any image type plus PDF
var EvidenceConstraints = FileConstraints{
	AllowedMimeTypes: map[string]bool{
		"application/pdf": true,
	},
	AllowedMimePrefixes: []string{"image/"},
	MaxSize:             DefaultMaxSize,
}

var extensionMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
}

// InferMimeType returns the declared type, or one derived from the extension
// when none (or the generic octet-stream) was declared
func InferMimeType(filename, declared string) string {
	if declared = strings.TrimSpace(declared); declared != "" && declared != genericMimeType {
		return declared
	}
	mime, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return genericMimeType
	}
	return mime
}

// ValidateFile checks size and type of an in-memory file and returns the resolved
// MIME type. Content is not inspected.
func ValidateFile(f model.MemoryFile, constraints FileConstraints) (string, error) {
	size := f.Size
	if size == 0 {
		size = int64(len(f.Data))
	}
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if constraints.MaxSize > 0 && size > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return "", fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, maxMB)
	}

	mime := InferMimeType(f.Filename, f.MimeType)
	if !constraints.allows(mime) {
		return "", fmt.Errorf("%w (got %s)", ErrUnsupportedType, mime)
	}

	return mime, nil
}

func (c FileConstraints) allows(mime string) bool {
	if c.AllowedMimeTypes[mime] {
		return true
	}
	for _, prefix := range c.AllowedMimePrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// SanitizeFilename folds compatibility characters, replaces every unsafe run
// with "_" and trims leading and trailing underscores. An empty result becomes "file".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	safe := unsafeFilenameChars.ReplaceAllString(norm.NFKD.String(name), "_")
	safe = strings.Trim(safe, "_")
	if safe == "" || safe == "." || safe == ".." {
		return "file"
	}
	return safe
}

// ValidatePath rejects traversal, empty segments and overlong paths
func ValidatePath(path string) error {
	if path == "" || strings.Contains(path, "..") || strings.Contains(path, "//") || len(path) > maxPathLength {
		return ErrInvalidPath
	}
	return nil
}
