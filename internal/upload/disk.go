package upload

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DiskStorage implements the upload collaborator on the local filesystem.
// Upload returns an opaque reference; callers never interpret it.
type DiskStorage struct {
	basePath string
}

func NewDiskStorage(basePath string) (*DiskStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskStorage{basePath: basePath}, nil
}

func (s *DiskStorage) Upload(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102"),
		uuid.NewString(),
		extensionFor(data),
	)
	path := filepath.Join(s.basePath, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return name, nil
}

// Open reads a previously uploaded file back by its reference.
func (s *DiskStorage) Open(ref string) ([]byte, error) {
	// refs are bare file names; reject anything that walks out
	if filepath.Base(ref) != ref {
		return nil, fmt.Errorf("invalid upload reference: %s", ref)
	}
	return os.ReadFile(filepath.Join(s.basePath, ref))
}

func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
