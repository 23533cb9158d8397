package utils

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	AvatarDir = "avatars"
	ChatDir   = "chat"

	MaxAvatarBytes    = 2 << 20
	MaxChatImageBytes = 4 << 20
)

var (
	ErrNotAnImage   = errors.New("only image files are allowed")
	ErrFileTooLarge = errors.New("file too large")
)

var allowedImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// ImageStore places uploaded images under Root and maps them to public /uploads paths.
type ImageStore struct {
	Root string
}

func NewImageStore(root string) (*ImageStore, error) {
	for _, dir := range []string{AvatarDir, ChatDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload dir: %w", err)
		}
	}
	return &ImageStore{Root: root}, nil
}

// Prepare validates fh and returns where to write it and the URL it will be served at.
func (s *ImageStore) Prepare(fh *multipart.FileHeader, dir, prefix string, maxBytes int64) (dst string, publicURL string, err error) {
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return "", "", ErrNotAnImage
	}
	if fh.Size > maxBytes {
		return "", "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExts[ext] {
		ext = ".png"
	}
	name := fmt.Sprintf("%s_%s%s", prefix, uuid.NewString(), ext)

	return filepath.Join(s.Root, dir, name), path.Join("/uploads", dir, name), nil
}
