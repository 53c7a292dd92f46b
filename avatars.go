package accounts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/goliatone/go-errors"
)

const (
	// DefaultAvatarSize is the square side length avatars are resized to
	DefaultAvatarSize = 250
	// DefaultAvatarQuality is the JPEG quality used when saving avatars
	DefaultAvatarQuality = 60
)

// AvatarStore processes uploaded images and stores them on disk,
// served back under the public prefix.
type AvatarStore struct {
	dir     string
	prefix  string
	size    int
	quality int
}

// NewAvatarStore creates a store rooted at dir, serving files under /avatars
func NewAvatarStore(dir string) *AvatarStore {
	return &AvatarStore{
		dir:     dir,
		prefix:  "/avatars",
		size:    DefaultAvatarSize,
		quality: DefaultAvatarQuality,
	}
}

// WithPublicPrefix overrides the URL prefix returned for stored avatars
func (s *AvatarStore) WithPublicPrefix(prefix string) *AvatarStore {
	s.prefix = strings.TrimRight(prefix, "/")
	return s
}

// Dir returns the directory files are written to
func (s *AvatarStore) Dir() string {
	return s.dir
}

// Save reads the image at sourcePath, resizes it to a square thumbnail,
// and writes it under the store directory using a per-user unique name.
// It returns the public URL of the stored avatar.
func (s *AvatarStore) Save(userID, sourcePath, originalName string) (string, error) {
	img, err := imaging.Open(sourcePath)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryBadInput, "unable to decode avatar image").
			WithTextCode("INVALID_AVATAR")
	}

	img = imaging.Resize(img, s.size, s.size, imaging.Lanczos)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "unable to create avatar directory")
	}

	filename := s.filename(userID, originalName)

	if err := imaging.Save(img, filepath.Join(s.dir, filename), imaging.JPEGQuality(s.quality)); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "unable to save avatar image")
	}

	return s.prefix + "/" + filename, nil
}

func (s *AvatarStore) filename(userID, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
	default:
		ext = ".jpg"
	}
	return fmt.Sprintf("%s-%d%s", userID, time.Now().UnixNano(), ext)
}
