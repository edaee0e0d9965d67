package upload

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const avatarBucket = "avatars"

// BlobInfo is the descriptor returned for each stored blob. It is what
// gets embedded into messages as an attachment descriptor.
type BlobInfo struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Store writes uploaded blobs to the local filesystem under opaque
// names and hands back stable retrieval URLs. Two buckets: general
// attachments at the root, avatar images under avatars/.
type Store struct {
	root      string
	urlPrefix string
}

func NewStore(root, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, avatarBucket), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directories: %w", err)
	}
	return &Store{
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Dir returns the filesystem root served at the URL prefix.
func (s *Store) Dir() string {
	return s.root
}

// URLPrefix returns the public path prefix blobs are served under.
func (s *Store) URLPrefix() string {
	return s.urlPrefix
}

// SaveBlob stores a general attachment and returns its descriptor. The
// stored name is a random hex string keeping the original extension, so
// concurrent writes never collide.
func (s *Store) SaveBlob(originalName string, data []byte, contentType string) (*BlobInfo, error) {
	if originalName == "" {
		originalName = "file"
	}
	name := opaqueName(originalName, "")

	if err := s.write("", name, data); err != nil {
		return nil, err
	}

	return &BlobInfo{
		Filename:    originalName,
		URL:         s.urlPrefix + "/" + name,
		ContentType: contentType,
	}, nil
}

// SaveAvatar stores an avatar image and returns its retrieval URL.
// MIME enforcement happens at the handler; names without an extension
// get .png so the static file server infers an image type.
func (s *Store) SaveAvatar(originalName string, data []byte) (string, error) {
	if originalName == "" {
		originalName = "avatar"
	}
	name := opaqueName(originalName, ".png")

	if err := s.write(avatarBucket, name, data); err != nil {
		return "", err
	}
	return s.urlPrefix + "/" + avatarBucket + "/" + name, nil
}

func (s *Store) write(bucket, name string, data []byte) error {
	diskPath := filepath.Join(s.root, bucket, name)
	if err := os.WriteFile(diskPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

func opaqueName(originalName, fallbackExt string) string {
	ext := path.Ext(originalName)
	if ext == "" {
		ext = fallbackExt
	}
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return hex + ext
}
