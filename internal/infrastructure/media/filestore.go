// Package media stores uploaded grievance images and recordings on local disk
// and hands back absolute URLs served under /uploads/.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"civicdesk/internal/errs"
	"civicdesk/internal/ports"
)

// URLPrefix is the HTTP path under which stored files are served.
const URLPrefix = "/uploads/"

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

type FileStore struct {
	dir     string
	baseURL string
}

var _ ports.MediaStore = (*FileStore)(nil)

// NewFileStore creates dir if needed. publicBaseURL is the absolute origin clients use to reach the API.
func NewFileStore(dir string, publicBaseURL string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("media dir is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(publicBaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("public base url must be absolute, got %q", publicBaseURL)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errs.Wrapf(err, "create media dir %q", dir)
	}
	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimRight(parsed.String(), "/"),
	}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes to a temp file, fsyncs and renames, so a partially written asset is never visible.
func (s *FileStore) Save(ctx context.Context, upload ports.MediaUpload) (ports.StoredMedia, error) {
	if ctx == nil {
		return ports.StoredMedia{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.StoredMedia{}, errs.Wrap(err, "check context")
	}
	if upload.Body == nil {
		return ports.StoredMedia{}, errors.New("media body is required")
	}

	name := storageName(upload.Kind, upload.Filename)
	fullPath := filepath.Join(s.dir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return ports.StoredMedia{}, errs.Wrap(err, "create temp media file")
	}

	size, err := io.Copy(f, upload.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return ports.StoredMedia{}, errs.Wrap(err, "write media file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return ports.StoredMedia{}, errs.Wrap(err, "fsync media file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ports.StoredMedia{}, errs.Wrap(err, "close media file")
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return ports.StoredMedia{}, errs.Wrap(err, "rename media file")
	}

	return ports.StoredMedia{
		Name: name,
		URL:  s.baseURL + path.Join(URLPrefix, name),
		Size: size,
	}, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (s *FileStore) Remove(_ context.Context, name string) error {
	clean := filepath.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("invalid media name %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, clean)); err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(err, "remove media %q", clean)
	}
	return nil
}

func storageName(kind ports.MediaKind, originalFilename string) string {
	prefix := string(kind)
	if prefix == "" {
		prefix = "file"
	}
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return prefix + "-" + uuid.NewString() + ext
}
