package ports

import (
	"context"
	"io"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

type MediaUpload struct {
	Kind        MediaKind
	Filename    string
	ContentType string
	Body        io.Reader
}

// StoredMedia identifies a saved asset. URL is absolute and stable.
type StoredMedia struct {
	Name string
	URL  string
	Size int64
}

type MediaStore interface {
	Save(ctx context.Context, upload MediaUpload) (StoredMedia, error)
	Remove(ctx context.Context, name string) error
}
