package assets

import (
	"context"
	"io"
	"io/fs"
)

// Embedded is a Source over resources compiled into the binary, usually an
// embed.FS.
type Embedded struct {
	fsys fs.FS
}

func NewEmbedded(fsys fs.FS) *Embedded {
	return &Embedded{fsys: fsys}
}

func (e *Embedded) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := e.fsys.Open(name)
	if err != nil {
		return nil, notFound(name, err)
	}
	return f, nil
}

func (e *Embedded) Map(ctx context.Context, name string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(e.fsys, name)
	if err != nil {
		return nil, notFound(name, err)
	}
	return NewBlob(data, nil), nil
}
