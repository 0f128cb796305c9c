package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tutortoise/dog-breed-detector/models"

	"github.com/viant/afs"
	_ "github.com/viant/afsc/s3"
)

const fileScheme = "file://"

var fileSystem = afs.New()

// Location is a Source rooted at a local directory or at any URL afs can
// read (s3://, mem://, ...). Local models are memory mapped.
type Location struct {
	base  string
	local bool
}

func NewLocation(base string) *Location {
	switch {
	case strings.HasPrefix(base, fileScheme):
		return &Location{base: strings.TrimPrefix(base, fileScheme), local: true}
	case strings.Contains(base, "://"):
		return &Location{base: strings.TrimSuffix(base, "/")}
	default:
		return &Location{base: base, local: true}
	}
}

// URL returns the location of the named resource.
func (l *Location) URL(name string) string {
	if l.local {
		return filepath.Join(l.base, name)
	}
	return l.base + "/" + strings.TrimPrefix(name, "/")
}

func (l *Location) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := l.URL(name)
	if l.local {
		f, err := os.Open(target)
		if err != nil {
			return nil, notFound(name, err)
		}
		return f, nil
	}

	ok, err := fileSystem.Exists(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", target, err)
	}
	if !ok {
		return nil, &models.ResourceNotFoundError{Name: name, Cause: fs.ErrNotExist}
	}
	return fileSystem.OpenURL(ctx, target)
}

func (l *Location) Map(ctx context.Context, name string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.local {
		blob, err := mapFile(l.URL(name))
		if err != nil {
			return nil, notFound(name, err)
		}
		return blob, nil
	}

	reader, err := l.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	err = errors.Join(err, reader.Close())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.URL(name), err)
	}
	return NewBlob(data, nil), nil
}

// notFound converts a missing-file error into a ResourceNotFoundError and
// passes anything else through.
func notFound(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &models.ResourceNotFoundError{Name: name, Cause: err}
	}
	return err
}
