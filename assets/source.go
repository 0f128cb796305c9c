// Package assets gives a detector access to the resources it is built from:
// the label list and the model blob.
package assets

import (
	"context"
	"io"
	"sync"
)

// Source is a read-only set of named resources.
type Source interface {
	// Open returns the named resource for streaming reads.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Map returns the named resource as read-only bytes which stay valid
	// until the returned Blob is closed.
	Map(ctx context.Context, name string) (*Blob, error)
}

// Blob holds the bytes of a mapped resource. The slice must not be modified.
type Blob struct {
	data    []byte
	release func() error

	once sync.Once
	err  error
}

// NewBlob wraps data. release, when not nil, runs once on Close.
func NewBlob(data []byte, release func() error) *Blob {
	return &Blob{data: data, release: release}
}

func (b *Blob) Bytes() []byte { return b.data }

func (b *Blob) Len() int { return len(b.data) }

// Close releases the backing memory. Bytes must not be used afterwards.
func (b *Blob) Close() error {
	b.once.Do(func() {
		if b.release != nil {
			b.err = b.release()
		}
		b.data = nil
	})
	return b.err
}
