//go:build !unix

package assets

import (
	"fmt"
	"os"
)

func mapFile(path string) (*Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewBlob(data, nil), nil
}
