package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/viant/afs"

	"github.com/Tutortoise/dog-breed-detector/detections"
	"github.com/Tutortoise/dog-breed-detector/models"
)

var fileSystem = afs.New()

type imageRecognizer interface {
	RecognizeTo(img image.Image, sink detections.ResultSink) error
}

type classifyRecord struct {
	Path       string  `json:"path"`
	Label      string  `json:"label,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// classifyImages recognizes each image and reports one line per path. A
// failure is reported in place and does not stop the remaining paths.
func classifyImages(ctx context.Context, d imageRecognizer, paths []string, out io.Writer, asJSON bool) error {
	var errs []error
	for _, path := range paths {
		err := classifyImage(ctx, d, path, out, asJSON)
		if err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
		if asJSON {
			json.NewEncoder(out).Encode(classifyRecord{Path: path, Error: err.Error()})
		} else {
			fmt.Fprintf(out, "%s: could not classify: %v\n", path, err)
		}
	}
	return errors.Join(errs...)
}

func classifyImage(ctx context.Context, d imageRecognizer, path string, out io.Writer, asJSON bool) error {
	img, err := loadImage(ctx, path)
	if err != nil {
		return err
	}

	return d.RecognizeTo(img, detections.SinkFunc(func(p models.Prediction) {
		if asJSON {
			json.NewEncoder(out).Encode(classifyRecord{Path: path, Label: p.Label, Confidence: p.Confidence})
			return
		}
		fmt.Fprintf(out, "%s: %s (%.2f%%)\n", path, p.Label, p.Confidence)
	}))
}

// loadImage reads a local path or any URL afs supports.
func loadImage(ctx context.Context, path string) (image.Image, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if strings.Contains(path, "://") {
		r, err = fileSystem.OpenURL(ctx, path)
	} else {
		r, err = os.Open(path)
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return imaging.Decode(r, imaging.AutoOrientation(true))
}
