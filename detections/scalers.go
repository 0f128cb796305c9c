package detections

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Scaler resizes an image to exact dimensions. The resampling filter changes
// the normalized values, so it is fixed per deployment.
type Scaler interface {
	Scale(img image.Image, width, height int) *image.NRGBA
}

type imagingScaler struct {
	filter imaging.ResampleFilter
}

func (s imagingScaler) Scale(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, s.filter)
}

type nfntScaler struct {
	interp resize.InterpolationFunction
}

func (s nfntScaler) Scale(img image.Image, width, height int) *image.NRGBA {
	return imaging.Clone(resize.Resize(uint(width), uint(height), img, s.interp))
}

var (
	// NearestScaler samples without filtering. It is the default.
	NearestScaler Scaler = imagingScaler{filter: imaging.NearestNeighbor}

	NfntNearestScaler Scaler = nfntScaler{interp: resize.NearestNeighbor}
	LinearScaler      Scaler = imagingScaler{filter: imaging.Linear}
	LanczosScaler     Scaler = imagingScaler{filter: imaging.Lanczos}
)

// ParseScaler maps a configuration name to a Scaler.
func ParseScaler(name string) (Scaler, error) {
	switch strings.ToLower(name) {
	case "", "nearest":
		return NearestScaler, nil
	case "nfnt-nearest":
		return NfntNearestScaler, nil
	case "linear":
		return LinearScaler, nil
	case "lanczos":
		return LanczosScaler, nil
	default:
		return nil, fmt.Errorf("unknown scaler %q", name)
	}
}
