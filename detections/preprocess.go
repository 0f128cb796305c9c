package detections

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Tensor is a flat float32 input tensor.
type Tensor []float32

// Layout is the order of values in a Tensor.
type Layout int

const (
	// LayoutNHWC interleaves channels: R, G, B of pixel 0, then pixel 1, ...
	LayoutNHWC Layout = iota
	// LayoutNCHW stores one full plane per channel.
	LayoutNCHW
)

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "nhwc":
		return LayoutNHWC, nil
	case "nchw":
		return LayoutNCHW, nil
	default:
		return 0, fmt.Errorf("unknown tensor layout %q", s)
	}
}

func (l Layout) String() string {
	if l == LayoutNCHW {
		return "nchw"
	}
	return "nhwc"
}

// Shape is the batch-of-one input shape for the layout.
func (l Layout) Shape() []int64 {
	if l == LayoutNCHW {
		return []int64{1, Channels, InputHeight, InputWidth}
	}
	return []int64{1, InputHeight, InputWidth, Channels}
}

var ErrInvalidImage = errors.New("invalid image")

type Preprocessor struct {
	scaler Scaler
	layout Layout
}

type PreprocessorOption func(*Preprocessor)

func WithScaler(s Scaler) PreprocessorOption {
	return func(p *Preprocessor) {
		p.scaler = s
	}
}

func WithLayout(l Layout) PreprocessorOption {
	return func(p *Preprocessor) {
		p.layout = l
	}
}

func NewPreprocessor(opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{scaler: NearestScaler, layout: LayoutNHWC}
	for _, o := range opts {
		o(p)
	}
	return p
}

var defaultPreprocessor = NewPreprocessor()

// Normalize converts img with the default nearest-neighbour, NHWC
// preprocessor.
func Normalize(img image.Image) (Tensor, error) {
	return defaultPreprocessor.Normalize(img)
}

func (p *Preprocessor) Layout() Layout { return p.layout }

func (p *Preprocessor) Normalize(img image.Image) (Tensor, error) {
	resized, err := p.Resize(img)
	if err != nil {
		return nil, err
	}
	return p.Tensor(resized), nil
}

// Resize scales img to InputWidth x InputHeight.
func (p *Preprocessor) Resize(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrInvalidImage, b)
	}
	resized := p.scaler.Scale(img, InputWidth, InputHeight)
	if resized.Rect.Dx() != InputWidth || resized.Rect.Dy() != InputHeight {
		return nil, fmt.Errorf("scaler produced %dx%d, want %dx%d", resized.Rect.Dx(), resized.Rect.Dy(), InputWidth, InputHeight)
	}
	return resized, nil
}

// Tensor normalizes an already resized image. pic must be exactly
// InputWidth x InputHeight. Alpha is ignored.
func (p *Preprocessor) Tensor(pic *image.NRGBA) Tensor {
	data := make(Tensor, TensorSize)
	if p.layout == LayoutNCHW {
		fillPlanar(data, pic)
	} else {
		fillInterleaved(data, pic)
	}
	return data
}

func fillInterleaved(dst Tensor, pic *image.NRGBA) {
	for y := 0; y < InputHeight; y++ {
		src := pic.Pix[pic.PixOffset(pic.Rect.Min.X, pic.Rect.Min.Y+y):]
		for x := 0; x < InputWidth; x++ {
			s := src[x*4:]
			i := (y*InputWidth + x) * Channels
			dst[i] = channelValue(s[0])
			dst[i+1] = channelValue(s[1])
			dst[i+2] = channelValue(s[2])
		}
	}
}

func fillPlanar(dst Tensor, pic *image.NRGBA) {
	channelSize := InputWidth * InputHeight
	for y := 0; y < InputHeight; y++ {
		src := pic.Pix[pic.PixOffset(pic.Rect.Min.X, pic.Rect.Min.Y+y):]
		offset := y * InputWidth
		for x := 0; x < InputWidth; x++ {
			i := offset + x
			dst[i] = channelValue(src[x*4])
			dst[channelSize+i] = channelValue(src[x*4+1])
			dst[channelSize*2+i] = channelValue(src[x*4+2])
		}
	}
}

func channelValue(b uint8) float32 {
	return float32(int(b)-Mean) / Std
}
