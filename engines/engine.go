// Package engines adapts inference runtimes to a single-call contract: one
// input tensor in, one score vector out.
package engines

import (
	"fmt"
	"strings"
)

// Engine runs one forward pass over a loaded model. Engines are not safe for
// concurrent use: callers must serialize Run.
type Engine interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// IOSpec describes the tensors an engine is built for.
type IOSpec struct {
	InputShape  []int64
	OutputWidth int
}

// InputSize is the number of values in one input tensor.
func (s IOSpec) InputSize() int {
	if len(s.InputShape) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.InputShape {
		n *= int(d)
	}
	return n
}

// Backend builds engines from raw model bytes.
type Backend interface {
	Name() string
	Load(model []byte, spec IOSpec) (Engine, error)
	// Close releases process-wide runtime state. Engines must be closed first.
	Close() error
}

type Options struct {
	// LibraryPath points at the onnxruntime shared library.
	LibraryPath    string
	IntraOpThreads int
	InterOpThreads int
}

const (
	BackendONNXRuntime = "onnxruntime"
	BackendGoNNX       = "gonnx"
)

// New returns the backend registered under name.
func New(name string, opts Options) (Backend, error) {
	switch strings.ToLower(name) {
	case BackendONNXRuntime, "ort", "":
		return NewONNXRuntime(opts), nil
	case BackendGoNNX, "go":
		return NewGoNNX(), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", name)
	}
}

// shapeMatches reports whether a declared model shape accepts want. Negative
// declared dimensions are dynamic and match anything.
func shapeMatches(declared, want []int64) bool {
	if len(declared) == 0 {
		return true
	}
	if len(declared) != len(want) {
		return false
	}
	for i, d := range declared {
		if d >= 0 && d != want[i] {
			return false
		}
	}
	return true
}
