package engines

import (
	"fmt"

	"github.com/Tutortoise/dog-breed-detector/models"

	"github.com/advancedclimatesystems/gonnx"
	"github.com/advancedclimatesystems/gonnx/onnx"
	"gorgonia.org/tensor"
)

// GoNNX runs models with the pure Go gonnx interpreter. It needs no shared
// library, at the cost of speed and operator coverage.
type GoNNX struct{}

func NewGoNNX() *GoNNX { return &GoNNX{} }

func (b *GoNNX) Name() string { return BackendGoNNX }

func (b *GoNNX) Load(model []byte, spec IOSpec) (Engine, error) {
	m, err := gonnx.NewModelFromBytes(model)
	if err != nil {
		return nil, &models.ModelLoadError{Backend: b.Name(), Cause: err}
	}

	inputs, outputs := graphInputs(m), m.OutputNames()
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, &models.ModelLoadError{
			Backend: b.Name(),
			Message: fmt.Sprintf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs)),
		}
	}
	if declared := inputDims(m.InputShapes()[inputs[0]]); !shapeMatches(declared, spec.InputShape) {
		return nil, &models.ModelLoadError{
			Backend: b.Name(),
			Message: fmt.Sprintf("input %s has shape %v, want %v", inputs[0], declared, spec.InputShape),
		}
	}

	shape := make([]int, len(spec.InputShape))
	for i, d := range spec.InputShape {
		shape[i] = int(d)
	}
	return &gonnxEngine{
		model:  m,
		input:  inputs[0],
		output: outputs[0],
		shape:  shape,
		size:   spec.InputSize(),
	}, nil
}

func (b *GoNNX) Close() error { return nil }

// graphInputs lists the inputs a caller has to feed. Older exports also list
// their initializers as graph inputs; those are skipped.
func graphInputs(m *gonnx.Model) []string {
	params := make(map[string]bool)
	for _, name := range m.ParamNames() {
		params[name] = true
	}
	var inputs []string
	for _, name := range m.InputNames() {
		if !params[name] {
			inputs = append(inputs, name)
		}
	}
	return inputs
}

// inputDims converts a declared gonnx shape to dimensions, with -1 for
// dynamic ones.
func inputDims(shape onnx.Shape) []int64 {
	if len(shape) == 0 {
		return nil
	}
	dims := make([]int64, len(shape))
	for i, d := range shape {
		if d.IsDynamic {
			dims[i] = -1
			continue
		}
		dims[i] = d.Size
	}
	return dims
}

type gonnxEngine struct {
	model  *gonnx.Model
	input  string
	output string
	shape  []int
	size   int
}

func (e *gonnxEngine) Run(input []float32) ([]float32, error) {
	if len(input) != e.size {
		return nil, &models.InferenceError{
			Message: fmt.Sprintf("input tensor has %d values, model expects %d", len(input), e.size),
		}
	}

	backing := make([]float32, len(input))
	copy(backing, input)
	inputs := map[string]tensor.Tensor{
		e.input: tensor.New(tensor.WithShape(e.shape...), tensor.WithBacking(backing)),
	}

	outputs, err := e.model.Run(inputs)
	if err != nil {
		return nil, &models.InferenceError{Message: "model inference", Cause: err}
	}
	out, ok := outputs[e.output]
	if !ok {
		return nil, &models.InferenceError{Message: fmt.Sprintf("output %s missing from results", e.output)}
	}
	data, ok := out.Data().([]float32)
	if !ok {
		return nil, &models.InferenceError{Message: fmt.Sprintf("output type %T is not supported", out.Data())}
	}

	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

func (e *gonnxEngine) Close() error { return nil }
