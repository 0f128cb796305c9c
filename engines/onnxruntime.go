package engines

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Tutortoise/dog-breed-detector/models"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXRuntime loads models into onnxruntime sessions with input and output
// tensors bound at construction. The ONNX environment is process-wide and is
// initialized on the first Load.
type ONNXRuntime struct {
	opts Options

	mu    sync.Mutex
	owned bool
}

func NewONNXRuntime(opts Options) *ONNXRuntime {
	return &ONNXRuntime{opts: opts}
}

func (b *ONNXRuntime) Name() string { return BackendONNXRuntime }

func (b *ONNXRuntime) initEnvironment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if b.opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(b.opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}
	b.owned = true
	return nil
}

func (b *ONNXRuntime) Load(model []byte, spec IOSpec) (Engine, error) {
	if err := b.initEnvironment(); err != nil {
		return nil, &models.ModelLoadError{Backend: b.Name(), Message: "failed to initialize ONNX environment", Cause: err}
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(model)
	if err != nil {
		return nil, &models.ModelLoadError{Backend: b.Name(), Cause: err}
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, &models.ModelLoadError{
			Backend: b.Name(),
			Message: fmt.Sprintf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs)),
		}
	}
	if !shapeMatches(inputs[0].Dimensions, spec.InputShape) {
		return nil, &models.ModelLoadError{
			Backend: b.Name(),
			Message: fmt.Sprintf("input %s has shape %v, want %v", inputs[0].Name, inputs[0].Dimensions, spec.InputShape),
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, &models.ModelLoadError{Backend: b.Name(), Message: "error creating session options", Cause: err}
	}
	defer options.Destroy()

	if b.opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(b.opts.IntraOpThreads); err != nil {
			return nil, &models.ModelLoadError{Backend: b.Name(), Message: "error setting intra-op threads", Cause: err}
		}
	}
	if b.opts.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(b.opts.InterOpThreads); err != nil {
			return nil, &models.ModelLoadError{Backend: b.Name(), Message: "error setting inter-op threads", Cause: err}
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.InputShape...))
	if err != nil {
		return nil, &models.ModelLoadError{Backend: b.Name(), Message: "error creating input tensor", Cause: err}
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape(outputs[0].Dimensions, spec.OutputWidth))
	if err != nil {
		inputTensor.Destroy()
		return nil, &models.ModelLoadError{Backend: b.Name(), Message: "error creating output tensor", Cause: err}
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		model,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, &models.ModelLoadError{Backend: b.Name(), Message: "error creating session", Cause: err}
	}

	return &ortEngine{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Close destroys the ONNX environment if this backend created it.
func (b *ONNXRuntime) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.owned {
		return nil
	}
	b.owned = false
	return ort.DestroyEnvironment()
}

// outputShape resolves the dynamic dimensions of the declared output. A
// dynamic class dimension (the last one) becomes width, any other dynamic
// dimension becomes 1. With no declared shape the output is [1, width].
func outputShape(declared ort.Shape, width int) ort.Shape {
	if len(declared) == 0 {
		return ort.NewShape(1, int64(width))
	}
	last := len(declared) - 1
	dims := make([]int64, len(declared))
	for i, d := range declared {
		switch {
		case d >= 0:
		case i == last:
			d = int64(width)
		default:
			d = 1
		}
		dims[i] = d
	}
	return ort.NewShape(dims...)
}

type ortEngine struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (e *ortEngine) Run(input []float32) ([]float32, error) {
	data := e.input.GetData()
	if len(input) != len(data) {
		return nil, &models.InferenceError{
			Message: fmt.Sprintf("input tensor has %d values, session expects %d", len(input), len(data)),
		}
	}
	copy(data, input)

	if err := e.session.Run(); err != nil {
		return nil, &models.InferenceError{Message: "model inference", Cause: err}
	}

	out := e.output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (e *ortEngine) Close() error {
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
	}
	if e.input != nil {
		errs = append(errs, e.input.Destroy())
	}
	if e.output != nil {
		errs = append(errs, e.output.Destroy())
	}
	return errors.Join(errs...)
}
