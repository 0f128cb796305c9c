package detections

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Tutortoise/dog-breed-detector/assets"
	"github.com/Tutortoise/dog-breed-detector/engines"
	"github.com/Tutortoise/dog-breed-detector/models"
)

// Detector maps images to breed labels with one loaded model.
//
// A Detector is not safe for concurrent use: inference engines bind their
// input and output buffers, so callers must serialize calls or keep one
// Detector per goroutine.
type Detector struct {
	labels  LabelSet
	engine  engines.Engine
	backend string
	model   *assets.Blob
	prep    *Preprocessor
}

type detectorOptions struct {
	labelsName string
	modelName  string
	prep       *Preprocessor
}

type Option func(*detectorOptions)

func WithLabelsName(name string) Option {
	return func(o *detectorOptions) {
		o.labelsName = name
	}
}

func WithModelName(name string) Option {
	return func(o *detectorOptions) {
		o.modelName = name
	}
}

func WithPreprocessor(p *Preprocessor) Option {
	return func(o *detectorOptions) {
		o.prep = p
	}
}

// NewDetector reads the label list and maps the model from source, then
// builds an engine with backend. It returns a usable Detector or an error,
// never both: a missing resource is a *models.ResourceNotFoundError and a
// model the backend rejects is a *models.ModelLoadError.
func NewDetector(ctx context.Context, source assets.Source, backend engines.Backend, opts ...Option) (*Detector, error) {
	o := detectorOptions{
		labelsName: DefaultLabelsName,
		modelName:  DefaultModelName,
		prep:       defaultPreprocessor,
	}
	for _, opt := range opts {
		opt(&o)
	}

	labels, err := loadLabels(ctx, source, o.labelsName)
	if err != nil {
		return nil, err
	}

	blob, err := source.Map(ctx, o.modelName)
	if err != nil {
		return nil, err
	}

	engine, err := backend.Load(blob.Bytes(), engines.IOSpec{
		InputShape:  o.prep.Layout().Shape(),
		OutputWidth: labels.Len(),
	})
	if err != nil {
		var loadErr *models.ModelLoadError
		if !errors.As(err, &loadErr) {
			err = &models.ModelLoadError{Backend: backend.Name(), Cause: err}
		}
		return nil, errors.Join(err, blob.Close())
	}

	return &Detector{
		labels:  labels,
		engine:  engine,
		backend: backend.Name(),
		model:   blob,
		prep:    o.prep,
	}, nil
}

func loadLabels(ctx context.Context, source assets.Source, name string) (LabelSet, error) {
	r, err := source.Open(ctx, name)
	if err != nil {
		return LabelSet{}, err
	}
	labels, err := ParseLabels(r)
	if err = errors.Join(err, r.Close()); err != nil {
		return LabelSet{}, fmt.Errorf("read %s: %w", name, err)
	}
	if labels.Len() == 0 {
		return LabelSet{}, &models.ModelLoadError{Message: fmt.Sprintf("%s contains no labels", name)}
	}
	return labels, nil
}

func (d *Detector) Labels() LabelSet { return d.labels }

func (d *Detector) Backend() string { return d.backend }

// ModelSize is the size of the mapped model blob in bytes.
func (d *Detector) ModelSize() int {
	if d.model == nil {
		return 0
	}
	return d.model.Len()
}

func (d *Detector) Preprocessor() *Preprocessor { return d.prep }

// Classify runs the engine once on t and returns the best label.
func (d *Detector) Classify(t Tensor) (models.Prediction, error) {
	scores, err := d.scores(t)
	if err != nil {
		return models.Prediction{}, err
	}
	return Top1(d.labels, scores)
}

// Recognize normalizes img and classifies it.
func (d *Detector) Recognize(img image.Image) (models.Prediction, error) {
	t, err := d.prep.Normalize(img)
	if err != nil {
		return models.Prediction{}, err
	}
	return d.Classify(t)
}

// RecognizeTo delivers the result of Recognize to sink. Nothing is delivered
// on error.
func (d *Detector) RecognizeTo(img image.Image, sink ResultSink) error {
	p, err := d.Recognize(img)
	if err != nil {
		return err
	}
	sink.Receive(p)
	return nil
}

// Process recognizes img and returns the topK predictions, best first,
// recording stage durations in timings when it is not nil. ctx is only
// checked before work starts; inference is not interruptible.
func (d *Detector) Process(ctx context.Context, img image.Image, topK int, timings *models.ProcessingTimings) ([]models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}

	resizeStart := time.Now()
	resized, err := d.prep.Resize(img)
	if err != nil {
		return nil, err
	}
	timings.Resize = time.Since(resizeStart)

	prepStart := time.Now()
	t := d.prep.Tensor(resized)
	timings.Preprocess = time.Since(prepStart)

	inferStart := time.Now()
	scores, err := d.scores(t)
	if err != nil {
		return nil, err
	}
	timings.Inference = time.Since(inferStart)

	postStart := time.Now()
	predictions, err := Rank(d.labels, scores, topK)
	if err != nil {
		return nil, err
	}
	timings.Postprocess = time.Since(postStart)

	return predictions, nil
}

func (d *Detector) scores(t Tensor) ([]float32, error) {
	if d.engine == nil {
		return nil, &models.InferenceError{Message: "detector is closed"}
	}
	scores, err := d.engine.Run(t)
	if err != nil {
		var inferenceErr *models.InferenceError
		if !errors.As(err, &inferenceErr) {
			err = &models.InferenceError{Message: "model inference", Cause: err}
		}
		return nil, err
	}
	return scores, nil
}

// Close releases the engine and the model mapping.
func (d *Detector) Close() error {
	var errs []error
	if d.engine != nil {
		errs = append(errs, d.engine.Close())
		d.engine = nil
	}
	if d.model != nil {
		errs = append(errs, d.model.Close())
		d.model = nil
	}
	return errors.Join(errs...)
}
