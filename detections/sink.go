package detections

import "github.com/Tutortoise/dog-breed-detector/models"

// ResultSink receives the outcome of a recognition.
type ResultSink interface {
	Receive(p models.Prediction)
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(p models.Prediction)

func (f SinkFunc) Receive(p models.Prediction) { f(p) }
