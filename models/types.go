package models

import "time"

// Prediction is one label of the score vector, with its raw score scaled to a
// percentage. Confidence is never clamped.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	Index      int     `json:"index"`
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Resize      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}
