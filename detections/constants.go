package detections

const (
	InputWidth  = 224
	InputHeight = 224
	Channels    = 3
	TensorSize  = InputWidth * InputHeight * Channels

	// Every channel byte is mapped to (b - Mean) / Std.
	Mean = 128
	Std  = float32(128.0)

	PercentScale = 100

	DefaultLabelsName = "labels.txt"
	DefaultModelName  = "dog-breed-detector.onnx"
)
