// Package enginestest builds small ONNX models for backend and detector tests.
package enginestest

import (
	"fmt"

	"github.com/advancedclimatesystems/gonnx/onnx"
	"google.golang.org/protobuf/proto"
)

// LinearModel describes an opset 13 graph computing
// scores = MatMul(Flatten(input), W), with W of shape [size(input), Classes].
type LinearModel struct {
	// InputShape is the declared input shape. Zero dimensions are dynamic.
	InputShape []int64
	Classes    int
	// Weights maps a flattened input index to its per-class weights. Rows
	// not listed are zero.
	Weights map[int][]float32
	// WeightsAsInput also lists W as a graph input, as older exporters do.
	WeightsAsInput bool
}

// Bytes serializes the model.
func (m LinearModel) Bytes() ([]byte, error) {
	// Dynamic dimensions are fed as 1.
	size := 1
	for _, d := range m.InputShape {
		if d > 0 {
			size *= int(d)
		}
	}

	w := make([]float32, size*m.Classes)
	for row, classes := range m.Weights {
		if row < 0 || row >= size || len(classes) != m.Classes {
			return nil, fmt.Errorf("weights row %d: want index below %d and %d values", row, size, m.Classes)
		}
		copy(w[row*m.Classes:], classes)
	}

	inputs := []*onnx.ValueInfoProto{valueInfo("input", m.InputShape...)}
	if m.WeightsAsInput {
		inputs = append(inputs, valueInfo("W", int64(size), int64(m.Classes)))
	}

	model := &onnx.ModelProto{
		IrVersion:   7,
		OpsetImport: []*onnx.OperatorSetIdProto{{Version: 13}},
		Graph: &onnx.GraphProto{
			Name: "linear",
			Node: []*onnx.NodeProto{
				{Name: "flatten", OpType: "Flatten", Input: []string{"input"}, Output: []string{"flat"}},
				{Name: "matmul", OpType: "MatMul", Input: []string{"flat", "W"}, Output: []string{"scores"}},
			},
			Initializer: []*onnx.TensorProto{{
				Name:      "W",
				Dims:      []int64{int64(size), int64(m.Classes)},
				DataType:  int32(onnx.TensorProto_FLOAT),
				FloatData: w,
			}},
			Input:  inputs,
			Output: []*onnx.ValueInfoProto{valueInfo("scores", 1, int64(m.Classes))},
		},
	}
	return proto.Marshal(model)
}

func valueInfo(name string, dims ...int64) *onnx.ValueInfoProto {
	shape := &onnx.TensorShapeProto{}
	for _, d := range dims {
		dim := &onnx.TensorShapeProto_Dimension{}
		if d > 0 {
			dim.Value = &onnx.TensorShapeProto_Dimension_DimValue{DimValue: d}
		} else {
			dim.Value = &onnx.TensorShapeProto_Dimension_DimParam{DimParam: "N"}
		}
		shape.Dim = append(shape.Dim, dim)
	}
	return &onnx.ValueInfoProto{
		Name: name,
		Type: &onnx.TypeProto{
			Value: &onnx.TypeProto_TensorType{
				TensorType: &onnx.TypeProto_Tensor{
					ElemType: int32(onnx.TensorProto_FLOAT),
					Shape:    shape,
				},
			},
		},
	}
}
