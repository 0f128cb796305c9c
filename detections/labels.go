package detections

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LabelSet is the ordered list of class names. Label i names score i.
type LabelSet struct {
	labels []string
}

func NewLabelSet(labels []string) LabelSet {
	return LabelSet{labels: append([]string(nil), labels...)}
}

// ParseLabels reads one label per line, in file order, without trimming. A
// trailing newline does not produce an empty final label; empty lines in the
// middle do.
func ParseLabels(r io.Reader) (LabelSet, error) {
	var labels []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			labels = append(labels, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return LabelSet{}, err
		}
	}
	return LabelSet{labels: labels}, nil
}

func (s LabelSet) Len() int { return len(s.labels) }

func (s LabelSet) At(i int) string { return s.labels[i] }

// Labels returns a copy of the labels.
func (s LabelSet) Labels() []string {
	return append([]string(nil), s.labels...)
}
