package detections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"trailing newline", "beagle\npug\n", []string{"beagle", "pug"}},
		{"no trailing newline", "beagle\npug", []string{"beagle", "pug"}},
		{"crlf", "beagle\r\npug\r\n", []string{"beagle", "pug"}},
		{"blank line kept", "beagle\n\npug\n", []string{"beagle", "", "pug"}},
		{"text kept as is", " Shih-Tzu \nchihuahua\n", []string{" Shih-Tzu ", "chihuahua"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := ParseLabels(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels.Labels())
			assert.Equal(t, len(tt.want), labels.Len())
		})
	}
}

func TestLabelSetIsImmutable(t *testing.T) {
	source := []string{"a", "b"}
	labels := NewLabelSet(source)
	source[0] = "z"

	copied := labels.Labels()
	copied[1] = "y"

	assert.Equal(t, "a", labels.At(0))
	assert.Equal(t, "b", labels.At(1))
}
