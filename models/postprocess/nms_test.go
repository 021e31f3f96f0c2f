package postprocess

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-dms/images"
)

func det(x1, y1, x2, y2, conf float32) Detection {
	return Detection{Box: images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, Confidence: conf, Class: "Smoking"}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     images.Rect
		expected bool
	}{
		{
			name:     "nested box",
			a:        images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:        images.Rect{X1: 5, Y1: 5, X2: 95, Y2: 95},
			expected: true,
		},
		{
			name:     "small box at the center has low IoU but overlaps",
			a:        images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:        images.Rect{X1: 40, Y1: 40, X2: 60, Y2: 60},
			expected: true,
		},
		{
			name:     "center on the shared edge is inside",
			a:        images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:        images.Rect{X1: 50, Y1: 0, X2: 150, Y2: 100},
			expected: true,
		},
		{
			name:     "partial overlap below threshold",
			a:        images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:        images.Rect{X1: 60, Y1: 0, X2: 160, Y2: 100},
			expected: false,
		},
		{
			name:     "disjoint",
			a:        images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        images.Rect{X1: 20, Y1: 20, X2: 30, Y2: 30},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(tt.a, tt.b, 0.45))
			assert.Equal(t, tt.expected, Overlaps(tt.b, tt.a, 0.45), "overlap must be symmetric")
		})
	}
}

func TestSuppress(t *testing.T) {
	tests := []struct {
		name     string
		input    []Detection
		expected []Detection
	}{
		{
			name:     "nested lower confidence box is suppressed",
			input:    []Detection{det(5, 5, 95, 95, 0.6), det(0, 0, 100, 100, 0.9)},
			expected: []Detection{det(0, 0, 100, 100, 0.9)},
		},
		{
			name:     "center containment suppresses despite low IoU",
			input:    []Detection{det(0, 0, 100, 100, 0.9), det(40, 40, 60, 60, 0.8)},
			expected: []Detection{det(0, 0, 100, 100, 0.9)},
		},
		{
			name:     "partial overlap keeps both",
			input:    []Detection{det(60, 0, 160, 100, 0.7), det(0, 0, 100, 100, 0.9)},
			expected: []Detection{det(0, 0, 100, 100, 0.9), det(60, 0, 160, 100, 0.7)},
		},
		{
			name:     "equal confidence keeps the earlier input",
			input:    []Detection{det(0, 0, 100, 100, 0.5), det(2, 2, 98, 98, 0.5)},
			expected: []Detection{det(0, 0, 100, 100, 0.5)},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []Detection{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Suppress(tt.input, 0.45))
		})
	}
}

func TestApplyGreedyNMSClassAware(t *testing.T) {
	a := det(0, 0, 100, 100, 0.9)
	b := det(0, 0, 100, 100, 0.8)
	b.Class = "Drinking"

	kept := ApplyGreedyNMS([]Detection{a, b}, &NMSConfig{IoUThreshold: 0.45, ClassAware: true})
	assert.Len(t, kept, 2)

	kept = ApplyGreedyNMS([]Detection{a, b}, &NMSConfig{IoUThreshold: 0.45})
	assert.Equal(t, []Detection{a}, kept)
}

func TestApplyGreedyNMSIoUOnly(t *testing.T) {
	outer := det(0, 0, 100, 100, 0.9)
	inner := det(40, 40, 60, 60, 0.8)

	kept := ApplyGreedyNMS([]Detection{outer, inner}, &NMSConfig{IoUThreshold: 0.45})
	assert.Len(t, kept, 2, "without center containment a small inner box survives")
}

func TestSuppressProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const iou = float32(0.45)

	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		input := make([]Detection, n)
		for i := range input {
			x := rng.Float32() * 200
			y := rng.Float32() * 200
			w := 1 + rng.Float32()*80
			h := 1 + rng.Float32()*80
			input[i] = det(x, y, x+w, y+h, float32(rng.Intn(10)+1)/10)
		}
		snapshot := make([]Detection, n)
		copy(snapshot, input)

		kept := Suppress(input, iou)

		require.Equal(t, snapshot, input, "input must not be mutated")
		require.LessOrEqual(t, len(kept), len(input))

		for i := range kept {
			assert.Contains(t, input, kept[i])
			if i > 0 {
				assert.GreaterOrEqual(t, kept[i-1].Confidence, kept[i].Confidence)
			}
			for j := i + 1; j < len(kept); j++ {
				assert.False(t, Overlaps(kept[i].Box, kept[j].Box, iou),
					"round %d: survivors %v and %v overlap", round, kept[i], kept[j])
			}
		}

		assert.Equal(t, kept, Suppress(kept, iou), "suppression must be idempotent")
	}
}
