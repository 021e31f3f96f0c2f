package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-dms/fusion"
	"github.com/nvr-ai/go-dms/images"
	"github.com/nvr-ai/go-dms/models"
	"github.com/nvr-ai/go-dms/models/model"
	"github.com/nvr-ai/go-dms/models/postprocess"
)

func fused(classes ...string) fusion.FusedResult {
	r := make(fusion.FusedResult)
	for i, c := range classes {
		x := float32(i * 100)
		r[c] = append(r[c], postprocess.Detection{
			Box:        images.Rect{X1: x, Y1: 0, X2: x + 50, Y2: 50},
			Confidence: 0.8,
			Class:      c,
		})
	}
	return r
}

func keywords(in []Instruction) []string {
	out := make([]string, len(in))
	for i, x := range in {
		out[i] = x.Keyword
	}
	return out
}

func TestInstructions(t *testing.T) {
	tests := []struct {
		name     string
		fused    fusion.FusedResult
		expected []string
	}{
		{
			name:     "nothing detected warns about the seatbelt",
			fused:    fused(),
			expected: []string{NoSeatbelt},
		},
		{
			name:     "seatbelt only",
			fused:    fused(models.ClassSeatbelt),
			expected: []string{models.ClassSeatbelt},
		},
		{
			name:     "dangers come before the seatbelt",
			fused:    fused(models.ClassSeatbelt, models.ClassSmoking, models.ClassPhoneUsage),
			expected: []string{models.ClassPhoneUsage, models.ClassSmoking, models.ClassSeatbelt},
		},
		{
			name:     "unknown classes have no instruction",
			fused:    fused("Yawning", models.ClassDrowsy),
			expected: []string{NoSeatbelt, models.ClassDrowsy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, keywords(Instructions(tt.fused)))
		})
	}
}

func TestInstructionContents(t *testing.T) {
	in := Instructions(fused(models.ClassSmoking, models.ClassSmoking))
	require.Len(t, in, 2)

	assert.Equal(t, Instruction{
		Keyword: NoSeatbelt,
		Title:   "No Seatbelt Detected",
		Message: "Please fasten your seatbelt for your safety.",
		Type:    KindDanger,
		Count:   0,
	}, in[0])
	assert.Equal(t, "Smoking while driving is distracting and unsafe.", in[1].Message)
	assert.Equal(t, KindDanger, in[1].Type)
	assert.Equal(t, 2, in[1].Count)
}

func TestNewReport(t *testing.T) {
	raw := postprocess.Detection{
		Box:           images.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4},
		Confidence:    0.5,
		Class:         models.ClassSafeDriving,
		OriginalClass: "SafeDriving",
		Source:        model.ModelNameBehaviors,
	}
	res := fusion.Result{
		Detections: fused(models.ClassSeatbelt),
		Sources: []fusion.SourceDetections{
			{Model: model.ModelNameObjects, Detections: []postprocess.Detection{}},
			{Model: model.ModelNameBehaviors, Detections: []postprocess.Detection{raw}},
		},
	}

	r := New("cabin.jpg", 640, 480, res, 1500*time.Microsecond)

	_, err := uuid.Parse(r.ID)
	assert.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, []string{models.ClassSeatbelt}, r.DetectedClasses)
	assert.Equal(t, map[string]int{models.ClassSeatbelt: 1}, r.DetectionCounts)
	assert.Equal(t, [4]float32{0, 0, 50, 50}, r.Detections[models.ClassSeatbelt][0].BBox)
	assert.InDelta(t, 1.5, r.DurationMS, 1e-9)

	require.Len(t, r.Models, 2)
	assert.Equal(t, "dms-behaviors", r.Models[1].Model)
	assert.Equal(t, BoxRecord{
		Class:         models.ClassSafeDriving,
		OriginalClass: "SafeDriving",
		Source:        "dms-behaviors",
		Confidence:    0.5,
		BBox:          [4]float32{1, 2, 3, 4},
	}, r.Models[1].Detections[0])
}

func TestWriteJSON(t *testing.T) {
	ok := New("a.jpg", 10, 10, fusion.Result{Detections: fused(models.ClassEating)}, 0)
	failed := Failed("b.jpg", errors.New("engine down"))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []ImageReport{ok, failed}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, []any{models.ClassEating}, decoded[0]["detected_classes"])
	assert.NotContains(t, decoded[0], "error")
	assert.Equal(t, "engine down", decoded[1]["error"])
	assert.Equal(t, []any{}, decoded[1]["instructions"])
	assert.False(t, failed.OK())
}
