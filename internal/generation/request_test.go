package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestBuildRequest_StandardDefaults(t *testing.T) {
	req, err := BuildRequest(Input{
		SourceImageURL: "  https://i.ibb.co/abc/photo.png ",
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "Video_1714564800000", req.Name)
	assert.Equal(t, "https://i.ibb.co/abc/photo.png", req.SourceImageURL)
	assert.Equal(t, VariantStandard, req.Variant)
	assert.Equal(t, DefaultPrompt, req.Prompt)
	assert.Equal(t, DefaultNegativePrompt, req.NegativePrompt)
	assert.Equal(t, Seconds(5), req.Duration)
	assert.Equal(t, 1, req.ReplicateCount)
	assert.Empty(t, req.EndImageURL)
}

func TestBuildRequest_NormalizesSource(t *testing.T) {
	req, err := BuildRequest(Input{
		SourceImageURL: "https://drive.google.com/file/d/ABC123/view?usp=sharing",
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "https://drive.google.com/uc?export=download&id=ABC123", req.SourceImageURL)
}

func TestBuildRequest_FirstLastFrame(t *testing.T) {
	req, err := BuildRequest(Input{
		Name:           "clip",
		SourceImageURL: "https://www.dropbox.com/s/x/a.png?dl=0",
		EndImageURL:    "https://www.dropbox.com/s/x/b.png?dl=0",
		Prompt:         "walks forward",
		Variant:        VariantFirstLastFrame,
		ReplicateCount: 2,
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "https://www.dropbox.com/s/x/a.png?dl=1", req.SourceImageURL)
	assert.Equal(t, "https://www.dropbox.com/s/x/b.png?dl=1", req.EndImageURL)
	assert.Equal(t, Frames(81), req.Duration)
	assert.Equal(t, 2, req.ReplicateCount)
}

func TestBuildRequest_EndImageIgnoredOutsideFirstLastFrame(t *testing.T) {
	req, err := BuildRequest(Input{
		SourceImageURL: "https://example.com/a.png",
		EndImageURL:    "https://example.com/b.png",
	}, fixedNow)
	require.NoError(t, err)

	assert.Empty(t, req.EndImageURL)
}

func TestBuildRequest_ReplicateClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{99, 5},
	}

	for _, tt := range tests {
		req, err := BuildRequest(Input{SourceImageURL: "https://example.com/a.png", ReplicateCount: tt.in}, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, tt.want, req.ReplicateCount, "input %d", tt.in)
	}
}

func TestBuildRequest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		wantMsg string
	}{
		{
			name:    "missing image",
			input:   Input{SourceImageURL: "   "},
			wantMsg: "Please provide image URL",
		},
		{
			name: "missing end image",
			input: Input{
				SourceImageURL: "https://example.com/a.png",
				Prompt:         "p",
				Variant:        VariantFirstLastFrame,
			},
			wantMsg: "Please provide end image URL for first-last-frame generation",
		},
		{
			name: "general requires prompt",
			input: Input{
				SourceImageURL: "https://example.com/a.png",
				Variant:        VariantGeneral,
			},
			wantMsg: "Please provide a prompt for the general model",
		},
		{
			name: "unknown variant",
			input: Input{
				SourceImageURL: "https://example.com/a.png",
				Prompt:         "p",
				Variant:        "turbo",
			},
			wantMsg: `unsupported model variant "turbo"`,
		},
		{
			name: "seconds outside choices",
			input: Input{
				SourceImageURL: "https://example.com/a.png",
				Duration:       Seconds(7),
			},
			wantMsg: "invalid duration 7 seconds for the standard model, choose one of [5 10 15] seconds",
		},
		{
			name: "frames on a seconds model",
			input: Input{
				SourceImageURL: "https://example.com/a.png",
				Duration:       Frames(81),
			},
			wantMsg: "invalid duration 81 frames for the standard model, choose one of [5 10 15] seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest(tt.input, fixedNow)
			require.Error(t, err)

			var ge *Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, KindValidation, ge.Kind)
			assert.Equal(t, tt.wantMsg, ge.Message)
		})
	}
}

func TestDuration_ValidChoices(t *testing.T) {
	for _, v := range []int{5, 10, 15} {
		_, err := BuildRequest(Input{
			SourceImageURL: "https://example.com/a.png",
			Prompt:         "p",
			Variant:        VariantGeneral,
			Duration:       Seconds(v),
		}, fixedNow)
		assert.NoError(t, err, "seconds %d", v)
	}
	for _, v := range []int{81, 129} {
		_, err := BuildRequest(Input{
			SourceImageURL: "https://example.com/a.png",
			EndImageURL:    "https://example.com/b.png",
			Prompt:         "p",
			Variant:        VariantFirstLastFrame,
			Duration:       Frames(v),
		}, fixedNow)
		assert.NoError(t, err, "frames %d", v)
	}
}

func TestChoices_ReturnsCopy(t *testing.T) {
	c := Choices(UnitSeconds)
	c[0] = 42

	assert.Equal(t, []int{5, 10, 15}, Choices(UnitSeconds))
	assert.Equal(t, []int{81, 129}, Choices(UnitFrames))
}
