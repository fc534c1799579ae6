package generation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/i2v-orchestrator/internal/generation/id"
	"github.com/maauso/i2v-orchestrator/internal/normalize"
)

// ModelVariant selects the remote generation model.
type ModelVariant string

const (
	// VariantStandard animates a single image; the prompt is optional.
	VariantStandard ModelVariant = "standard"
	// VariantGeneral is the general-purpose model; a prompt is required.
	VariantGeneral ModelVariant = "general"
	// VariantFirstLastFrame interpolates between a start and an end image.
	VariantFirstLastFrame ModelVariant = "first_last_frame"
)

// DurationUnit is the unit a variant measures video length in.
type DurationUnit string

const (
	// UnitSeconds is sent as video_time.
	UnitSeconds DurationUnit = "seconds"
	// UnitFrames is sent as video_length.
	UnitFrames DurationUnit = "frames"
)

// Replicate count bounds.
const (
	MinReplicates = 1
	MaxReplicates = 5
)

// Defaults applied when the user leaves the prompts empty.
const (
	DefaultPrompt         = "the person is speaking. Looking at the camera. detailed eyes, clear teeth, static view point, still background"
	DefaultNegativePrompt = "six fingers, bad hands, lowres, low quality, worst quality, moving view point, static image"
)

var (
	secondChoices = []int{5, 10, 15}
	frameChoices  = []int{81, 129}
)

// Duration is the requested video length.
type Duration struct {
	Unit  DurationUnit `json:"unit"`
	Value int          `json:"value"`
}

// Seconds returns a Duration measured in seconds.
func Seconds(n int) Duration { return Duration{Unit: UnitSeconds, Value: n} }

// Frames returns a Duration measured in frames.
func Frames(n int) Duration { return Duration{Unit: UnitFrames, Value: n} }

func (d Duration) String() string {
	return fmt.Sprintf("%d %s", d.Value, d.Unit)
}

// UnitFor returns the duration unit used by a model variant.
func UnitFor(v ModelVariant) DurationUnit {
	if v == VariantFirstLastFrame {
		return UnitFrames
	}
	return UnitSeconds
}

// Choices returns the valid duration values for a unit.
func Choices(u DurationUnit) []int {
	if u == UnitFrames {
		return slices.Clone(frameChoices)
	}
	return slices.Clone(secondChoices)
}

func (d Duration) withDefaults(v ModelVariant) Duration {
	if d.Unit == "" {
		d.Unit = UnitFor(v)
	}
	if d.Value == 0 && d.Unit == UnitFor(v) {
		d.Value = Choices(d.Unit)[0]
	}
	return d
}

func (d Duration) validFor(v ModelVariant) bool {
	return d.Unit == UnitFor(v) && slices.Contains(Choices(d.Unit), d.Value)
}

// ClampReplicates forces n into [MinReplicates, MaxReplicates].
func ClampReplicates(n int) int {
	return min(max(n, MinReplicates), MaxReplicates)
}

// Input is the raw user intent collected at submit time.
type Input struct {
	Name           string
	SourceImageURL string
	EndImageURL    string
	Prompt         string
	NegativePrompt string
	Duration       Duration
	Variant        ModelVariant
	ExtendPrompt   bool
	ReplicateCount int
}

// Request is an immutable generation request built from an Input.
// A new submission always builds a new Request.
type Request struct {
	Name           string       `json:"name" validate:"required"`
	SourceImageURL string       `json:"image_url" validate:"required"`
	EndImageURL    string       `json:"end_image_url,omitempty" validate:"required_if=Variant first_last_frame"`
	Prompt         string       `json:"prompt" validate:"required_unless=Variant standard"`
	NegativePrompt string       `json:"negative_prompt"`
	Duration       Duration     `json:"duration"`
	Variant        ModelVariant `json:"model_variant" validate:"oneof=standard general first_last_frame"`
	ExtendPrompt   bool         `json:"extend_prompt"`
	ReplicateCount int          `json:"replicate_count" validate:"min=1,max=5"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(Request)
		if !r.Duration.validFor(r.Variant) {
			sl.ReportError(r.Duration, "Duration", "Duration", "duration", r.Duration.String())
		}
	}, Request{})
	return v
}

// BuildRequest normalizes source URLs, fills defaults, clamps the replicate
// count and validates the result. Validation failures are *Error values of
// KindValidation.
func BuildRequest(in Input, now time.Time) (Request, error) {
	variant := in.Variant
	if variant == "" {
		variant = VariantStandard
	}

	req := Request{
		Name:           strings.TrimSpace(in.Name),
		SourceImageURL: normalize.URL(strings.TrimSpace(in.SourceImageURL)),
		Prompt:         strings.TrimSpace(in.Prompt),
		NegativePrompt: strings.TrimSpace(in.NegativePrompt),
		Duration:       in.Duration.withDefaults(variant),
		Variant:        variant,
		ExtendPrompt:   in.ExtendPrompt,
		ReplicateCount: ClampReplicates(in.ReplicateCount),
	}
	if req.Name == "" {
		req.Name = id.Name(now)
	}
	if variant == VariantFirstLastFrame {
		req.EndImageURL = normalize.URL(strings.TrimSpace(in.EndImageURL))
	}
	if variant == VariantStandard && req.Prompt == "" {
		req.Prompt = DefaultPrompt
	}
	if req.NegativePrompt == "" {
		req.NegativePrompt = DefaultNegativePrompt
	}

	if err := validate.Struct(req); err != nil {
		return Request{}, validationError(describe(err, req))
	}
	return req, nil
}

// describe turns the first validator failure into a user-facing message.
func describe(err error, req Request) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	switch fe := verrs[0]; fe.Field() {
	case "SourceImageURL":
		return "Please provide image URL"
	case "EndImageURL":
		return "Please provide end image URL for first-last-frame generation"
	case "Prompt":
		return fmt.Sprintf("Please provide a prompt for the %s model", req.Variant)
	case "Variant":
		return fmt.Sprintf("unsupported model variant %q", req.Variant)
	case "Duration":
		return fmt.Sprintf("invalid duration %s for the %s model, choose one of %v %s",
			req.Duration, req.Variant, Choices(UnitFor(req.Variant)), UnitFor(req.Variant))
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}
