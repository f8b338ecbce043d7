// Package insight writes the narrative summary of an exposure analysis. The
// rule-based generator always produces text; a language-model generator may
// replace it when its reply passes validation.
package insight

import (
	"context"
	"errors"

	"github.com/airexposure/airexposure/internal/analysis"
)

// Generator names.
const (
	SourceRules = "rules"
	SourceLLM   = "llm"
)

var (
	// ErrTooShort is returned for replies below the minimum length.
	ErrTooShort = errors.New("insight too short")

	// ErrOffTopic is returned for replies without any air-quality term.
	ErrOffTopic = errors.New("insight not about air quality")

	// ErrEmptyReply is returned when the model produced no text.
	ErrEmptyReply = errors.New("empty insight reply")
)

// Input is what an insight is written from.
type Input struct {
	Location string
	Days     int
	Summary  *analysis.Summary
}

// Result is the outcome of Service.Generate.
type Result struct {
	Status analysis.Status `json:"status"`
	Source string          `json:"source"`
	Text   string          `json:"text"`
}

// Generator produces narrative text from an analysis summary.
type Generator interface {
	Name() string
	// Available reports whether the generator can be dispatched to.
	Available(ctx context.Context) bool
	Generate(ctx context.Context, in Input) (string, error)
}

// FlagChecker reports whether a capability flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}
