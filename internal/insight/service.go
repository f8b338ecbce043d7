package insight

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
)

// Service writes insights, preferring the advanced generator when it is
// available and falling back to the rules.
type Service struct {
	advanced Generator
	rules    *Rules
	logger   zerolog.Logger
}

// NewService creates an insight service. advanced may be nil.
func NewService(advanced Generator, logger zerolog.Logger) *Service {
	return &Service{
		advanced: advanced,
		rules:    NewRules(),
		logger:   logger.With().Str("component", "insight").Logger(),
	}
}

// Generate returns the insight for in. Without a summary the rule text is
// returned with StatusEmpty; a failing advanced generator yields the rule
// text with StatusDegraded.
func (s *Service) Generate(ctx context.Context, in Input) Result {
	if in.Summary == nil {
		return Result{Status: analysis.StatusEmpty, Source: SourceRules, Text: s.rules.Text(in)}
	}

	status := analysis.StatusSuccess
	if s.advanced != nil && s.advanced.Available(ctx) {
		text, err := s.advanced.Generate(ctx, in)
		if err == nil {
			return Result{Status: analysis.StatusSuccess, Source: s.advanced.Name(), Text: text}
		}
		s.logger.Warn().Err(err).
			Str("generator", s.advanced.Name()).
			Msg("advanced insight rejected, using rules")
		status = analysis.StatusDegraded
	}

	return Result{Status: status, Source: SourceRules, Text: s.rules.Text(in)}
}
