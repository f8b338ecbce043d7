package insight

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/airexposure/airexposure/internal/featureflags"
)

// minInsightLength is the shortest accepted model reply, in characters.
const minInsightLength = 80

const systemPrompt = "You are an environmental health analyst. Write a concise plain-text " +
	"paragraph interpreting air-quality statistics for residents. Do not include tables, " +
	"figures, markdown or lists of raw numbers."

var domainTerms = []string{
	"air quality", "pollution", "pollutant", "no2", "nitrogen dioxide",
	"pm2.5", "pm 2.5", "particulate", "aqi", "emission", "exposure", "smog",
}

var (
	captionPattern = regexp.MustCompile(`(?i)^\s*(figure|fig\.|table|chart)\s*\d*\s*[:.\-]`)
	tableRule      = regexp.MustCompile(`^\s*\|?\s*:?-{3,}`)
	numberToken    = regexp.MustCompile(`^[-+]?[\d.,]+%?$`)
)

// Completer sends a prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLM writes the insight with a chat model and rejects replies that do not
// read as an air-quality narrative.
type LLM struct {
	completer Completer
	flags     FlagChecker
}

// NewLLM creates the model-backed generator. completer nil makes it
// unavailable; flags nil skips the capability check.
func NewLLM(completer Completer, flags FlagChecker) *LLM {
	return &LLM{completer: completer, flags: flags}
}

// Name implements Generator.
func (*LLM) Name() string { return SourceLLM }

// Available implements Generator.
func (l *LLM) Available(ctx context.Context) bool {
	if l == nil || l.completer == nil {
		return false
	}
	if l.flags == nil {
		return true
	}
	return l.flags.IsEnabled(ctx, featureflags.FlagEnableAIInsights)
}

// Generate implements Generator.
func (l *LLM) Generate(ctx context.Context, in Input) (string, error) {
	reply, err := l.completer.Complete(ctx, systemPrompt, prompt(in))
	if err != nil {
		return "", fmt.Errorf("completing insight: %w", err)
	}
	text := Clean(reply)
	if err := Validate(text); err != nil {
		return "", err
	}
	return text, nil
}

func prompt(in Input) string {
	s := in.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Region: %s\nDays analysed: %d\n", in.Location, in.Days)
	fmt.Fprintf(&b, "Average NO2: %.1f µg/m³ (max %.1f, WHO guideline 40)\n", s.AvgNO2, s.MaxNO2)
	fmt.Fprintf(&b, "Average PM2.5: %.1f µg/m³ (max %.1f, WHO guideline 25)\n", s.AvgPM25, s.MaxPM25)
	fmt.Fprintf(&b, "Days above WHO NO2 guideline: %d\n", s.DaysExceedingWHONO2)
	fmt.Fprintf(&b, "Days above WHO PM2.5 guideline: %d\n", s.DaysExceedingWHOPM)
	if explanation := ExplainTrends(s.Trend); explanation != "" {
		fmt.Fprintf(&b, "Trends: %s\n", explanation)
	}
	b.WriteString("Explain what these levels mean for residents' health and what likely drives them.")
	return b.String()
}

// Clean strips markdown tables, figure or table captions and rows of bare
// numbers from a model reply.
func Clean(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "|") || strings.Count(trimmed, "|") >= 2:
			continue
		case tableRule.MatchString(trimmed):
			continue
		case captionPattern.MatchString(trimmed):
			continue
		case numericRow(trimmed):
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// numericRow reports whether most tokens of a line are numbers.
func numericRow(line string) bool {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ';'
	})
	numbers := 0
	for _, f := range fields {
		if numberToken.MatchString(f) {
			numbers++
		}
	}
	return numbers >= 3 && numbers*2 > len(fields)
}

// Validate accepts text of at least minInsightLength characters that
// mentions an air-quality term.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyReply
	}
	if utf8.RuneCountInString(text) < minInsightLength {
		return ErrTooShort
	}
	lower := strings.ToLower(text)
	for _, term := range domainTerms {
		if strings.Contains(lower, term) {
			return nil
		}
	}
	return ErrOffTopic
}
