package matching

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Outcome tags a parse result.
type Outcome int

const (
	Parsed Outcome = iota
	Unparseable
)

func (o Outcome) String() string {
	if o == Parsed {
		return "parsed"
	}
	return "unparseable"
}

// Narrative is the typed form of a provider assessment.
type Narrative struct {
	Score     int      `mapstructure:"score"`
	Strengths []string `mapstructure:"strengths"`
	Gaps      []string `mapstructure:"gaps"`
	Insights  []string `mapstructure:"insights"`
	Summary   string   `mapstructure:"summary"`
}

// ParseResult is Parsed with a Narrative, or Unparseable with a Reason.
type ParseResult struct {
	Outcome   Outcome
	Narrative Narrative
	// Sections holds the raw text found under every marker.
	Sections map[string]string
	Reason   string
}

const (
	sectionScore     = "score"
	sectionStrengths = "strengths"
	sectionGaps      = "gaps"
	sectionInsights  = "insights"
	sectionSummary   = "summary"
)

var markers = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{sectionScore, regexp.MustCompile(`(?im)^[#*\s]*(?:match\s+)?score[*\s]*:?[*]*`)},
	{sectionStrengths, regexp.MustCompile(`(?im)^[#*\s]*strengths[*\s]*:?[*]*`)},
	{sectionGaps, regexp.MustCompile(`(?im)^[#*\s]*(?:gaps|weaknesses)[*\s]*:?[*]*`)},
	{sectionInsights, regexp.MustCompile(`(?im)^[#*\s]*(?:key\s+)?insights[*\s]*:?[*]*`)},
	{sectionSummary, regexp.MustCompile(`(?im)^[#*\s]*summary[*\s]*:?[*]*`)},
}

var (
	percentPattern = regexp.MustCompile(`(\d{1,3})(?:\.\d+)?\s*(?:%|/\s*100)`)
	numberPattern  = regexp.MustCompile(`\d{1,3}`)
	bulletPrefix   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	codeFence      = regexp.MustCompile("(?m)^\\s*```[A-Za-z]*\\s*$")
)

// Parse reads a provider reply written in the prompt's narrative format.
// A missing section is empty; a reply without a score or without any section is Unparseable.
func Parse(raw string) ParseResult {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
	if raw == "" {
		return ParseResult{Outcome: Unparseable, Reason: "empty response"}
	}

	sections := split(raw)

	input := maps.Clone(sections)
	if strings.TrimSpace(input[sectionScore]) == "" {
		input[sectionScore] = percentPattern.FindString(raw)
	}
	if input[sectionScore] == "" {
		return ParseResult{Outcome: Unparseable, Sections: sections, Reason: "no match score found"}
	}

	if sections[sectionStrengths] == "" && sections[sectionGaps] == "" &&
		sections[sectionInsights] == "" && sections[sectionSummary] == "" {
		return ParseResult{Outcome: Unparseable, Sections: sections, Reason: "no assessment sections found"}
	}

	n, err := decodeNarrative(input)
	if err != nil {
		return ParseResult{Outcome: Unparseable, Sections: sections, Reason: fmt.Sprintf("decode narrative: %v", err)}
	}

	return ParseResult{Outcome: Parsed, Narrative: n, Sections: sections}
}

// decodeNarrative decodes the raw section texts into a Narrative.
func decodeNarrative(sections map[string]string) (Narrative, error) {
	var n Narrative

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncType(sectionHook),
		Result:     &n,
	})
	if err != nil {
		return Narrative{}, err
	}
	if err := decoder.Decode(sections); err != nil {
		return Narrative{}, err
	}

	n.Strengths = orEmpty(n.Strengths)
	n.Gaps = orEmpty(n.Gaps)
	n.Insights = orEmpty(n.Insights)
	return n, nil
}

// sectionHook turns section text into the type of the target field:
// bullet items for lists, a clamped percentage for ints and trimmed text otherwise.
func sectionHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	text := reflect.ValueOf(data).String()

	switch {
	case to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.String:
		return items(text), nil
	case to.Kind() == reflect.Int:
		return scoreFrom(text)
	case to.Kind() == reflect.String:
		return strings.TrimSpace(text), nil
	default:
		return data, nil
	}
}

// split slices raw between the section markers found in it.
func split(raw string) map[string]string {
	type found struct {
		name       string
		start, end int
	}

	var hits []found
	for _, m := range markers {
		if loc := m.pattern.FindStringIndex(raw); loc != nil {
			hits = append(hits, found{name: m.name, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	sections := make(map[string]string, len(markers))
	for _, m := range markers {
		sections[m.name] = ""
	}
	for i, h := range hits {
		stop := len(raw)
		if i+1 < len(hits) {
			stop = hits[i+1].start
		}
		if h.end <= stop {
			sections[h.name] = strings.TrimSpace(raw[h.end:stop])
		}
	}
	return sections
}

func scoreFrom(text string) (int, error) {
	value := numberPattern.FindString(text)
	if m := percentPattern.FindStringSubmatch(text); m != nil {
		value = m[1]
	}
	if value == "" {
		return 0, fmt.Errorf("no number in score %q", strings.TrimSpace(text))
	}

	score, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", value, err)
	}
	return clamp(score), nil
}

func items(section string) []string {
	out := []string{}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*")
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func clamp(score int) int {
	return max(0, min(100, score))
}
