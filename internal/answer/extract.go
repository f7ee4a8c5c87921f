package answer

import (
	"regexp"
	"slices"
	"strings"

	"github.com/spigell/resume-rag/internal/utils"
)

// NoInformation is returned by the extractive fallback when no known section is found.
const NoInformation = "I could not find information about that in the provided documents."

const (
	snippetLength = 300
	maxSnippets   = 2
)

type section struct {
	name     string
	header   *regexp.Regexp
	keywords []string
}

var sections = []section{
	{
		name:     "skills",
		header:   regexp.MustCompile(`(?i)\b(?:technical skills|core competencies|skills|technologies|tech stack)\b`),
		keywords: []string{"skill", "technolog", "stack", "tool", "language", "framework", "know"},
	},
	{
		name:     "experience",
		header:   regexp.MustCompile(`(?i)\b(?:work experience|professional experience|employment history|experience)\b`),
		keywords: []string{"experience", "work", "job", "role", "year", "employ", "company", "project", "position"},
	},
	{
		name:     "education",
		header:   regexp.MustCompile(`(?i)\b(?:education|academic background|qualifications|degree)\b`),
		keywords: []string{"educat", "degree", "stud", "universit", "college", "school", "certif", "diploma"},
	},
}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Extract answers question by quoting the resume sections it is about.
// Sections named by the question come first, then any other section found in text.
func Extract(question, text string) string {
	var snippets []string
	for _, sec := range ordered(question) {
		loc := sec.header.FindStringIndex(text)
		if loc == nil {
			continue
		}

		snippet := text[loc[0]:]
		if end := blankLine.FindStringIndex(snippet); end != nil {
			snippet = snippet[:end[0]]
		}
		snippet = utils.TruncateForLog(snippet, snippetLength)
		if snippet == "" || slices.Contains(snippets, snippet) {
			continue
		}

		snippets = append(snippets, snippet)
		if len(snippets) == maxSnippets {
			break
		}
	}

	if len(snippets) == 0 {
		return NoInformation
	}

	return "Here is what the documents say:\n\n" + strings.Join(snippets, "\n\n")
}

func ordered(question string) []section {
	q := strings.ToLower(question)

	var preferred, rest []section
	for _, sec := range sections {
		if slices.ContainsFunc(sec.keywords, func(k string) bool { return strings.Contains(q, k) }) {
			preferred = append(preferred, sec)
		} else {
			rest = append(rest, sec)
		}
	}
	return append(preferred, rest...)
}
