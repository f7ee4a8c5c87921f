package matching

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/resume-rag/internal/domain"
)

type technology struct {
	name    string
	pattern *regexp.Regexp
}

func tech(name string, caseSensitive bool, aliases ...string) technology {
	if len(aliases) == 0 {
		aliases = []string{name}
	}
	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}
	flags := "(?i)"
	if caseSensitive {
		flags = ""
	}
	expr := flags + `(?:^|[^\p{L}\p{N}+#])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}+#])`
	return technology{name: name, pattern: regexp.MustCompile(expr)}
}

// Names that are also ordinary words only count when written as a proper name.
var technologies = []technology{
	tech("Python", false),
	tech("Java", false),
	tech("JavaScript", false),
	tech("TypeScript", false),
	tech("Go", true, "Go"),
	tech("Go", false, "golang"),
	tech("Rust", true),
	tech("C++", false),
	tech("C#", false),
	tech("Ruby", true),
	tech("PHP", false),
	tech("Kotlin", false),
	tech("Swift", true),
	tech("Scala", false),
	tech("SQL", false),
	tech("PostgreSQL", false, "PostgreSQL", "Postgres"),
	tech("MySQL", false),
	tech("MongoDB", false),
	tech("Redis", false),
	tech("Elasticsearch", false),
	tech("Kafka", false),
	tech("RabbitMQ", false),
	tech("Spark", true),
	tech("Hadoop", false),
	tech("Airflow", false),
	tech("Docker", false),
	tech("Kubernetes", false, "Kubernetes", "k8s"),
	tech("Terraform", false),
	tech("Ansible", false),
	tech("Helm", true),
	tech("AWS", false),
	tech("GCP", false, "GCP", "Google Cloud"),
	tech("Azure", false),
	tech("Linux", false),
	tech("Git", false),
	tech("CI/CD", false),
	tech("Jenkins", false),
	tech("GitHub Actions", false),
	tech("GraphQL", false),
	tech("REST", true),
	tech("gRPC", false),
	tech("React", true),
	tech("Angular", false),
	tech("Vue", false, "Vue.js", "Vue"),
	tech("Node.js", false, "Node.js", "NodeJS"),
	tech("Django", false),
	tech("Flask", false),
	tech("Spring", true),
	tech("FastAPI", false),
	tech("TensorFlow", false),
	tech("PyTorch", false),
	tech("Pandas", false),
	tech("Machine Learning", false),
	tech("Microservices", false),
	tech("Prometheus", false),
	tech("Grafana", false),
	tech("Tableau", false),
}

var capitalizedTerm = regexp.MustCompile(`\b[A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)+\b`)

var genericWords = toSet(
	"a", "an", "the", "and", "or", "of", "in", "on", "for", "with", "to", "at",
	"we", "our", "you", "your", "i", "my", "is", "are", "will", "must", "should",
	"requires", "required", "requirements", "require", "preferred", "nice", "plus",
	"experience", "experienced", "years", "year", "senior", "junior", "lead", "team",
	"work", "working", "strong", "good", "knowledge", "skills", "skill", "ability",
	"looking", "responsibilities", "responsible", "job", "role", "position",
	"description", "company", "about", "candidate", "resume", "summary", "education",
	"university", "college", "bachelor", "master", "degree", "school", "inc", "llc",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december", "present", "remote", "contact",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

type skillHit struct {
	name string
	at   int
}

// ExtractSkills returns the skill-like terms found in text in order of first appearance.
func ExtractSkills(text string) []string {
	var hits []skillHit
	for _, t := range technologies {
		if loc := t.pattern.FindStringIndex(text); loc != nil {
			hits = append(hits, skillHit{name: t.name, at: loc[0]})
		}
	}

	for _, loc := range capitalizedTerm.FindAllStringIndex(text, -1) {
		hits = append(hits, termRuns(text[loc[0]:loc[1]], loc[0])...)
	}

	slices.SortStableFunc(hits, func(a, b skillHit) int { return cmp.Compare(a.at, b.at) })

	seen := make(map[string]struct{}, len(hits))
	skills := make([]string, 0, len(hits))
	for _, h := range hits {
		key := strings.ToLower(h.name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, h.name)
	}
	return skills
}

// termRuns cuts a capitalized term at generic words and technology names and
// returns the runs of two or more remaining words. offset is the term position in the text.
func termRuns(term string, offset int) []skillHit {
	spans := technologySpans(term)
	words := termWord.FindAllStringIndex(term, -1)

	var runs []skillHit
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= 2 {
			runs = append(runs, skillHit{name: term[words[start][0]:words[end-1][1]], at: offset + words[start][0]})
		}
		start = -1
	}

	for i, w := range words {
		if isGenericWord(term[w[0]:w[1]]) || overlaps(w, spans) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(words))

	return runs
}

var termWord = regexp.MustCompile(`[A-Za-z]+`)

// technologySpans returns every technology match in term. Matches may share a separator.
func technologySpans(term string) [][]int {
	var spans [][]int
	for _, t := range technologies {
		for from := 0; from < len(term); {
			loc := t.pattern.FindStringIndex(term[from:])
			if loc == nil {
				break
			}
			spans = append(spans, []int{from + loc[0], from + loc[1]})

			next := from + loc[1]
			if r, size := utf8.DecodeLastRuneInString(term[:next]); !isNameRune(r) && next-size > from+loc[0] {
				next -= size
			}
			from = next
		}
	}
	return spans
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#'
}

func overlaps(word []int, spans [][]int) bool {
	for _, s := range spans {
		if word[0] < s[1] && s[0] < word[1] {
			return true
		}
	}
	return false
}

func isGenericWord(word string) bool {
	_, ok := genericWords[strings.ToLower(word)]
	return ok
}

// Heuristic scores the candidate by the share of role skills also present in the resume.
func Heuristic(resume, job string) domain.MatchResult {
	required := ExtractSkills(job)
	candidate := ExtractSkills(resume)

	strengths := []string{}
	gaps := []string{}
	for _, skill := range required {
		if covered(skill, candidate) {
			strengths = append(strengths, skill)
		} else {
			gaps = append(gaps, skill)
		}
	}

	score := 0
	if len(required) > 0 {
		score = int(math.Round(100 * float64(len(strengths)) / float64(len(required))))
	}

	var extra []string
	for _, skill := range candidate {
		if !covered(skill, required) {
			extra = append(extra, skill)
		}
	}

	insights := []string{}
	switch {
	case len(required) == 0:
		insights = append(insights, "No recognizable skills were found in the job description.")
	default:
		insights = append(insights, fmt.Sprintf("The resume covers %d of %d skills named by the role.", len(strengths), len(required)))
	}
	if len(candidate) == 0 {
		insights = append(insights, "No recognizable skills were found in the resume.")
	}
	if len(extra) > 0 {
		insights = append(insights, "Additional skills not requested by the role: "+strings.Join(extra, ", ")+".")
	}

	return domain.MatchResult{
		Score:     score,
		Strengths: strengths,
		Gaps:      gaps,
		Insights:  insights,
		Summary:   fmt.Sprintf("Estimated from skill overlap: %d%% (%s). The AI assessment was not available.", score, band(score)),
		Source:    domain.MatchFromHeuristic,
	}
}

// covered reports whether skill and any of others contain one another, ignoring case.
func covered(skill string, others []string) bool {
	s := strings.ToLower(skill)
	for _, o := range others {
		o = strings.ToLower(o)
		if strings.Contains(o, s) || strings.Contains(s, o) {
			return true
		}
	}
	return false
}

func band(score int) string {
	switch {
	case score >= 75:
		return "strong match"
	case score >= 50:
		return "moderate match"
	case score > 0:
		return "weak match"
	default:
		return "no overlap"
	}
}
