package domain

import "time"

// DocType identifies which of the two analysis documents a chunk came from.
type DocType string

const (
	DocResume DocType = "resume"
	DocJob    DocType = "job"
)

// DocTypes lists the document types in retrieval order.
var DocTypes = []DocType{DocResume, DocJob}

// Vector is an embedding. Its length is fixed per embedding source.
type Vector []float64

// Chunk is a bounded span of a document with its embedding.
type Chunk struct {
	Index     int
	DocType   DocType
	Text      string
	Embedding Vector
	// Fallback is set when the embedding was generated locally instead of by the provider.
	Fallback bool
}

// SearchResult is a retrieved chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Source is the user facing view of a retrieved chunk.
type Source struct {
	DocType DocType `json:"doc_type"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// MatchSource tells how a MatchResult was produced.
type MatchSource string

const (
	MatchFromProvider  MatchSource = "provider"
	MatchFromHeuristic MatchSource = "heuristic"
)

// MatchResult is the compatibility assessment between a resume and a job description.
type MatchResult struct {
	Score     int               `json:"score"`
	Strengths []string          `json:"strengths"`
	Gaps      []string          `json:"gaps"`
	Insights  []string          `json:"insights"`
	Summary   string            `json:"summary"`
	Narrative map[string]string `json:"narrative,omitempty"`
	Source    MatchSource       `json:"source"`
	Model     string            `json:"model,omitempty"`
}

// ChatEntry is one answered question about an analysis.
type ChatEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Generated bool      `json:"generated"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// StepReport describes the outcome of one processing step.
type StepReport struct {
	Name     string            `json:"name"`
	Duration time.Duration     `json:"duration"`
	Error    string            `json:"error,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// Analysis pairs a resume with a job description and holds the computed results.
type Analysis struct {
	ID         string       `json:"id"`
	Status     Status       `json:"status"`
	ResumeText string       `json:"-"`
	JobText    string       `json:"-"`
	Result     *MatchResult `json:"result,omitempty"`
	Steps      []StepReport `json:"steps,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	LastError  string       `json:"last_error,omitempty"`
}
