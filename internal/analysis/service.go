// Package analysis runs the resume/job analysis lifecycle: indexing both
// documents, scoring the match and answering questions about it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-rag/internal/answer"
	"github.com/spigell/resume-rag/internal/domain"
	"github.com/spigell/resume-rag/internal/embedding"
	"github.com/spigell/resume-rag/internal/logger"
)

// Chunker splits a document into chunks.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder embeds chunk texts, one embedding per text.
type Embedder interface {
	EmbedChunks(ctx context.Context, texts []string) []embedding.Embedding
}

// Store keeps the indexed chunks per analysis and document type.
type Store interface {
	Put(analysisID string, docType domain.DocType, chunks []domain.Chunk)
	Delete(analysisID string)
}

// Retriever returns the chunks of an analysis most similar to a query.
type Retriever interface {
	Search(ctx context.Context, query, analysisID string, k int) ([]domain.SearchResult, error)
}

// Answerer answers a question from context passages.
type Answerer interface {
	Answer(ctx context.Context, question string, contexts []string) (answer.Answer, error)
}

// Scorer assesses a resume against a job description. It always returns a result.
type Scorer interface {
	Score(ctx context.Context, resume, job string) domain.MatchResult
}

// Deps aggregates the components used by the Service.
type Deps struct {
	Chunker   Chunker
	Embedder  Embedder
	Store     Store
	Retriever Retriever
	Answerer  Answerer
	Scorer    Scorer
	Logger    *zap.Logger
}

func (d Deps) validate() error {
	var missing []string
	if d.Chunker == nil {
		missing = append(missing, "chunker")
	}
	if d.Embedder == nil {
		missing = append(missing, "embedder")
	}
	if d.Store == nil {
		missing = append(missing, "store")
	}
	if d.Retriever == nil {
		missing = append(missing, "retriever")
	}
	if d.Answerer == nil {
		missing = append(missing, "answerer")
	}
	if d.Scorer == nil {
		missing = append(missing, "scorer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("analysis dependencies are not configured: %s", strings.Join(missing, ", "))
	}
	return nil
}

type record struct {
	analysis domain.Analysis
	history  []domain.ChatEntry
}

// Service owns the analyses and their chat history.
type Service struct {
	deps   Deps
	stages [][]Step
	topK   int
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	records  map[string]*record
	inFlight sync.Map
	wg       sync.WaitGroup
}

// New creates a Service. A non-positive topK lets the retriever pick its default.
func New(deps Deps, topK int) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Service{
		deps:    deps,
		stages:  pipeline(deps),
		topK:    topK,
		logger:  logger.WithFields(deps.Logger),
		now:     time.Now,
		records: make(map[string]*record),
	}, nil
}

// Steps lists the processing steps in execution order.
func (s *Service) Steps() []string {
	return Describe(s.stages)
}

// Create stores a new analysis in the uploaded state.
func (s *Service) Create(resume, job string) domain.Analysis {
	a := domain.Analysis{
		ID:         uuid.NewString(),
		Status:     domain.StatusUploaded,
		ResumeText: resume,
		JobText:    job,
		CreatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	s.records[a.ID] = &record{analysis: a}
	s.mu.Unlock()

	s.logger.Info("analysis created",
		zap.String(logger.FieldAnalysisID, a.ID),
		zap.Int("resume_length", len(resume)),
		zap.Int("job_length", len(job)),
	)
	return a
}

// Get returns a snapshot of the analysis.
func (s *Service) Get(id string) (domain.Analysis, error) {
	if err := validateID(id); err != nil {
		return domain.Analysis{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.Analysis{}, fmt.Errorf("%w: %s", domain.ErrAnalysisNotFound, id)
	}
	return snapshot(rec.analysis), nil
}

// Process indexes both documents and scores the match, blocking until done.
// A failed step moves the analysis to the error state and its error is returned.
func (s *Service) Process(ctx context.Context, id string) error {
	run, err := s.begin(id)
	if err != nil {
		return err
	}
	defer s.inFlight.Delete(id)

	return s.process(ctx, run)
}

// Start begins processing in the background and returns once the analysis is processing.
// The run is not cancelled with ctx; poll Get for the outcome.
func (s *Service) Start(ctx context.Context, id string) error {
	run, err := s.begin(id)
	if err != nil {
		return err
	}

	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Delete(id)

		_ = s.process(detached, run)
	}()
	return nil
}

// Wait blocks until every background run started with Start has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// begin claims the analysis for processing and moves it to the processing state.
func (s *Service) begin(id string) (*Run, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	if _, busy := s.inFlight.LoadOrStore(id, struct{}{}); busy {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyProcessing, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		s.inFlight.Delete(id)
		return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisNotFound, id)
	}

	switch rec.analysis.Status {
	case domain.StatusCompleted, domain.StatusError:
		s.inFlight.Delete(id)
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrAlreadyProcessed, id, rec.analysis.Status)
	}

	rec.analysis.Status = domain.StatusProcessing
	rec.analysis.LastError = ""
	return &Run{ID: id, Resume: rec.analysis.ResumeText, Job: rec.analysis.JobText}, nil
}

func (s *Service) process(ctx context.Context, run *Run) error {
	log := logger.WithAnalysis(s.logger, run.ID, "")
	started := s.now()
	log.Info("analysis processing started")

	reports, err := runStages(ctx, log, s.stages, run, s.now)

	s.mu.Lock()
	rec := s.records[run.ID]
	rec.analysis.Steps = reports
	if err != nil {
		rec.analysis.Status = domain.StatusError
		rec.analysis.LastError = err.Error()
	} else {
		rec.analysis.Status = domain.StatusCompleted
		rec.analysis.Result = run.Result
	}
	s.mu.Unlock()

	if err != nil {
		log.Error("analysis processing failed", zap.Duration("duration", s.now().Sub(started)), zap.Error(err))
		return fmt.Errorf("process analysis %s: %w", run.ID, err)
	}

	log.Info("analysis processing completed",
		zap.Duration("duration", s.now().Sub(started)),
		zap.Int("score", run.Result.Score),
		zap.String("source", string(run.Result.Source)),
	)
	return nil
}

// Ask answers a question about a completed analysis and records it in the history.
func (s *Service) Ask(ctx context.Context, id, question string) (domain.ChatEntry, error) {
	if err := validateID(id); err != nil {
		return domain.ChatEntry{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ChatEntry{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	a, err := s.Get(id)
	if err != nil {
		return domain.ChatEntry{}, err
	}
	switch a.Status {
	case domain.StatusCompleted:
	case domain.StatusError:
		return domain.ChatEntry{}, fmt.Errorf("%w: %s", domain.ErrAnalysisFailed, a.LastError)
	default:
		return domain.ChatEntry{}, fmt.Errorf("%w: %s is %s", domain.ErrAnalysisNotReady, id, a.Status)
	}

	results, err := s.deps.Retriever.Search(ctx, question, id, s.topK)
	if err != nil {
		return domain.ChatEntry{}, fmt.Errorf("retrieve context: %w", err)
	}

	contexts := make([]string, 0, len(results))
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Chunk.Text)
		sources = append(sources, domain.Source{DocType: r.Chunk.DocType, Text: r.Chunk.Text, Score: r.Score})
	}
	if len(contexts) == 0 {
		s.logger.Info("no chunks retrieved; answering from the raw documents", zap.String(logger.FieldAnalysisID, id))
		contexts = append(contexts, a.ResumeText, a.JobText)
	}

	ans, err := s.deps.Answerer.Answer(ctx, question, contexts)
	if err != nil {
		if errors.Is(err, domain.ErrNoContextAvailable) {
			return domain.ChatEntry{}, err
		}
		return domain.ChatEntry{}, fmt.Errorf("answer question: %w", err)
	}

	entry := domain.ChatEntry{
		Question:  question,
		Answer:    ans.Text,
		Sources:   sources,
		Generated: ans.Generated,
		Timestamp: s.now().UTC(),
	}

	s.mu.Lock()
	if rec, ok := s.records[id]; ok {
		rec.history = append(rec.history, entry)
	}
	s.mu.Unlock()

	return entry, nil
}

// History returns the answered questions of an analysis in the order they were asked.
func (s *Service) History(id string) ([]domain.ChatEntry, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisNotFound, id)
	}
	history := make([]domain.ChatEntry, len(rec.history))
	copy(history, rec.history)
	return history, nil
}

// Delete removes the analysis, its history and its indexed chunks.
func (s *Service) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if _, busy := s.inFlight.LoadOrStore(id, struct{}{}); busy {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessing, id)
	}
	defer s.inFlight.Delete(id)

	s.mu.Lock()
	_, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAnalysisNotFound, id)
	}

	s.deps.Store.Delete(id)
	s.logger.Info("analysis deleted", zap.String(logger.FieldAnalysisID, id))
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: analysis id is empty", domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed analysis id %q", domain.ErrInvalidInput, id)
	}
	return nil
}

func snapshot(a domain.Analysis) domain.Analysis {
	if a.Steps != nil {
		steps := make([]domain.StepReport, len(a.Steps))
		copy(steps, a.Steps)
		a.Steps = steps
	}
	if a.Result != nil {
		result := *a.Result
		a.Result = &result
	}
	return a
}
