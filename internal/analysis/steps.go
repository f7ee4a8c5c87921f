package analysis

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-rag/internal/domain"
)

// Step is a single processing step applied to an analysis.
type Step interface {
	Name() string
	Apply(ctx context.Context, run *Run) (map[string]string, error)
}

// Run carries the inputs and outputs of one processing run.
type Run struct {
	ID     string
	Resume string
	Job    string
	Result *domain.MatchResult
}

// Text returns the document of the given type.
func (r *Run) Text(docType domain.DocType) string {
	if docType == domain.DocJob {
		return r.Job
	}
	return r.Resume
}

type indexStep struct {
	docType  domain.DocType
	chunker  Chunker
	embedder Embedder
	store    Store
}

func newIndexStep(docType domain.DocType, deps Deps) Step {
	return &indexStep{docType: docType, chunker: deps.Chunker, embedder: deps.Embedder, store: deps.Store}
}

func (s *indexStep) Name() string { return "index_" + string(s.docType) }

func (s *indexStep) Apply(ctx context.Context, run *Run) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := s.chunker.Chunk(run.Text(s.docType))
	embeddings := s.embedder.EmbedChunks(ctx, texts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(texts))
	}

	chunks := make([]domain.Chunk, len(texts))
	fallbacks := 0
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			Index:     i,
			DocType:   s.docType,
			Text:      text,
			Embedding: embeddings[i].Vector,
			Fallback:  embeddings[i].Fallback,
		}
		if embeddings[i].Fallback {
			fallbacks++
		}
	}
	s.store.Put(run.ID, s.docType, chunks)

	details := map[string]string{
		"chunks":              strconv.Itoa(len(chunks)),
		"fallback_embeddings": strconv.Itoa(fallbacks),
	}
	if len(chunks) > 0 {
		details["dimension"] = strconv.Itoa(len(chunks[0].Embedding))
	}
	return details, nil
}

type scoreStep struct {
	scorer Scorer
}

func newScoreStep(deps Deps) Step {
	return &scoreStep{scorer: deps.Scorer}
}

func (s *scoreStep) Name() string { return "score_match" }

func (s *scoreStep) Apply(ctx context.Context, run *Run) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := s.scorer.Score(ctx, run.Resume, run.Job)
	run.Result = &result

	details := map[string]string{
		"score":  strconv.Itoa(result.Score),
		"source": string(result.Source),
	}
	if result.Model != "" {
		details["model"] = result.Model
	}
	return details, nil
}

// pipeline returns the processing stages. Steps of one stage run concurrently.
func pipeline(deps Deps) [][]Step {
	index := make([]Step, 0, len(domain.DocTypes))
	for _, docType := range domain.DocTypes {
		index = append(index, newIndexStep(docType, deps))
	}
	return [][]Step{index, {newScoreStep(deps)}}
}

// runStages executes the stages in order and stops at the first stage with a failed step.
// Reports of every executed step are returned in pipeline order.
func runStages(ctx context.Context, log *zap.Logger, stages [][]Step, run *Run, now func() time.Time) ([]domain.StepReport, error) {
	var reports []domain.StepReport

	for _, stage := range stages {
		stageReports := make([]domain.StepReport, len(stage))

		g, gctx := errgroup.WithContext(ctx)
		for i, step := range stage {
			g.Go(func() error {
				started := now()
				details, err := step.Apply(gctx, run)
				report := domain.StepReport{Name: step.Name(), Duration: now().Sub(started), Details: details}

				fields := []zap.Field{zap.String("name", report.Name), zap.Duration("duration", report.Duration)}
				for _, k := range slices.Sorted(maps.Keys(details)) {
					fields = append(fields, zap.String(k, details[k]))
				}

				if err != nil {
					report.Error = err.Error()
					stageReports[i] = report
					log.Warn("analysis step failed", append(fields, zap.Error(err))...)
					return fmt.Errorf("%s: %w", step.Name(), err)
				}

				stageReports[i] = report
				log.Info("analysis step", fields...)
				return nil
			})
		}

		err := g.Wait()
		reports = append(reports, stageReports...)
		if err != nil {
			return reports, err
		}
	}

	return reports, nil
}

// Describe lists the step names of a pipeline in execution order.
func Describe(stages [][]Step) []string {
	var names []string
	for _, stage := range stages {
		for _, step := range stage {
			names = append(names, step.Name())
		}
	}
	return names
}
