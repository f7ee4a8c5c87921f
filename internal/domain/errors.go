package domain

import "errors"

var (
	// ErrInvalidInput is returned for empty questions and missing or malformed analysis ids.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAnalysisNotFound is returned when no analysis is stored under the id.
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrAnalysisNotReady is returned when questions are asked before processing completed.
	ErrAnalysisNotReady = errors.New("analysis is not ready")
	// ErrAnalysisFailed wraps the terminal error of an analysis in the error state.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrNoContextAvailable is returned when neither retrieval nor the raw documents give any context.
	ErrNoContextAvailable = errors.New("no context available to answer the question")
	// ErrAlreadyProcessing is returned when processing for the same analysis is in flight.
	ErrAlreadyProcessing = errors.New("analysis processing already in progress")
	// ErrAlreadyProcessed is returned when processing is requested for a finished analysis.
	ErrAlreadyProcessed = errors.New("analysis already processed")
)
