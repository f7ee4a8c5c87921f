package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/spigell/resume-rag/internal/analysis"
	"github.com/spigell/resume-rag/internal/domain"
)

const (
	PromptAsk         = "Ask a question"
	PromptShowMatch   = "Show match result"
	PromptShowHistory = "Show chat history"
	PromptExit        = "Exit"
)

var errExit = errors.New("exit requested")

var chatMenu = promptui.Select{
	Label: "What next?",
	Items: []string{PromptAsk, PromptShowMatch, PromptShowHistory, PromptExit},
}

var questionPrompt = promptui.Prompt{
	Label: "Question",
	Validate: func(input string) error {
		if strings.TrimSpace(input) == "" {
			return errors.New("question must not be empty")
		}
		return nil
	},
}

// chat loops over the action menu until the user exits.
func chat(ctx context.Context, svc *analysis.Service, id string, out io.Writer, logger *zap.Logger) error {
	for {
		_, action, err := chatMenu.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		err = handleChatAction(ctx, action, svc, id, out, logger, questionPrompt.Run)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func handleChatAction(ctx context.Context, action string, svc *analysis.Service, id string, out io.Writer, logger *zap.Logger, readQuestion func() (string, error)) error {
	switch action {
	case PromptAsk:
		question, err := readQuestion()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
				return nil
			}
			return err
		}
		return ask(ctx, svc, id, question, out, logger)
	case PromptShowMatch:
		a, err := svc.Get(id)
		if err != nil {
			return err
		}
		return printJSON(out, a.Result)
	case PromptShowHistory:
		history, err := svc.History(id)
		if err != nil {
			return err
		}
		return printJSON(out, history)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// ask prints the answer to question. A question without any usable context is reported, not answered.
const noAnswer = "no answer available"

// unanswered is printed in place of a history entry when nothing could answer a question.
type unanswered struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Error    string `json:"error"`
}

func ask(ctx context.Context, svc *analysis.Service, id, question string, out io.Writer, logger *zap.Logger) error {
	entry, err := svc.Ask(ctx, id, question)
	switch {
	case errors.Is(err, domain.ErrNoContextAvailable):
		logger.Warn("no answer available", zap.String("question", question), zap.Error(err))
		return printJSON(out, unanswered{Question: question, Answer: noAnswer, Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		logger.Warn("question skipped", zap.Error(err))
		return nil
	case err != nil:
		return err
	}
	return printJSON(out, entry)
}
