package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-rag/internal/domain"
	"github.com/spigell/resume-rag/internal/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a resume against a job description and answer questions about them",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("resume", "", "path to a plain text resume")
	analyzeCmd.Flags().String("job", "", "path to a plain text job description")
	analyzeCmd.Flags().StringArrayP("question", "q", nil, "question to answer after processing, may be repeated")
	analyzeCmd.Flags().BoolP("interactive", "i", false, "ask follow-up questions interactively")

	analyzeCmd.MarkFlagRequired("resume")
	analyzeCmd.MarkFlagRequired("job")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	logger.Info("starting the resume-rag", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	resumePath, _ := cmd.Flags().GetString("resume")
	jobPath, _ := cmd.Flags().GetString("job")

	resume, err := readDocument(resumePath)
	if err != nil {
		return err
	}
	job, err := readDocument(jobPath)
	if err != nil {
		return err
	}

	backend, err := newBackend(ctx, config.AI, logger)
	if err != nil {
		return fmt.Errorf("creating ai backend: %w", err)
	}

	svc, err := newService(config, backend, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	created := svc.Create(resume, job)
	processErr := svc.Process(ctx, created.ID)

	result, err := svc.Get(created.ID)
	if err != nil {
		return err
	}
	if err := printJSON(out, result); err != nil {
		return err
	}
	if processErr != nil {
		return processErr
	}

	questions, _ := cmd.Flags().GetStringArray("question")
	for _, question := range questions {
		if err := ask(ctx, svc, created.ID, question, out, logger); err != nil {
			return err
		}
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		return chat(ctx, svc, created.ID, out, logger)
	}
	return nil
}

func readDocument(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: document path is empty", domain.ErrInvalidInput)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document %q: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}

// redacted returns a copy of config safe to log.
func redacted(config *Config) Config {
	c := *config
	if c.AI != nil && c.AI.Gemini != nil && c.AI.Gemini.APIKey != "" {
		ai := *c.AI
		gemini := *ai.Gemini
		gemini.APIKey = "***"
		ai.Gemini = &gemini
		c.AI = &ai
	}
	return c
}
