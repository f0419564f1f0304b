package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hooolee/novel-splitter/ai"
	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models an OpenAI-compatible endpoint offers",
	Long:  "List the models an OpenAI-compatible endpoint offers",
	RunE:  runModels,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Stream an LLM analysis of a chapter file to stdout",
	Long:  "Stream an LLM analysis of a chapter file to stdout",
	RunE:  runAnalyze,
}

type aiArgs struct {
	ApiBase string
	ApiKey  string
	Model   string
}

type analyzeArgs struct {
	Input      string `validate:"required"`
	PromptFile string
	Auto       bool
	Json       bool
}

var (
	endpointArgs aiArgs
	anArgs       analyzeArgs
)

func addEndpointFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&endpointArgs.ApiBase, "api-base", "b", "", "api base url, e.g. https://api.openai.com/v1")
	cmd.Flags().StringVarP(&endpointArgs.ApiKey, "api-key", "k", os.Getenv("OPENAI_API_KEY"), "api key")
}

func init() {
	addEndpointFlags(modelsCmd)

	addEndpointFlags(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&endpointArgs.Model, "model", "m", "", "model id")
	analyzeCmd.Flags().StringVarP(&anArgs.Input, "input", "i", "", "chapter file to analyse")
	analyzeCmd.Flags().StringVarP(&anArgs.PromptFile, "prompt-file", "f", "", "system prompt file, defaults to the built-in prompt")
	analyzeCmd.Flags().BoolVar(&anArgs.Auto, "auto", false, "use the structured auto-analysis prompt")
	analyzeCmd.Flags().BoolVar(&anArgs.Json, "json", false, "ask the endpoint for a json object response")

	RootCmd.AddCommand(modelsCmd)
	RootCmd.AddCommand(analyzeCmd)
}

func newAIClient() *ai.Client {
	return ai.NewClient(ai.Options{
		Temperature: appConfig.AI.Temperature,
		Logger:      slog.Default(),
	})
}

func runModels(cmd *cobra.Command, args []string) error {
	if endpointArgs.ApiBase == "" {
		return fmt.Errorf("api base is required")
	}
	ids, err := newAIClient().FetchModels(cmd.Context(), model.AiConfig{
		ApiBase: endpointArgs.ApiBase,
		ApiKey:  endpointArgs.ApiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch models: %w", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if endpointArgs.ApiBase == "" || endpointArgs.Model == "" {
		return fmt.Errorf("api base and model are required")
	}
	if anArgs.Input == "" {
		return fmt.Errorf("input file is required")
	}
	content, err := os.ReadFile(anArgs.Input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	prompt := ""
	if anArgs.Auto {
		prompt = ai.AutoAnalysisPrompt
	}
	if anArgs.PromptFile != "" {
		b, err := os.ReadFile(anArgs.PromptFile)
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = string(b)
	}

	// Chunks go to stdout as they arrive, status lines to the log.
	status := events.LogEmitter{Logger: slog.Default()}
	emitter := events.EmitterFunc(func(name string, payload any) {
		if chunk, ok := payload.(model.ChunkEvent); ok {
			fmt.Print(chunk.Chunk)
			return
		}
		status.Emit(name, payload)
	})

	err = newAIClient().Analyze(cmd.Context(), ai.AnalysisRequest{
		Config: model.AiConfig{
			ApiBase: endpointArgs.ApiBase,
			ApiKey:  endpointArgs.ApiKey,
			Model:   endpointArgs.Model,
		},
		Prompt:       prompt,
		Content:      string(content),
		ResponseJSON: anArgs.Json,
	}, emitter)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to analyse: %w", err)
	}
	return nil
}
