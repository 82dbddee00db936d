// Package ai answers questions about a driver report with a local Ollama
// model.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/IshaanNene/driverscout/internal/config"
)

// SuggestedModels are offered by the CLI. Any model name is accepted.
var SuggestedModels = []string{"llama3", "mistral", "gemma", "phi3"}

const noResponse = "No response from Ollama"

// Asker answers a question against a report. Implementations never fail:
// upstream problems are described in the returned text.
type Asker interface {
	Ask(ctx context.Context, report, question string) string
}

// LLMClient talks to the Ollama generate endpoint.
type LLMClient struct {
	http   *resty.Client
	model  string
	logger *slog.Logger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// NewLLMClient creates a client for the configured Ollama server.
func NewLLMClient(cfg config.AIConfig, logger *slog.Logger) *LLMClient {
	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(cfg.Endpoint, "/"))
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	httpClient.SetHeader("Content-Type", "application/json")

	return &LLMClient{
		http:   httpClient,
		model:  cfg.Model,
		logger: logger.With("component", "llm_client"),
	}
}

// Model returns the configured model name.
func (c *LLMClient) Model() string { return c.model }

// BuildPrompt combines a report and a question into the generate prompt.
func BuildPrompt(report, question string) string {
	return "Context information:\n" + report +
		"\n\nUser query:\n" + question +
		"\n\nPlease answer the user query based on the context information provided."
}

// Ask sends the question with report as context and returns the model's
// reply verbatim. Failures come back as a descriptive reply.
func (c *LLMClient) Ask(ctx context.Context, report, question string) string {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:  c.model,
			Prompt: BuildPrompt(report, question),
			Stream: false,
		}).
		Post("/api/generate")
	if err != nil {
		c.logger.Warn("ollama request failed", "error", err)
		return fmt.Sprintf("Error communicating with Ollama: %v", err)
	}

	if !res.IsSuccess() {
		c.logger.Warn("ollama returned an error status", "status", res.StatusCode())
		return fmt.Sprintf("Error: Unable to get response from Ollama. Status code: %d", res.StatusCode())
	}

	var out generateResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		c.logger.Warn("ollama response not decodable", "error", err)
		return fmt.Sprintf("Error communicating with Ollama: decode response: %v", err)
	}
	if out.Response == nil {
		return noResponse
	}

	c.logger.Debug("ollama answered", "model", c.model, "duration", res.Time())
	return *out.Response
}
