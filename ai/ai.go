// Package ai relays an OpenAI-compatible chat-completion stream to UI events
// and lists the models an endpoint offers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Hooolee/novel-splitter/apperr"
	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/metrics"
	"github.com/Hooolee/novel-splitter/model"
	"github.com/Hooolee/novel-splitter/utils"
)

const (
	chatSuffix   = "/chat/completions"
	modelsSuffix = "/models"
)

// ResolveChatURL returns the POST target for a base URL with or without the
// chat-completions path and trailing slashes.
func ResolveChatURL(apiBase string) string {
	base := strings.TrimRight(apiBase, "/")
	if strings.HasSuffix(base, chatSuffix) {
		return base
	}
	return base + chatSuffix
}

func ResolveModelsURL(apiBase string) string {
	base := strings.TrimRight(apiBase, "/")
	if strings.HasSuffix(base, chatSuffix) {
		return strings.TrimSuffix(base, chatSuffix) + modelsSuffix
	}
	return base + modelsSuffix
}

type Options struct {
	// Client must not carry a timeout: it would cut long streams short.
	Client      *resty.Client
	Temperature float64
	// ModelsTimeout bounds FetchModels. Default: 30s.
	ModelsTimeout time.Duration
	Logger        *slog.Logger
}

type Client struct {
	http          *resty.Client
	temperature   float64
	modelsTimeout time.Duration
	logger        *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.Client == nil {
		opts.Client = utils.NewRestyClient(utils.RestyOptions{})
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.ModelsTimeout <= 0 {
		opts.ModelsTimeout = 30 * time.Second
	}
	return &Client{
		http:          opts.Client,
		temperature:   opts.Temperature,
		modelsTimeout: opts.ModelsTimeout,
		logger:        logger.OrDefault(opts.Logger),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type AnalysisRequest struct {
	Config model.AiConfig
	// Prompt is the system prompt; empty selects DefaultAnalysisPrompt.
	Prompt       string
	Content      string
	ResponseJSON bool
}

// Analyze runs StreamAnalysis and reports a failure as an error status event.
func (c *Client) Analyze(ctx context.Context, req AnalysisRequest, emitter events.Emitter) error {
	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultAnalysisPrompt
	}
	err := c.StreamAnalysis(ctx, req.Config, prompt, req.Content, req.ResponseJSON, emitter)
	if err != nil {
		c.logger.Error("ai: analysis failed", "model", req.Config.Model, "error", err)
		events.AiStatus(emitter, fmt.Sprintf("Error: %v", err), model.StatusError)
	}
	return err
}

// StreamAnalysis posts a streaming chat completion and emits every delta
// content as an ai-analysis chunk, framed by start and done status events.
func (c *Client) StreamAnalysis(ctx context.Context, cfg model.AiConfig, systemPrompt, content string, forceJSON bool, emitter events.Emitter) error {
	body := chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		Stream:      true,
		Temperature: c.temperature,
	}
	if forceJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := utils.JSON.Marshal(body)
	if err != nil {
		return apperr.Wrap(apperr.KindFormat, "failed to encode request", err)
	}

	url := ResolveChatURL(cfg.ApiBase)
	events.AiStatus(emitter, fmt.Sprintf("Connecting to AI at %s...", url), model.StatusStart)

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetAuthToken(cfg.ApiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(payload).
		Post(url)
	if err != nil {
		metrics.LLMStreamsTotal.WithLabelValues("error").Inc()
		return apperr.Transport("Request failed", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if !resp.IsSuccess() {
		text, _ := io.ReadAll(raw)
		metrics.LLMStreamsTotal.WithLabelValues("error").Inc()
		return apperr.New(apperr.KindTransport, fmt.Sprintf("API Error %s: %s", resp.Status(), text))
	}

	chunks := 0
	parser := NewStreamParser(func(chunk string) {
		chunks++
		metrics.LLMChunksTotal.Inc()
		events.AiChunk(emitter, chunk)
	})

	buf := make([]byte, 4096)
	for {
		n, err := raw.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.LLMStreamsTotal.WithLabelValues("error").Inc()
			return apperr.Transport("stream read failed", err)
		}
	}
	parser.Flush()

	metrics.LLMStreamsTotal.WithLabelValues("ok").Inc()
	c.logger.Info("ai: stream finished", "model", cfg.Model, "chunks", chunks)
	events.AiStatus(emitter, "Analysis Complete", model.StatusDone)
	return nil
}

type modelList struct {
	Data []struct {
		Id string `json:"id"`
	} `json:"data"`
}

// FetchModels lists data[].id from the models endpoint next to apiBase.
func (c *Client) FetchModels(ctx context.Context, cfg model.AiConfig) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.modelsTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cfg.ApiKey).
		Get(ResolveModelsURL(cfg.ApiBase))
	if err != nil {
		return nil, apperr.Transport("Request failed", err)
	}
	if !resp.IsSuccess() {
		return nil, apperr.New(apperr.KindTransport, fmt.Sprintf("API Error %s", resp.Status()))
	}

	var generic map[string]interface{}
	if err := utils.Unmarshal(resp.Body(), &generic); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "Parse error", err)
	}
	if _, ok := generic["data"].([]interface{}); !ok {
		return nil, apperr.Format("Unknown response format: %s", utils.Snippet(string(resp.Body()), 200))
	}

	var list modelList
	if err := utils.Unmarshal(resp.Body(), &list); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "Parse error", err)
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.Id != "" {
			models = append(models, m.Id)
		}
	}
	return models, nil
}
