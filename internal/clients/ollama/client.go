package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/utils"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Result is a completed non-streaming chat call.
type Result struct {
	Model   string
	Content string
	Latency time.Duration
}

// Client calls a local Ollama-compatible /api/chat endpoint.
type Client interface {
	Chat(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (*Result, error)
	DefaultModel() string
}

type client struct {
	log          *logger.Logger
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(utils.GetEnv("OLLAMA_URI", "http://127.0.0.1:11434", log), "/")
	model := utils.GetEnv("OLLAMA_MODEL", "llama3.2:3b", log)
	timeoutSec := utils.GetEnvAsInt("OLLAMA_TIMEOUT_SECONDS", 120, log)
	if timeoutSec <= 0 {
		timeoutSec = 120
	}
	return &client{
		log:          log.With("service", "OllamaClient"),
		baseURL:      baseURL,
		defaultModel: model,
		httpClient:   &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) DefaultModel() string { return c.defaultModel }

// HTTPError is a non-2xx response from the inference endpoint. The body is
// kept verbatim for diagnosis.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ollama http %d: %s", e.StatusCode, e.Body)
}

type chatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Options  chatOptions `json:"options"`
	Stream   bool        `json:"stream"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (c *client) Chat(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (*Result, error) {
	if model == "" {
		model = c.defaultModel
	}
	body := chatRequest{
		Model:    model,
		Messages: messages,
		Options:  chatOptions{Temperature: temperature, NumPredict: maxTokens},
		Stream:   false,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed on /api/chat: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("ollama decode error: %w", err)
	}
	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("ollama returned empty response content")
	}
	usedModel := parsed.Model
	if usedModel == "" {
		usedModel = model
	}
	return &Result{
		Model:   usedModel,
		Content: content,
		Latency: time.Since(start),
	}, nil
}
