package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/tekvare/erp-ai-worker/internal/clients/ollama"
	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/repos"
	"github.com/tekvare/erp-ai-worker/internal/services"
	"github.com/tekvare/erp-ai-worker/internal/types"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 450
)

// Processor runs one claimed request to a terminal state. Process never
// returns an error: every step failure is converted into exactly one Fail
// call on the queue row.
type Processor struct {
	log         *logger.Logger
	requests    repos.ChatRequestRepo
	messages    repos.ChatMessageRepo
	suggestions repos.SuggestionRepo
	contexts    services.ContextService
	llm         ollama.Client
	lockOwner   string
	identity    string
	tracer      trace.Tracer
}

func NewProcessor(
	baseLog *logger.Logger,
	requests repos.ChatRequestRepo,
	messages repos.ChatMessageRepo,
	suggestions repos.SuggestionRepo,
	contexts services.ContextService,
	llm ollama.Client,
	lockOwner string,
	identity string,
) *Processor {
	return &Processor{
		log:         baseLog.With("component", "Processor"),
		requests:    requests,
		messages:    messages,
		suggestions: suggestions,
		contexts:    contexts,
		llm:         llm,
		lockOwner:   lockOwner,
		identity:    identity,
		tracer:      otel.Tracer("erp-ai-worker/processor"),
	}
}

func (p *Processor) Process(ctx context.Context, req *types.ChatRequest) {
	start := time.Now()
	log := p.log.With("request_id", req.ID, "mode", req.Mode)

	ctx, span := p.tracer.Start(ctx, "chat_request.process",
		trace.WithAttributes(
			attribute.String("chat_request.id", req.ID.String()),
			attribute.String("chat_request.mode", req.Mode),
		))
	defer span.End()

	fail := func(stage string, err error) {
		span.SetStatus(codes.Error, stage)
		span.RecordError(err)
		log.Error("Request failed", "stage", stage, "error", err)
		if fErr := p.requests.Fail(ctx, nil, req.ID, p.lockOwner, err.Error()); fErr != nil {
			// Best effort: nothing else can record the failure, so it only
			// gets a log line and the row stays locked for the stale reaper.
			log.Warn("Could not record failure", "stage", stage, "error", fErr)
		}
	}

	// 1. Business context
	bc, err := p.contexts.GetBusinessContext(ctx, req.UserID, req.Mode)
	if err != nil {
		fail("context", fmt.Errorf("business context: %w", err))
		return
	}

	// 2. User message; an empty body is a data-integrity failure, not an
	// empty-string success.
	content, found, err := p.messages.GetContent(ctx, nil, req.MessageID)
	if err != nil {
		fail("message", fmt.Errorf("load user message: %w", err))
		return
	}
	if !found || strings.TrimSpace(content) == "" {
		fail("message", fmt.Errorf("user message %s is missing or empty", req.MessageID))
		return
	}

	// 3.–4. Prompt and inference
	systemPrompt := BuildSystemPrompt(bc)

	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := ""
	if req.Model != nil {
		model = *req.Model
	}

	infCtx, infSpan := p.tracer.Start(ctx, "chat_request.inference")
	res, err := p.llm.Chat(infCtx, model, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: content},
	}, temperature, maxTokens)
	if err != nil {
		infSpan.RecordError(err)
		infSpan.End()
		fail("inference", err)
		return
	}
	infSpan.SetAttributes(attribute.String("ollama.model", res.Model))
	infSpan.End()

	// 5. Suggestion side channel. A malformed payload is logged and dropped;
	// the marker is stripped from the reply either way.
	stripped, sugg, outcome := ExtractSuggestion(res.Content)
	switch outcome {
	case SuggestionMalformed:
		log.Warn("Suggestion marker present but unparseable, dropping it")
	case SuggestionFound:
		_, err := p.suggestions.Create(ctx, nil, &types.Suggestion{
			ConversationID: req.ConversationID,
			MessageID:      req.MessageID,
			UserID:         req.UserID,
			Content:        sugg.Content,
			Category:       sugg.Category,
			Context:        fmt.Sprintf("Mode: %s, Profile: %s", req.Mode, bc.AccessLevel),
		})
		if err != nil {
			fail("suggestion", fmt.Errorf("save suggestion: %w", err))
			return
		}
	}

	// 6. Persist the assistant reply
	latencyMs := time.Since(start).Milliseconds()
	meta, err := json.Marshal(types.AssistantMessageMeta{
		RequestID:   req.ID,
		Mode:        req.Mode,
		ModelUsed:   res.Model,
		LatencyMs:   latencyMs,
		ProcessedBy: p.identity,
		AccessLevel: bc.AccessLevel,
	})
	if err != nil {
		fail("save", fmt.Errorf("encode message metadata: %w", err))
		return
	}
	if _, err := p.messages.Create(ctx, nil, &types.ChatMessage{
		ConversationID: req.ConversationID,
		Role:           types.ChatMessageRoleAssistant,
		Content:        stripped,
		Mode:           req.Mode,
		Metadata:       datatypes.JSON(meta),
	}); err != nil {
		fail("save", fmt.Errorf("save assistant message: %w", err))
		return
	}

	// 7. Release the lock into the completed state
	if err := p.requests.Complete(ctx, nil, req.ID, p.lockOwner, latencyMs, res.Model, p.identity); err != nil {
		fail("complete", fmt.Errorf("complete request: %w", err))
		return
	}

	span.SetStatus(codes.Ok, "")
	log.Info("Request completed", "model", res.Model, "latency_ms", latencyMs)
}
