package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tekvare/erp-ai-worker/internal/clients/ollama"
	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/services"
	"github.com/tekvare/erp-ai-worker/internal/types"
)

type fakeRequestRepo struct {
	completeCalls []string // lock owner per call
	failCalls     []string // error message per call
	failErr       error
}

func (f *fakeRequestRepo) ClaimNext(ctx context.Context, tx *gorm.DB, processorTag, lockOwner string, staleAfter time.Duration) (*types.ChatRequest, error) {
	return nil, nil
}

func (f *fakeRequestRepo) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, lockOwner string, latencyMs int64, modelUsed, processedBy string) error {
	f.completeCalls = append(f.completeCalls, lockOwner)
	return nil
}

func (f *fakeRequestRepo) Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, lockOwner, errMsg string) error {
	f.failCalls = append(f.failCalls, errMsg)
	return f.failErr
}

func (f *fakeRequestRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	return nil, nil
}

type fakeMessageRepo struct {
	content   string
	found     bool
	getErr    error
	created   []*types.ChatMessage
	createErr error
}

func (f *fakeMessageRepo) GetContent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, bool, error) {
	return f.content, f.found, f.getErr
}

func (f *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, msg)
	return msg, nil
}

type fakeSuggestionRepo struct {
	created   []*types.Suggestion
	createErr error
}

func (f *fakeSuggestionRepo) Create(ctx context.Context, tx *gorm.DB, s *types.Suggestion) (*types.Suggestion, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, s)
	return s, nil
}

type fakeContextService struct {
	bc  *services.BusinessContext
	err error
}

func (f *fakeContextService) GetBusinessContext(ctx context.Context, userID uuid.UUID, mode string) (*services.BusinessContext, error) {
	return f.bc, f.err
}

type fakeLLM struct {
	result *ollama.Result
	err    error
	calls  int
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []ollama.Message, temperature float64, maxTokens int) (*ollama.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeLLM) DefaultModel() string { return "llama3.2:3b" }

func testContext() *services.BusinessContext {
	return &services.BusinessContext{
		SystemPrompt: "You are the assistant.",
		Today:        "Tuesday, 1 September 2026",
		AccessLevel:  "manager",
		Fields:       map[string]string{"Region": "North"},
	}
}

func testRequest() *types.ChatRequest {
	return &types.ChatRequest{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		ConversationID: uuid.New(),
		MessageID:      uuid.New(),
		Mode:           "sales",
		Status:         types.ChatRequestStatusProcessing,
	}
}

func newTestProcessor(t *testing.T, reqs *fakeRequestRepo, msgs *fakeMessageRepo, suggs *fakeSuggestionRepo, ctxSvc *fakeContextService, llm *fakeLLM) *Processor {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewProcessor(log, reqs, msgs, suggs, ctxSvc, llm, "worker-1", "worker-1")
}

func TestProcessSuccessCompletesExactlyOnce(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "What is the status of my order?", found: true}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{result: &ollama.Result{Model: "llama3.2:3b", Content: "Your order ships Friday."}}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.completeCalls) != 1 {
		t.Fatalf("complete calls: want=1 got=%d", len(reqs.completeCalls))
	}
	if len(reqs.failCalls) != 0 {
		t.Fatalf("fail calls: want=0 got=%d (%v)", len(reqs.failCalls), reqs.failCalls)
	}
	if len(msgs.created) != 1 {
		t.Fatalf("saved messages: want=1 got=%d", len(msgs.created))
	}
	if msgs.created[0].Content != "Your order ships Friday." {
		t.Fatalf("saved content: got=%q", msgs.created[0].Content)
	}
	if msgs.created[0].Role != types.ChatMessageRoleAssistant {
		t.Fatalf("saved role: got=%q", msgs.created[0].Role)
	}
}

func TestProcessSuggestionMarkerPersistedAndStripped(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "Quote for 200m of cable?", found: true}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{result: &ollama.Result{
		Model:   "llama3.2:3b",
		Content: `<!--SUGGESTION:{"content":"Buy more cable","category":"upsell"}-->Here is your quote.`,
	}}

	req := testRequest()
	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), req)

	if len(reqs.completeCalls) != 1 || len(reqs.failCalls) != 0 {
		t.Fatalf("terminal calls: complete=%d fail=%d", len(reqs.completeCalls), len(reqs.failCalls))
	}
	if len(msgs.created) != 1 || msgs.created[0].Content != "Here is your quote." {
		t.Fatalf("saved content: %+v", msgs.created)
	}
	if len(suggs.created) != 1 {
		t.Fatalf("suggestions: want=1 got=%d", len(suggs.created))
	}
	s := suggs.created[0]
	if s.Content != "Buy more cable" || s.Category != "upsell" {
		t.Fatalf("suggestion: %+v", s)
	}
	if s.Context != "Mode: sales, Profile: manager" {
		t.Fatalf("suggestion context: got=%q", s.Context)
	}
	if s.ConversationID != req.ConversationID || s.MessageID != req.MessageID || s.UserID != req.UserID {
		t.Fatalf("suggestion tagging: %+v", s)
	}
}

func TestProcessMalformedSuggestionStillCompletes(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "Hello", found: true}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{result: &ollama.Result{
		Model:   "llama3.2:3b",
		Content: `<!--SUGGESTION:{broken json-->The visible answer.`,
	}}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.completeCalls) != 1 || len(reqs.failCalls) != 0 {
		t.Fatalf("terminal calls: complete=%d fail=%d", len(reqs.completeCalls), len(reqs.failCalls))
	}
	if len(suggs.created) != 0 {
		t.Fatalf("suggestions: want=0 got=%d", len(suggs.created))
	}
	if len(msgs.created) != 1 || strings.Contains(msgs.created[0].Content, "SUGGESTION") {
		t.Fatalf("marker leaked into saved message: %+v", msgs.created)
	}
}

func TestProcessEmptyMessageFailsBeforeInference(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "   ", found: true}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{result: &ollama.Result{Content: "unused"}}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.failCalls) != 1 {
		t.Fatalf("fail calls: want=1 got=%d", len(reqs.failCalls))
	}
	if !strings.Contains(reqs.failCalls[0], "message") {
		t.Fatalf("failure should mention the message: %q", reqs.failCalls[0])
	}
	if llm.calls != 0 {
		t.Fatalf("inference should not run: calls=%d", llm.calls)
	}
	if len(reqs.completeCalls) != 0 {
		t.Fatalf("complete calls: want=0 got=%d", len(reqs.completeCalls))
	}
}

func TestProcessMissingMessageFails(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{found: false}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.failCalls) != 1 || llm.calls != 0 {
		t.Fatalf("fail=%d inference=%d", len(reqs.failCalls), llm.calls)
	}
}

func TestProcessInferenceHTTPErrorFailsWithStatus(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "Hello", found: true}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{err: &ollama.HTTPError{StatusCode: 500, Body: "model blew up"}}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.failCalls) != 1 {
		t.Fatalf("fail calls: want=1 got=%d", len(reqs.failCalls))
	}
	if !strings.Contains(reqs.failCalls[0], "500") {
		t.Fatalf("failure should carry the status code: %q", reqs.failCalls[0])
	}
	if len(msgs.created) != 0 {
		t.Fatalf("no assistant message should be saved, got %d", len(msgs.created))
	}
	if len(reqs.completeCalls) != 0 {
		t.Fatalf("complete calls: want=0 got=%d", len(reqs.completeCalls))
	}
}

func TestProcessContextErrorFails(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "Hello", found: true}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{err: errors.New("erp context unavailable")}
	llm := &fakeLLM{}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.failCalls) != 1 || len(reqs.completeCalls) != 0 {
		t.Fatalf("terminal calls: complete=%d fail=%d", len(reqs.completeCalls), len(reqs.failCalls))
	}
	if llm.calls != 0 {
		t.Fatalf("inference should not run after context failure")
	}
}

func TestProcessSaveErrorFails(t *testing.T) {
	reqs := &fakeRequestRepo{}
	msgs := &fakeMessageRepo{content: "Hello", found: true, createErr: errors.New("insert failed")}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{result: &ollama.Result{Model: "m", Content: "Answer."}}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	p.Process(context.Background(), testRequest())

	if len(reqs.failCalls) != 1 || len(reqs.completeCalls) != 0 {
		t.Fatalf("terminal calls: complete=%d fail=%d", len(reqs.completeCalls), len(reqs.failCalls))
	}
	if !strings.Contains(reqs.failCalls[0], "save assistant message") {
		t.Fatalf("failure message: %q", reqs.failCalls[0])
	}
}

func TestProcessFailRecordingErrorIsSwallowed(t *testing.T) {
	reqs := &fakeRequestRepo{failErr: errors.New("db down")}
	msgs := &fakeMessageRepo{found: false}
	suggs := &fakeSuggestionRepo{}
	ctxSvc := &fakeContextService{bc: testContext()}
	llm := &fakeLLM{}

	p := newTestProcessor(t, reqs, msgs, suggs, ctxSvc, llm)
	// Must not panic or propagate even when Fail itself errors.
	p.Process(context.Background(), testRequest())

	if len(reqs.failCalls) != 1 {
		t.Fatalf("fail calls: want=1 got=%d", len(reqs.failCalls))
	}
}
