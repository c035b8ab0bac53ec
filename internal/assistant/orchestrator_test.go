package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopchat-core/internal/tools"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/llm"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

type scriptedModel struct {
	mu        sync.Mutex
	responses []*llm.Response
	errs      []error
	requests  []llm.Request
	block     bool
}

func (m *scriptedModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, llm.Request{
		Messages: append([]llm.Message(nil), req.Messages...),
		Tools:    req.Tools,
	})
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx >= len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[idx], nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type recordingRunner struct {
	mu     sync.Mutex
	names  []string
	delays map[string]time.Duration
}

func (r *recordingRunner) Execute(ctx context.Context, _ tools.Session, name string, rawArgs json.RawMessage) tools.Result {
	if d, ok := r.delays[name]; ok {
		time.Sleep(d)
	}
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	return tools.Result{Success: true, Message: "ran " + name + " with " + string(rawArgs)}
}

func (r *recordingRunner) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func toolCallResponse(calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}}
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: text}}
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 2,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func newTestOrchestrator(t *testing.T, model llm.Client, runner ToolRunner, mutate func(*OrchestratorParams)) *Orchestrator {
	t.Helper()
	params := OrchestratorParams{
		Model:       model,
		Tools:       runner,
		Definitions: []llm.ToolDefinition{{Name: "view_cart"}},
		MaxRounds:   5,
		Timeout:     time.Second,
		Parallelism: 4,
		Retry:       testPolicy(),
	}
	if mutate != nil {
		mutate(&params)
	}
	o, err := NewOrchestrator(params)
	require.NoError(t, err)
	return o
}

func testConversation() Conversation {
	return Conversation{
		Session:  tools.Session{ShopID: uuid.New(), CustomerID: uuid.New()},
		ShopName: "Tienda Sol",
		History:  []llm.Message{{Role: llm.RoleUser, Content: "what is in my cart?"}},
	}
}

func TestRunExecutesOneToolThenAnswers(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		toolCallResponse(llm.ToolCall{ID: "call_1", Name: "view_cart", Arguments: "{}"}),
		textResponse("Your cart is empty."),
	}}
	runner := &recordingRunner{}
	o := newTestOrchestrator(t, model, runner, nil)

	reply := o.Run(context.Background(), testConversation())

	require.Equal(t, OutcomeAnswered, reply.Outcome)
	require.Equal(t, "Your cart is empty.", reply.Text)
	require.Equal(t, 2, model.calls())
	require.Equal(t, []string{"view_cart"}, runner.executed())
	require.Equal(t, 2, reply.Rounds)
	require.Equal(t, 1, reply.ToolCalls)

	second := model.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleSystem, second[0].Role)
	assert.Contains(t, second[0].Content, "Tienda Sol")
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, second[3].Role)
	assert.Equal(t, "call_1", second[3].ToolCallID)
	assert.Contains(t, second[3].Content, `"success":true`)
}

func TestRunKeepsToolResultsInRequestOrder(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		toolCallResponse(
			llm.ToolCall{ID: "a", Name: "slow", Arguments: "{}"},
			llm.ToolCall{ID: "b", Name: "medium", Arguments: "{}"},
			llm.ToolCall{ID: "c", Name: "fast", Arguments: "{}"},
		),
		textResponse("done"),
	}}
	runner := &recordingRunner{delays: map[string]time.Duration{
		"slow":   60 * time.Millisecond,
		"medium": 30 * time.Millisecond,
	}}
	o := newTestOrchestrator(t, model, runner, nil)

	reply := o.Run(context.Background(), testConversation())
	require.Equal(t, OutcomeAnswered, reply.Outcome)

	// fast finishes first, but results follow the order of the calls.
	require.Equal(t, "fast", runner.executed()[0])
	msgs := model.requests[1].Messages
	toolMsgs := msgs[len(msgs)-3:]
	ids := []string{toolMsgs[0].ToolCallID, toolMsgs[1].ToolCallID, toolMsgs[2].ToolCallID}
	require.Equal(t, []string{"a", "b", "c"}, ids)
	require.Equal(t, "slow", toolMsgs[0].Name)
}

func TestRunStopsAtRoundCap(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		toolCallResponse(llm.ToolCall{ID: "loop", Name: "view_cart", Arguments: "{}"}),
	}}
	runner := &recordingRunner{}
	o := newTestOrchestrator(t, model, runner, func(p *OrchestratorParams) { p.MaxRounds = 3 })

	reply := o.Run(context.Background(), testConversation())

	require.Equal(t, OutcomeRoundCap, reply.Outcome)
	require.Equal(t, FallbackReply, reply.Text)
	require.Equal(t, 3, model.calls())
	require.Len(t, runner.executed(), 3)
}

func TestRunFallsBackOnTimeout(t *testing.T) {
	model := &scriptedModel{block: true}
	o := newTestOrchestrator(t, model, &recordingRunner{}, func(p *OrchestratorParams) {
		p.Timeout = 20 * time.Millisecond
	})

	start := time.Now()
	reply := o.Run(context.Background(), testConversation())

	require.Equal(t, OutcomeTimeout, reply.Outcome)
	require.Equal(t, FallbackReply, reply.Text)
	require.Less(t, time.Since(start), time.Second)
}

func TestRunRetriesTransientModelFailure(t *testing.T) {
	model := &scriptedModel{
		errs:      []error{fmt.Errorf("connection reset")},
		responses: []*llm.Response{nil, textResponse("hola")},
	}
	o := newTestOrchestrator(t, model, &recordingRunner{}, nil)

	reply := o.Run(context.Background(), testConversation())

	require.Equal(t, OutcomeAnswered, reply.Outcome)
	require.Equal(t, "hola", reply.Text)
	require.Equal(t, 2, model.calls())
}

func TestRunDoesNotRetryPermanentModelFailure(t *testing.T) {
	model := &scriptedModel{
		errs:      []error{pkgerrors.New(pkgerrors.CodeValidation, "bad request")},
		responses: []*llm.Response{textResponse("unused")},
	}
	o := newTestOrchestrator(t, model, &recordingRunner{}, nil)

	reply := o.Run(context.Background(), testConversation())

	require.Equal(t, OutcomeError, reply.Outcome)
	require.Equal(t, FallbackReply, reply.Text)
	require.Equal(t, 1, model.calls())
}

func TestRunTreatsBlankAnswerAsFailure(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{textResponse("   ")}}
	o := newTestOrchestrator(t, model, &recordingRunner{}, nil)

	reply := o.Run(context.Background(), testConversation())

	require.Equal(t, OutcomeError, reply.Outcome)
	require.Equal(t, FallbackReply, reply.Text)
}
