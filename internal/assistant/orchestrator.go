package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/shopchat-core/internal/tools"
	"github.com/angelmondragon/shopchat-core/pkg/llm"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

var tracer = otel.Tracer("github.com/angelmondragon/shopchat-core/internal/assistant")

// FallbackReply is sent when the loop cannot produce an answer.
const FallbackReply = "Sorry, I couldn't finish that request right now. Please contact support and a person from the shop will help you."

const (
	defaultMaxRounds   = 5
	defaultTimeout     = 90 * time.Second
	defaultParallelism = 4
)

// Outcome describes how one loop ended.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeRoundCap Outcome = "round_cap"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// ToolRunner executes validated tool calls.
type ToolRunner interface {
	Execute(ctx context.Context, session tools.Session, name string, rawArgs json.RawMessage) tools.Result
}

// Conversation is the input of one loop: who is talking and what was said so far.
type Conversation struct {
	Session  tools.Session
	ShopName string
	History  []llm.Message
}

// Reply is the final text of one loop plus bookkeeping.
type Reply struct {
	Text      string
	Outcome   Outcome
	Rounds    int
	ToolCalls int
}

// OrchestratorParams groups the orchestrator dependencies.
type OrchestratorParams struct {
	Model       llm.Client
	Tools       ToolRunner
	Definitions []llm.ToolDefinition
	MaxRounds   int
	Timeout     time.Duration
	Parallelism int
	Retry       retry.Policy
	Metrics     *metrics.AssistantMetrics
	Logger      *logger.Logger
}

// Orchestrator drives the model/tool loop for one inbound message at a time.
// It keeps no state between runs.
type Orchestrator struct {
	model       llm.Client
	tools       ToolRunner
	definitions []llm.ToolDefinition
	maxRounds   int
	timeout     time.Duration
	parallelism int
	retry       retry.Policy
	metrics     *metrics.AssistantMetrics
	logg        *logger.Logger
}

func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Model == nil {
		return nil, fmt.Errorf("model client required")
	}
	if params.Tools == nil {
		return nil, fmt.Errorf("tool runner required")
	}
	o := &Orchestrator{
		model:       params.Model,
		tools:       params.Tools,
		definitions: params.Definitions,
		maxRounds:   params.MaxRounds,
		timeout:     params.Timeout,
		parallelism: params.Parallelism,
		retry:       params.Retry,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}
	if o.maxRounds <= 0 {
		o.maxRounds = defaultMaxRounds
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}
	if o.parallelism <= 0 {
		o.parallelism = defaultParallelism
	}
	if o.logg == nil {
		o.logg = logger.Nop()
	}
	return o, nil
}

// Run answers the last message of the conversation. It always returns a
// reply; failures end the loop with FallbackReply.
func (o *Orchestrator) Run(ctx context.Context, conv Conversation) Reply {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "assistant.run")
	defer span.End()

	reply := o.loop(ctx, conv)

	span.SetAttributes(
		attribute.Int("assistant.rounds", reply.Rounds),
		attribute.Int("assistant.tool_calls", reply.ToolCalls),
		attribute.String("assistant.outcome", string(reply.Outcome)),
	)
	if reply.Outcome != OutcomeAnswered {
		span.SetStatus(codes.Error, string(reply.Outcome))
	}
	o.metrics.ObserveRounds(reply.Rounds)
	o.metrics.IncOutcome(string(reply.Outcome))
	return reply
}

func (o *Orchestrator) loop(ctx context.Context, conv Conversation) Reply {
	messages := make([]llm.Message, 0, len(conv.History)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(conv.ShopName)})
	messages = append(messages, conv.History...)

	reply := Reply{}
	for round := 1; round <= o.maxRounds; round++ {
		if ctx.Err() != nil {
			return o.fallback(ctx, reply, OutcomeTimeout, ctx.Err())
		}
		reply.Rounds = round

		resp, err := o.complete(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return o.fallback(ctx, reply, OutcomeTimeout, err)
			}
			return o.fallback(ctx, reply, OutcomeError, err)
		}

		if !resp.HasToolCalls() {
			text := strings.TrimSpace(resp.Message.Content)
			if text == "" {
				return o.fallback(ctx, reply, OutcomeError, errors.New("model returned an empty answer"))
			}
			reply.Text = text
			reply.Outcome = OutcomeAnswered
			return reply
		}

		calls := resp.Message.ToolCalls
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: calls,
		})
		messages = append(messages, o.executeRound(ctx, conv.Session, calls)...)
		reply.ToolCalls += len(calls)
	}
	return o.fallback(ctx, reply, OutcomeRoundCap, fmt.Errorf("no answer after %d rounds", o.maxRounds))
}

func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	req := llm.Request{Messages: messages, Tools: o.definitions}
	return retry.DoValue(ctx, o.retry, func(ctx context.Context) (*llm.Response, error) {
		resp, err := o.model.Complete(ctx, req)
		if err != nil {
			return nil, retry.Classify(err)
		}
		if resp == nil {
			return nil, retry.Permanent(errors.New("model returned no response"))
		}
		return resp, nil
	})
}

// executeRound runs the calls of one round concurrently. Results are placed
// by index so they come back in the order the model asked for them.
func (o *Orchestrator) executeRound(ctx context.Context, session tools.Session, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, call := range calls {
		g.Go(func() error {
			res := o.tools.Execute(ctx, session, call.Name, json.RawMessage(call.Arguments))
			results[i] = llm.Message{
				Role:       llm.RoleTool,
				Content:    res.JSON(),
				ToolCallID: call.ID,
				Name:       call.Name,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) fallback(ctx context.Context, reply Reply, outcome Outcome, cause error) Reply {
	reply.Text = FallbackReply
	reply.Outcome = outcome
	fields := map[string]any{
		"outcome": string(outcome),
		"rounds":  reply.Rounds,
	}
	o.logg.Error(o.logg.WithFields(context.WithoutCancel(ctx), fields), "assistant loop ended without an answer", cause)
	return reply
}

func systemPrompt(shopName string) string {
	name := strings.TrimSpace(shopName)
	if name == "" {
		name = "the shop"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the sales assistant of %s, chatting with a customer on a messaging app.\n", name)
	b.WriteString("Answer briefly and in the customer's language.\n")
	b.WriteString("Use the tools for anything that touches products, the cart, orders, payments or contact details. Never invent prices, stock or order states.\n")
	b.WriteString("When a tool fails, explain the problem in plain words and ask the customer how to continue.\n")
	b.WriteString("If the customer asks for a person, call request_human_support.")
	return b.String()
}
