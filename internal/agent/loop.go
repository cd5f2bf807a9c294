// Package agent drives the bounded tool-calling conversation loop against
// the chat-completion provider.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"melobot/internal/domain"
	"melobot/internal/metrics"
	"melobot/internal/tool"
)

const defaultMaxRounds = 5

// Reason tags for fatal request failures, surfaced in the error field of
// the chat response.
const (
	ReasonSDKError        = "SDK Error"
	ReasonInvalidResponse = "Invalid AI Response"
)

const (
	msgSDKError         = "Ocorreu um erro ao comunicar com a IA."
	msgInvalidResponse  = "Erro crítico: A IA não retornou uma resposta válida."
	msgApologyFallback  = "Desculpe, tive um problema ao gerar a resposta final."
	msgToolNotAvailable = "Função não implementada no servidor."
)

// leakIndicators flag provider text that echoes an unresolved tool directive
// instead of issuing a structured call.
var leakIndicators = []string{"getcurrenttime", "aguardando execução", "awaiting execution"}

// RequestError is a fatal orchestration failure. History carries the
// best-effort conversation captured before the failure so the client can
// keep its transcript consistent.
type RequestError struct {
	Reason  string
	History []domain.Message
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessage is the PT-BR text shown to the end user for this failure.
// Internal details stay in Err and in the logs.
func (e *RequestError) UserMessage() string {
	if e.Reason == ReasonInvalidResponse {
		return msgInvalidResponse
	}
	return msgSDKError
}

// Result is a completed chat turn.
type Result struct {
	Reply   string
	History []domain.Message
	Rounds  int
}

// Orchestrator runs the provider round-trip loop: send input, execute any
// requested tools, feed the results back, repeat until the model produces a
// final text or the round bound is hit.
type Orchestrator struct {
	provider  domain.Provider
	tools     *tool.Registry
	clock     *tool.ClockTool
	logger    *slog.Logger
	maxRounds int
}

type Config struct {
	Provider  domain.Provider
	Tools     *tool.Registry
	Clock     *tool.ClockTool
	Logger    *slog.Logger
	MaxRounds int
}

func New(cfg Config) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		provider:  cfg.Provider,
		tools:     cfg.Tools,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		maxRounds: cfg.MaxRounds,
	}
}

// Converse runs one user-facing chat turn. The first round sends the user
// message on top of the canonical history; each later round appends exactly
// the previous round's tool results. Transport failures and structurally
// absent responses are fatal and never retried.
func (o *Orchestrator) Converse(ctx context.Context, system string, hist []domain.Message, userMessage string) (*Result, error) {
	convo := make([]domain.Message, 0, len(hist)+2)
	convo = append(convo, hist...)
	convo = append(convo, domain.Message{Role: domain.RoleUser, Text: userMessage, Timestamp: time.Now()})

	defs := o.tools.GetDefinitions()

	var last *domain.ChatResponse
	rounds := 0
	for rounds < o.maxRounds {
		rounds++
		o.logger.Debug("provider round", "round", rounds, "messages", len(convo))

		metrics.ProviderRequestsTotal.Inc()
		started := time.Now()
		resp, err := o.provider.Chat(ctx, domain.ChatRequest{
			System:   system,
			Messages: convo,
			Tools:    defs,
		})
		metrics.ProviderLatency.Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.ProviderErrorsTotal.Inc()
			o.logger.Error("provider call failed", "round", rounds, "err", err)
			return nil, &RequestError{Reason: ReasonSDKError, History: convo, Err: err}
		}
		if resp == nil {
			metrics.ProviderErrorsTotal.Inc()
			o.logger.Error("provider returned no payload", "round", rounds)
			return nil, &RequestError{Reason: ReasonInvalidResponse, History: convo, Err: errors.New("empty provider payload")}
		}
		last = resp

		text := extractText(resp)

		// The provider occasionally leaks an unresolved tool directive as
		// plain text. Recover by running the clock directly; internal-looking
		// text must never reach the user.
		if mentionsLeak(text) {
			o.logger.Warn("tool-call leak detected in provider text", "round", rounds)
			reading := o.clock.Read()
			reply := fmt.Sprintf("Agora são %s 🕒\n\nQue tal ouvirmos uma música para celebrar esse momento? 🎵 Posso te ajudar a encontrar uma música específica ou explorar um gênero que você goste!", reading.Formatted)
			convo = append(convo, domain.Message{Role: domain.RoleAssistant, Text: reply, Timestamp: time.Now()})
			return &Result{Reply: reply, History: convo, Rounds: rounds}, nil
		}

		if !resp.HasToolCalls() {
			break
		}

		convo = append(convo, domain.Message{
			Role:      domain.RoleAssistant,
			Text:      text,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		})

		results := o.executeCalls(ctx, resp.ToolCalls)
		if len(results) == 0 {
			// Calls with nothing executable means no progress is possible.
			o.logger.Warn("round produced tool calls but no results", "round", rounds)
			break
		}
		convo = append(convo, domain.Message{
			Role:        domain.RoleTool,
			ToolResults: results,
			Timestamp:   time.Now(),
		})
	}

	if rounds >= o.maxRounds && last != nil && last.HasToolCalls() {
		o.logger.Warn("tool-calling loop hit round bound", "rounds", rounds)
	}

	reply := extractText(last)
	if reply == "" {
		o.logger.Error("no final text extractable from provider response")
		reply = msgApologyFallback
	}
	convo = append(convo, domain.Message{Role: domain.RoleAssistant, Text: reply, Timestamp: time.Now()})

	return &Result{Reply: reply, History: convo, Rounds: rounds}, nil
}

// executeCalls runs one round's tool batch sequentially, in call order.
// Every call yields a result: unknown names and failing tools produce
// structured error payloads instead of aborting the batch.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []domain.ToolCall) []domain.ToolResult {
	results := make([]domain.ToolResult, 0, len(calls))
	for _, call := range calls {
		if o.tools.Get(call.Name) == nil {
			o.logger.Error("model requested unknown tool", "tool", call.Name)
			results = append(results, domain.ToolResult{
				Name:     call.Name,
				Response: map[string]any{"error": msgToolNotAvailable},
			})
			continue
		}

		o.logger.Info("executing tool", "tool", call.Name, "args", call.Args)
		metrics.ToolExecutionsTotal.Inc()
		started := time.Now()
		payload, err := o.tools.Execute(ctx, call.Name, call.Args)
		metrics.ToolLatency.Observe(time.Since(started).Seconds())
		if err != nil {
			o.logger.Error("tool execution failed", "tool", call.Name, "err", err)
			payload = map[string]any{"error": fmt.Sprintf("Erro interno ao executar %s: %s", call.Name, err)}
		}
		o.logger.Debug("tool result", "tool", call.Name, "result", truncate(payload, 200))

		results = append(results, domain.ToolResult{Name: call.Name, Response: payload})
	}
	return results
}

// extractText prefers the provider's aggregate accessor and falls back to
// concatenating the text-bearing parts of the first candidate.
func extractText(resp *domain.ChatResponse) string {
	if resp == nil {
		return ""
	}
	if resp.Text != "" {
		return resp.Text
	}
	var b strings.Builder
	for _, p := range resp.Parts {
		b.WriteString(p)
	}
	return b.String()
}

func mentionsLeak(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range leakIndicators {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func truncate(payload map[string]any, n int) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
