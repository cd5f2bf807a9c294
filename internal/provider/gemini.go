package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"melobot/internal/domain"
)

const defaultGeminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// Gemini implements domain.Provider against the Gemini generateContent REST
// API with function-calling declarations.
type Gemini struct {
	apiKey      string
	apiBase     string
	model       string
	temperature float64
	topP        float64
	topK        int
	client      *http.Client
	logger      *slog.Logger
}

type GeminiConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	TopP        float64
	TopK        int
	Timeout     time.Duration
	Logger      *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultGeminiAPIBase
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.8
	}
	if cfg.TopK == 0 {
		cfg.TopK = 40
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{
		apiKey:      cfg.APIKey,
		apiBase:     cfg.APIBase,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		topK:        cfg.TopK,
		client:      newHTTPClient(cfg.Timeout),
		logger:      cfg.Logger,
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Healthy(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models?key=%s", g.apiBase, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("gemini: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini returned %d", resp.StatusCode)
	}
	return nil
}

// Wire types for the generateContent endpoint.

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"system_instruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	Tools             []geminiToolList `json:"tools,omitempty"`
	GenerationConfig  geminiGenConfig  `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFuncResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiToolList struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP,omitempty"`
	TopK        int     `json:"topK,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat issues one generateContent round. A transport or HTTP-level failure
// returns an error; a successful call with no usable candidate returns
// (nil, nil) per the domain.Provider contract.
func (g *Gemini) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	body := geminiRequest{
		Contents: toContents(req.Messages),
		GenerationConfig: geminiGenConfig{
			Temperature: pick(req.Temperature, g.temperature),
			TopP:        pick(req.TopP, g.topP),
			TopK:        pickInt(req.TopK, g.topK),
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]geminiFuncDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFuncDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		body.Tools = []geminiToolList{{FunctionDeclarations: decls}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.apiBase, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Candidates) == 0 || parsed.Candidates[0].Content == nil {
		g.logger.Warn("gemini response has no candidates", "body_len", len(raw))
		return nil, nil
	}

	out := &domain.ChatResponse{}
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Parts = append(out.Parts, part.Text)
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{Name: part.FunctionCall.Name, Args: args})
		}
	}
	for _, p := range out.Parts {
		out.Text += p
	}
	return out, nil
}

// toContents maps canonical messages to wire contents. Tool turns become
// user turns with functionResponse parts; assistant tool requests become
// model turns with functionCall parts.
func toContents(msgs []domain.Message) []geminiContent {
	out := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleTool:
			parts := make([]geminiPart, 0, len(m.ToolResults))
			for _, r := range m.ToolResults {
				parts = append(parts, geminiPart{FunctionResponse: &geminiFuncResp{Name: r.Name, Response: r.Response}})
			}
			out = append(out, geminiContent{Role: "user", Parts: parts})
		case domain.RoleAssistant, domain.RoleSystem:
			var parts []geminiPart
			if m.Text != "" {
				parts = append(parts, geminiPart{Text: m.Text})
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFuncCall{Name: c.Name, Args: c.Args}})
			}
			if len(parts) == 0 {
				parts = []geminiPart{{Text: ""}}
			}
			out = append(out, geminiContent{Role: "model", Parts: parts})
		default:
			out = append(out, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Text}}})
		}
	}
	return out
}

func pick(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}

func pickInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

var _ domain.Provider = (*Gemini)(nil)
