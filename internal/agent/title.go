package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"melobot/internal/domain"
)

const titlePrompt = "Com base nesta conversa, sugira um título curto e conciso de no máximo 5 palavras que capture o tema principal do diálogo:\n\n"

// maxTitleSourceMessages bounds how much transcript is sent for titling.
const maxTitleSourceMessages = 10

// GenerateTitle asks the provider for a short transcript title. Only plain
// text turns participate; tool traffic is noise for this purpose.
func (o *Orchestrator) GenerateTitle(ctx context.Context, msgs []domain.Message) (string, error) {
	var lines []string
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case domain.RoleUser:
			lines = append(lines, "Usuário: "+m.Text)
		case domain.RoleAssistant:
			lines = append(lines, "Bot: "+m.Text)
		}
		if len(lines) >= maxTitleSourceMessages {
			break
		}
	}
	if len(lines) == 0 {
		return "", errors.New("no titleable messages")
	}

	prompt := titlePrompt + strings.Join(lines, "\n")
	resp, err := o.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Text: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate title: empty provider payload")
	}

	title := cleanTitle(extractText(resp))
	if title == "" {
		return "", errors.New("generate title: no text in response")
	}
	return title, nil
}

// cleanTitle strips the decoration models like to add around short answers.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, `"'`)
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
