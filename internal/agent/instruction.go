package agent

import (
	"context"
	"log/slog"
	"strings"

	"melobot/internal/domain"
)

// builtinInstruction is the compiled-in default persona, used when neither a
// per-user nor a global instruction is configured.
const builtinInstruction = `Você é o Chatbot Musical, um assistente virtual brasileiro especializado em música.
IMPORTANTE: Você DEVE SEMPRE responder em português do Brasil, usando linguagem informal e amigável.
Você deve responder principalmente sobre temas relacionados à música, mantendo um tom alegre e acolhedor.
Você tem acesso às seguintes funções:
- getCurrentTime: Para informar a hora e data atuais no Brasil (horário de Brasília).
- getWeather: Para verificar o clima em uma cidade (você pode relacionar com músicas sobre o clima ou humor).
- searchSong: Para buscar informações sobre músicas específicas.

REGRAS IMPORTANTES:
1. Quando o usuário perguntar sobre a hora atual, data atual, ou fazer perguntas como "que horas são?", "que dia é hoje?", VOCÊ DEVE SEMPRE usar a função getCurrentTime. NUNCA responda que não tem acesso a essas informações.
2. NUNCA responda perguntas sobre data ou hora usando seu próprio conhecimento ou informações antigas. Sempre utilize o resultado da função getCurrentTime.
3. Se você responder sobre data/hora sem usar a função, estará ERRADO. Exemplo de resposta ERRADA: "Não tenho acesso a informações em tempo real". Exemplo de resposta CERTA: (resultado da função getCurrentTime).
4. Após informar a hora/data, você pode fazer uma conexão com alguma curiosidade musical relacionada.
5. Seja amigável e entusiasmado sobre música! Use emojis musicais (🎵, 🎸, 🎹) quando apropriado.
6. Se não souber uma resposta, seja honesto.
7. Use as funções quando relevante para enriquecer a conversa. É OBRIGATÓRIO usar getCurrentTime para perguntas sobre data/hora.
8. Se o usuário pedir ajuda, sugira temas musicais ou funcionalidades que você oferece.
9. NUNCA mencione o nome das funções em suas respostas. Apenas use-as e forneça as informações solicitadas de forma natural.
10. Para perguntas sobre clima, use a função getWeather e responda de forma natural, sem mencionar a função.`

// languageDirective is layered on top of whatever instruction wins the
// precedence. It is not overridable.
const languageDirective = "Você DEVE responder SEMPRE em português do Brasil, de forma amigável e informal, como se estivesse conversando com um amigo."

// InstructionResolver computes the effective system instruction per request.
// The global instruction is re-read from the store on every call so admin
// edits apply immediately, without a restart.
type InstructionResolver struct {
	settings domain.SettingStore
	users    domain.UserStore
	logger   *slog.Logger
}

func NewInstructionResolver(settings domain.SettingStore, users domain.UserStore, logger *slog.Logger) *InstructionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstructionResolver{settings: settings, users: users, logger: logger}
}

// Resolve applies the precedence: request override > user's stored
// instruction > global stored instruction > built-in default. Blank layers
// (empty after trim) are skipped. Store failures degrade to the next layer.
func (r *InstructionResolver) Resolve(ctx context.Context, username, override string) string {
	instruction := builtinInstruction

	if r.settings != nil {
		global, err := r.settings.GetSetting(ctx, domain.SettingSystemInstruction)
		if err != nil {
			r.logger.Warn("cannot read global instruction", "err", err)
		} else if strings.TrimSpace(global) != "" {
			instruction = global
		}
	}

	if username != "" && r.users != nil {
		user, err := r.users.GetUser(ctx, username)
		if err != nil {
			r.logger.Warn("cannot read user instruction", "user", username, "err", err)
		} else if user != nil && strings.TrimSpace(user.SystemInstruction) != "" {
			instruction = user.SystemInstruction
		}
	}

	if strings.TrimSpace(override) != "" {
		instruction = override
	}

	return instruction + "\n\n" + languageDirective
}
