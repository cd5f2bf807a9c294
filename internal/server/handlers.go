package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"melobot/internal/agent"
	"melobot/internal/domain"
	"melobot/internal/history"
	"melobot/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const maxBodySize = 1 << 20 // 1MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(v)
}

type chatRequest struct {
	Message           string `json:"message"`
	History           []any  `json:"history"`
	SystemInstruction string `json:"systemInstruction"`
}

type chatResponse struct {
	Response string `json:"response"`
	History  any    `json:"history"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	metrics.ChatRequestsTotal.Inc()
	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Corpo da requisição inválido."})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Mensagem não fornecida."})
		return
	}

	s.logger.Info("chat message received", "len", len(req.Message))

	// Well-known intents never reach the provider. The raw history is echoed
	// back untouched so the client's transcript stays consistent.
	if reply, matched := s.detector.Detect(r.Context(), req.Message); matched {
		metrics.FastpathHitsTotal.Inc()
		writeJSON(w, http.StatusOK, chatResponse{Response: reply, History: req.History})
		return
	}

	msgs := history.Normalize(req.History)
	username := s.authenticatedUser(r)
	system := s.resolver.Resolve(r.Context(), username, req.SystemInstruction)

	result, err := s.orch.Converse(r.Context(), system, msgs, req.Message)
	if err != nil {
		var reqErr *agent.RequestError
		if errors.As(err, &reqErr) {
			writeJSON(w, http.StatusInternalServerError, chatResponse{
				Response: reqErr.UserMessage(),
				History:  history.ToWire(reqErr.History),
				Error:    reqErr.Reason,
			})
			return
		}
		s.logger.Error("chat processing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, chatResponse{
			Response: "Desculpe, ocorreu um erro ao processar sua mensagem. Por favor, tente novamente.",
			History:  history.ToWire(msgs),
			Error:    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response: result.Reply,
		History:  history.ToWire(result.History),
	})
}

type saveTranscriptRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	BotID     string `json:"botId"`
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Messages  []any  `json:"messages"`
}

func (s *Server) handleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	var req saveTranscriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Corpo da requisição inválido."})
		return
	}
	if req.SessionID == "" || req.Messages == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Dados incompletos para salvar histórico (sessionId e messages são obrigatórios).",
		})
		return
	}

	now := time.Now()
	t := domain.Transcript{
		SessionID: req.SessionID,
		Title:     req.Title,
		UserID:    orDefault(req.UserID, "anonimo"),
		BotID:     orDefault(req.BotID, s.botName),
		StartTime: parseTimeOr(req.StartTime, now),
		EndTime:   parseTimeOr(req.EndTime, now),
		Messages:  history.Normalize(req.Messages),
		LoggedAt:  now,
	}

	id, err := s.transcripts.Save(r.Context(), t)
	if err != nil {
		s.logger.Error("transcript save failed", "session", req.SessionID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno ao salvar histórico de chat."})
		return
	}
	metrics.TranscriptSavesTotal.Inc()

	s.logger.Info("transcript saved", "session", req.SessionID, "id", id)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message":   "Histórico de chat salvo com sucesso!",
		"sessionId": req.SessionID,
		"id":        id,
	})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	list, err := s.transcripts.List(r.Context(), 10)
	if err != nil {
		s.logger.Error("transcript list failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno ao buscar históricos de chat."})
		return
	}
	if list == nil {
		list = []domain.Transcript{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.transcripts.Delete(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Histórico não encontrado."})
		return
	}
	if err != nil {
		s.logger.Error("transcript delete failed", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno ao excluir histórico de chat."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Histórico excluído com sucesso."})
}

func (s *Server) handleRenameTranscript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Titulo string `json:"titulo"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Titulo) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Título não fornecido."})
		return
	}

	id := chi.URLParam(r, "id")
	err := s.transcripts.Rename(r.Context(), id, req.Titulo)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Histórico não encontrado."})
		return
	}
	if err != nil {
		s.logger.Error("transcript rename failed", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno ao atualizar título."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Título atualizado com sucesso."})
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.transcripts.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("transcript fetch failed", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno ao gerar título."})
		return
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Histórico não encontrado."})
		return
	}

	title, err := s.orch.GenerateTitle(r.Context(), t.Messages)
	if err != nil {
		s.logger.Error("title generation failed", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno ao gerar título: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"titulo": title})
}

func (s *Server) handleLogConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP   string `json:"ip"`
		Acao string `json:"acao"`
	}
	if err := decodeJSON(r, &req); err != nil || req.IP == "" || req.Acao == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Dados de log incompletos (IP e ação são obrigatórios).",
		})
		return
	}

	now := time.Now()
	entry := domain.AccessLogEntry{
		Date:    now.Format("2006-01-02"),
		Time:    now.Format("15:04:05"),
		IP:      req.IP,
		BotName: s.botName,
		Action:  req.Acao,
	}
	if err := s.accessLog.AppendAccess(r.Context(), entry); err != nil {
		s.logger.Error("access log append failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro ao registrar log."})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Log registrado com sucesso."})
}

func (s *Server) handleRecordAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotID           string `json:"botId"`
		NomeBot         string `json:"nomeBot"`
		TimestampAcesso string `json:"timestampAcesso"`
	}
	if err := decodeJSON(r, &req); err != nil || req.BotID == "" || req.NomeBot == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "ID e Nome do Bot são obrigatórios para o ranking.",
		})
		return
	}

	at := parseTimeOr(req.TimestampAcesso, time.Now())
	if err := s.ranking.RecordAccess(r.Context(), req.BotID, req.NomeBot, at); err != nil {
		s.logger.Error("ranking record failed", "bot", req.BotID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro ao registrar acesso."})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("Acesso ao bot %s registrado para ranking.", req.NomeBot),
	})
}

func (s *Server) handleViewRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ranking.All(r.Context())
	if err != nil {
		s.logger.Error("ranking read failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro ao buscar ranking."})
		return
	}
	if entries == nil {
		entries = []domain.RankingEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.personas)
}

func (s *Server) handleCheckTime(w http.ResponseWriter, r *http.Request) {
	data, err := s.clock.Execute(r.Context(), nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())
	user, err := s.users.GetUser(r.Context(), username)
	if err != nil || user == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro interno."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"systemInstruction": user.SystemInstruction})
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SystemInstruction string `json:"systemInstruction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Corpo da requisição inválido."})
		return
	}

	username := usernameFromContext(r.Context())
	if err := s.users.SetUserInstruction(r.Context(), username, req.SystemInstruction); err != nil {
		s.logger.Error("preference update failed", "user", username, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erro ao salvar preferências."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Preferências atualizadas com sucesso."})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func parseTimeOr(v string, fallback time.Time) time.Time {
	if v == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return fallback
	}
	return t
}
