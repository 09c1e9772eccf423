package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Wrseno/whatsapp-bot/internal/models"
	"github.com/Wrseno/whatsapp-bot/internal/services"
	"github.com/Wrseno/whatsapp-bot/pkg/logger"
	"github.com/Wrseno/whatsapp-bot/pkg/validator"
)

type BotHandler struct {
	manager *services.Manager
	logger  *logger.Logger
}

func NewBotHandler(manager *services.Manager, log *logger.Logger) *BotHandler {
	return &BotHandler{manager: manager, logger: log}
}

func (h *BotHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *BotHandler) errorJSON(w http.ResponseWriter, status int, message, code string, details map[string]string) {
	h.writeJSON(w, status, models.NewErrorResponse(message, code, details))
}

// CreateSession valida e dispara a criação sem esperar a conexão completar:
// depois do 200, falhas viram webhook de connection-update, não erro de API.
func (h *BotHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := validator.ValidateJSON(r, &req); err != nil {
		h.logger.Warnf("JSON inválido na criação de sessão: %v", err)
		h.errorJSON(w, http.StatusBadRequest, "Corpo da requisição inválido", "INVALID_JSON",
			map[string]string{"error": err.Error()})
		return
	}

	if err := validator.ValidateSessionID(req.SessionID); err != nil {
		h.errorJSON(w, http.StatusBadRequest, "sessionId é obrigatório", "VALIDATION_ERROR",
			map[string]string{"sessionId": err.Error()})
		return
	}

	if h.manager.Has(req.SessionID) {
		h.errorJSON(w, http.StatusBadRequest, "Sessão já existe", "SESSION_EXISTS",
			map[string]string{"sessionId": req.SessionID})
		return
	}

	h.logger.Infof("[%s] Criação de sessão solicitada", req.SessionID)
	go func(sessionID string) {
		_ = h.manager.CreateSession(context.Background(), sessionID)
	}(req.SessionID)

	h.writeJSON(w, http.StatusOK, models.SessionResponse{
		Message:   "Criação da sessão iniciada",
		SessionID: req.SessionID,
	})
}

func (h *BotHandler) DestroySession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := validator.ValidateJSON(r, &req); err != nil {
		h.logger.Warnf("JSON inválido na destruição de sessão: %v", err)
		h.errorJSON(w, http.StatusBadRequest, "Corpo da requisição inválido", "INVALID_JSON",
			map[string]string{"error": err.Error()})
		return
	}

	if err := validator.ValidateSessionID(req.SessionID); err != nil {
		h.errorJSON(w, http.StatusBadRequest, "sessionId é obrigatório", "VALIDATION_ERROR",
			map[string]string{"sessionId": err.Error()})
		return
	}

	h.logger.Infof("[%s] Destruição de sessão solicitada", req.SessionID)
	_ = h.manager.DestroySession(r.Context(), req.SessionID)

	h.writeJSON(w, http.StatusOK, models.SessionResponse{
		Message:   "Sessão destruída com sucesso",
		SessionID: req.SessionID,
	})
}

func (h *BotHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.SessionIDs()
	h.writeJSON(w, http.StatusOK, models.SessionListResponse{
		Sessions: ids,
		Count:    len(ids),
	})
}

func (h *BotHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now(),
		ActiveSessions: h.manager.Count(),
	})
}

func (h *BotHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.errorJSON(w, http.StatusNotFound, "Endpoint não encontrado", "NOT_FOUND",
		map[string]string{"path": r.URL.Path})
}

func (h *BotHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.errorJSON(w, http.StatusMethodNotAllowed, "Método não permitido", "METHOD_NOT_ALLOWED",
		map[string]string{"method": r.Method})
}
