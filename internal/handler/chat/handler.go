package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mindful-chat/backend/internal/middleware"
	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
	chatservice "github.com/zhouzirui/mindful-chat/backend/internal/service/chat"
	"github.com/zhouzirui/mindful-chat/backend/pkg/utils"
)

// TurnService is implemented by *chatservice.Service.
type TurnService interface {
	SendMessage(ctx context.Context, owner, message string) (*chatservice.TurnResult, error)
	History(ctx context.Context, owner string) ([]turn.Turn, error)
	ClearHistory(ctx context.Context, owner string) (int64, error)
}

// Handler 对话轮次的HTTP处理器，路由需由上游 middleware.RequireAuth 保护。
type Handler struct {
	svc      TurnService
	log      *observability.Logger
	upgrader websocket.Upgrader
}

// New 创建聊天处理器
func New(svc TurnService, log *observability.Logger) *Handler {
	if log == nil {
		log = observability.NewNop()
	}
	return &Handler{
		svc: svc,
		log: log.Named("chat"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handleSendMessage)
	r.Get("/history", h.handleHistory)
	r.Delete("/history", h.handleClearHistory)
	r.Get("/ws", h.handleWebSocket)
}

type turnResponse struct {
	Message            string     `json:"message"`
	Reply              string     `json:"reply"`
	Sentiment          turn.Label `json:"sentiment"`
	Confidence         float64    `json:"confidence"`
	NeedsImmediateHelp bool       `json:"needs_immediate_help"`
	Timestamp          time.Time  `json:"timestamp"`
}

type historyItem struct {
	ID                 string     `json:"id"`
	Message            string     `json:"message"`
	Reply              string     `json:"reply"`
	Sentiment          turn.Label `json:"sentiment"`
	Confidence         float64    `json:"confidence"`
	NeedsImmediateHelp bool       `json:"needs_immediate_help"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func newTurnResponse(res *chatservice.TurnResult) turnResponse {
	return turnResponse{
		Message:            res.Turn.Message,
		Reply:              res.Turn.Reply,
		Sentiment:          res.Turn.Label,
		Confidence:         res.Turn.Confidence,
		NeedsImmediateHelp: res.Turn.RiskFlag,
		Timestamp:          res.Turn.CreatedAt,
	}
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.SendMessage(r.Context(), principal.Owner, payload.Message)
	if err != nil {
		h.respondTurnError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, newTurnResponse(res))
}

// 错误详情只返回固定文案，底层原因仅写入日志。
const (
	persistFailureDetails = "the reply was generated but could not be saved"
	turnFailureDetails    = "the message could not be processed"
)

func (h *Handler) respondTurnError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatservice.ErrEmptyMessage) {
		utils.RespondError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	h.log.Error("failed to process message", "error", err)
	details := turnFailureDetails
	var persistErr *chatservice.PersistError
	if errors.As(err, &persistErr) {
		details = persistFailureDetails
	}
	utils.RespondErrorDetails(w, http.StatusInternalServerError, "Failed to process message", details)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	turns, err := h.svc.History(r.Context(), principal.Owner)
	if err != nil {
		h.log.Error("failed to load history", "owner", principal.Owner, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to get chat history")
		return
	}

	items := make([]historyItem, 0, len(turns))
	for _, t := range turns {
		items = append(items, historyItem{
			ID:                 t.ID,
			Message:            t.Message,
			Reply:              t.Reply,
			Sentiment:          t.Label,
			Confidence:         t.Confidence,
			NeedsImmediateHelp: t.RiskFlag,
			CreatedAt:          t.CreatedAt,
		})
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	deleted, err := h.svc.ClearHistory(r.Context(), principal.Owner)
	if err != nil {
		h.log.Error("failed to clear history", "owner", principal.Owner, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to clear chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Chat history cleared successfully",
		"deleted": deleted,
	})
}
