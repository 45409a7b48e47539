package voice

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/captain-focus/backend/internal/analysis/mood"
	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/service/dispatch"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second

	// maxHistoryTurns 每个连接保留的上下文轮数
	maxHistoryTurns = 20
)

// Dispatcher 生成回复的分发管线
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// WebSocketHandler 语音客户端的 WebSocket 对话通道
type WebSocketHandler struct {
	pipeline Dispatcher
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(pipeline Dispatcher) *WebSocketHandler {
	return &WebSocketHandler{
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type outgoingMessage struct {
	Type      string     `json:"type"`
	ConnID    string     `json:"connectionId,omitempty"`
	Response  string     `json:"response,omitempty"`
	Status    string     `json:"status,omitempty"`
	TierUsed  string     `json:"tierUsed,omitempty"`
	AgentID   string     `json:"agentId,omitempty"`
	Mood      mood.Label `json:"mood,omitempty"`
	Error     string     `json:"error,omitempty"`
	Code      string     `json:"code,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

type connectionState struct {
	id      string
	userID  string
	history []chat.Turn
	logger  zerolog.Logger
}

func (s *connectionState) remember(turns ...chat.Turn) {
	s.history = append(s.history, turns...)
	if len(s.history) > maxHistoryTurns {
		s.history = append([]chat.Turn(nil), s.history[len(s.history)-maxHistoryTurns:]...)
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	state := &connectionState{
		id:     uuid.NewString(),
		userID: strings.TrimSpace(r.URL.Query().Get("userId")),
	}
	state.logger = log.With().Str("component", "ws").Str("conn_id", state.id).Logger()
	state.logger.Info().Str("user_id", state.userID).Msg("voice connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, state, outgoingMessage{Type: "connected", ConnID: state.id})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				state.logger.Warn().Err(err).Msg("websocket read error")
			}
			state.logger.Info().Int("turns", len(state.history)).Msg("voice connection closed")
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, conn, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		h.handleTextMessage(ctx, conn, state, msg)
	case "reset":
		state.history = nil
		h.send(conn, state, outgoingMessage{Type: "reset"})
	default:
		h.sendError(conn, state, "INVALID_INPUT", "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	if userID := strings.TrimSpace(msg.UserID); userID != "" {
		state.userID = userID
	}

	// 先推送情绪，客户端可以在等待回复时切换动画
	h.send(conn, state, outgoingMessage{Type: "mood", Mood: mood.Classify(msg.Message)})

	result, err := h.pipeline.Dispatch(ctx, dispatch.Request{
		UserID:     state.userID,
		Message:    msg.Message,
		PriorTurns: state.history,
	})
	if err != nil {
		kind := errs.KindOf(err)
		h.sendError(conn, state, errs.Code(kind), err.Error())
		return
	}

	state.remember(
		chat.Turn{Role: chat.RoleUser, Content: msg.Message},
		chat.Turn{Role: chat.RoleAssistant, Content: result.Text},
	)

	h.send(conn, state, outgoingMessage{
		Type:     "reply",
		Response: result.Text,
		Status:   result.Status(),
		TierUsed: string(result.Tier),
		AgentID:  result.AgentID,
		Mood:     result.Mood,
	})
}

func (h *WebSocketHandler) send(conn *websocket.Conn, state *connectionState, msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		state.logger.Warn().Err(err).Str("type", msg.Type).Msg("websocket write failed")
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, state *connectionState, code, message string) {
	h.send(conn, state, outgoingMessage{Type: "error", Code: code, Error: message})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
