package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"yalla-chat/auth"
	"yalla-chat/contract"
	"yalla-chat/domain"
	apperrors "yalla-chat/errors"
	"yalla-chat/services"
)

const userIDKey = "userID"

type Handler struct {
	log      *slog.Logger
	verifier auth.Verifier
	presence contract.IPresence
	chat     services.IChatService
	validate *validator.Validate
	upgrader websocket.Upgrader

	sendBufferSize int
}

func NewHandler(log *slog.Logger,
	verifier auth.Verifier,
	presence contract.IPresence,
	chat services.IChatService,
	sendBufferSize int) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		presence: presence,
		chat:     chat,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBufferSize: sendBufferSize,
	}
}

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/ws", h.serveWS)

	api := engine.Group("/api", h.authRequired)
	api.GET("/conversations", h.listConversations)
	api.GET("/conversations/:id/messages", h.listMessages)
	api.POST("/conversations", h.startConversation)
}

// serveWS upgrades the socket and pumps inbound client events into the
// chat service. Identity is verified before the connection is registered
// with presence; a bad token never reaches the registry.
func (h *Handler) serveWS(c *gin.Context) {
	claims, err := h.verifier.Verify(wsToken(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperrors.ErrInvalidToken.Error()})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := NewConnection(claims.UserID, ws, h.sendBufferSize)
	conn.Start()
	h.presence.Register(conn.UserID, conn.ID, NewSink(conn))
	h.log.Info("client connected",
		slog.String("user_id", conn.UserID),
		slog.String("connection_id", conn.ID))

	defer func() {
		h.presence.Unregister(conn.UserID, conn.ID)
		conn.Close(websocket.CloseNormalClosure, "")
		h.log.Info("client disconnected",
			slog.String("user_id", conn.UserID),
			slog.String("connection_id", conn.ID))
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := h.dispatch(c, conn, data); err != nil {
			_ = conn.Send(encodeError(err))
		}
	}
}

// dispatch handles one inbound frame. Errors are reported on the
// originating connection only; they never fan out to other sockets.
func (h *Handler) dispatch(c *gin.Context, conn *Connection, data []byte) error {
	var evt ClientEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("%w: malformed event", apperrors.ErrValidation)
	}
	if err := h.validate.Struct(evt); err != nil {
		return fmt.Errorf("%w: malformed event", apperrors.ErrValidation)
	}

	switch evt.Type {
	case "send-message":
		message, err := h.chat.SendMessage(c.Request.Context(), domain.SendMessageCommand{
			SenderID:       conn.UserID,
			ConversationID: evt.ConversationID,
			RecipientID:    evt.RecipientID,
			Subject:        evt.Subject,
			Content:        evt.Content,
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return conn.Send(encodeAck(message))
	case "mark-read":
		_, err := h.chat.MarkRead(c.Request.Context(), domain.MarkReadCommand{
			ReaderID:       conn.UserID,
			ConversationID: evt.ConversationID,
		})
		return err
	default:
		return fmt.Errorf("%w: unknown event type", apperrors.ErrValidation)
	}
}

// authRequired verifies the bearer token and stashes the caller's
// identity on the request context.
func (h *Handler) authRequired(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	claims, err := h.verifier.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperrors.ErrInvalidToken.Error()})
		return
	}
	c.Set(userIDKey, claims.UserID)
	c.Next()
}

func (h *Handler) listConversations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	conversations, err := h.chat.ListConversations(c.Request.Context(), domain.ListConversationsCommand{
		UserID: c.GetString(userIDKey),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *Handler) listMessages(c *gin.Context) {
	var cursor *string
	if raw := c.Query("cursor"); raw != "" {
		cursor = &raw
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, next, err := h.chat.ListMessages(c.Request.Context(), domain.ListMessagesCommand{
		UserID:         c.GetString(userIDKey),
		ConversationID: c.Param("id"),
		Cursor:         cursor,
		Limit:          limit,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "nextCursor": next})
}

type startConversationRequest struct {
	RecipientID string         `json:"recipientId"`
	Subject     domain.Subject `json:"subject"`
}

func (h *Handler) startConversation(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("%w: malformed body", apperrors.ErrValidation))
		return
	}

	conv, err := h.chat.StartConversation(c.Request.Context(), domain.StartConversationCommand{
		RequesterID: c.GetString(userIDKey),
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": toConversationPayload(conv)})
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	status := apperrors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// wsToken extracts the credential from the query string or, as a
// fallback, the Authorization header. Browsers cannot set headers on
// websocket handshakes, hence the query parameter.
func wsToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}
