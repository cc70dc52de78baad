package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"yalla-chat/auth"
	"yalla-chat/contract"
	"yalla-chat/domain"
	apperrors "yalla-chat/errors"
	"yalla-chat/presence"
)

var testKey = []byte("gateway-test-key")

// fakeChatService records commands and replies with canned results.
type fakeChatService struct {
	sendErr  error
	lastSend domain.SendMessageCommand
	lastRead domain.MarkReadCommand

	conversations []contract.ConversationWithPreview
	messages      []domain.Message
}

func (f *fakeChatService) SendMessage(_ context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	f.lastSend = cmd
	if f.sendErr != nil {
		return domain.Message{}, f.sendErr
	}
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: "conv-1",
		SenderID:       cmd.SenderID,
		Content:        cmd.Content,
		CreatedAt:      cmd.CreatedAt,
	}, nil
}

func (f *fakeChatService) StartConversation(_ context.Context, cmd domain.StartConversationCommand) (domain.Conversation, error) {
	pair, err := domain.NewParticipantPair(cmd.RequesterID, cmd.RecipientID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{ID: "conv-1", Pair: pair, Subject: cmd.Subject}, nil
}

func (f *fakeChatService) MarkRead(_ context.Context, cmd domain.MarkReadCommand) (int, error) {
	f.lastRead = cmd
	return 1, nil
}

func (f *fakeChatService) ListConversations(_ context.Context, _ domain.ListConversationsCommand) ([]contract.ConversationWithPreview, error) {
	return f.conversations, nil
}

func (f *fakeChatService) ListMessages(_ context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, *string, error) {
	if cmd.ConversationID == "missing" {
		return nil, nil, apperrors.ErrConversationNotFound
	}
	return f.messages, nil, nil
}

func newTestServer(t *testing.T, chat *fakeChatService) (*httptest.Server, *presence.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := presence.NewRegistry()
	handler := NewHandler(slog.Default(), auth.NewVerifier(testKey), registry, chat, 16)

	engine := gin.New()
	handler.RegisterRoutes(engine)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return server, registry
}

func wsURL(server *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
}

func mustToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(testKey, userID, nil, time.Minute)
	require.NoError(t, err)
	return token
}

func readServerEvent(t *testing.T, ws *websocket.Conn) serverEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var evt serverEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestServeWS_RejectsInvalidToken(t *testing.T) {
	r := require.New(t)

	// Given a running gateway
	server, registry := newTestServer(t, &fakeChatService{})

	// When dialing with a garbage token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "not-a-token"), nil)

	// Then the handshake is refused before any registration happens
	r.Error(err)
	r.Equal(http.StatusUnauthorized, resp.StatusCode)
	r.False(registry.Online("alice"))
}

func TestServeWS_RegistersAndUnregistersPresence(t *testing.T) {
	r := require.New(t)

	server, registry := newTestServer(t, &fakeChatService{})

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, mustToken(t, "alice")), nil)
	r.NoError(err)

	r.Eventually(func() bool { return registry.Online("alice") },
		2*time.Second, 10*time.Millisecond)

	r.NoError(ws.Close())
	r.Eventually(func() bool { return !registry.Online("alice") },
		2*time.Second, 10*time.Millisecond)
}

func TestServeWS_SendMessageIsAcknowledged(t *testing.T) {
	r := require.New(t)

	chat := &fakeChatService{}
	server, _ := newTestServer(t, chat)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, mustToken(t, "alice")), nil)
	r.NoError(err)
	defer ws.Close()

	// When the client pushes a send-message event
	r.NoError(ws.WriteJSON(ClientEvent{
		Type:           "send-message",
		ConversationID: "conv-1",
		Content:        "hello there",
	}))

	// Then the originating socket receives the acknowledgment
	evt := readServerEvent(t, ws)
	r.Equal("message-ack", evt.Type)
	r.NotNil(evt.Message)
	r.Equal("hello there", evt.Message.Content)
	r.Equal("alice", chat.lastSend.SenderID)
}

func TestServeWS_ServiceErrorGoesToOriginatingConnectionOnly(t *testing.T) {
	r := require.New(t)

	chat := &fakeChatService{sendErr: apperrors.ErrNotParticipant}
	server, _ := newTestServer(t, chat)

	alice, _, err := websocket.DefaultDialer.Dial(wsURL(server, mustToken(t, "alice")), nil)
	r.NoError(err)
	defer alice.Close()

	bob, _, err := websocket.DefaultDialer.Dial(wsURL(server, mustToken(t, "bob")), nil)
	r.NoError(err)
	defer bob.Close()

	r.NoError(alice.WriteJSON(ClientEvent{
		Type:           "send-message",
		ConversationID: "conv-1",
		Content:        "hi",
	}))

	evt := readServerEvent(t, alice)
	r.Equal("error", evt.Type)
	r.NotNil(evt.Error)
	r.Contains(evt.Error.Message, "not a participant")

	// Bob's socket stays quiet.
	r.NoError(bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err = bob.ReadMessage()
	r.Error(err)
}

func TestServeWS_MalformedFrameReportsValidationError(t *testing.T) {
	r := require.New(t)

	server, _ := newTestServer(t, &fakeChatService{})

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, mustToken(t, "alice")), nil)
	r.NoError(err)
	defer ws.Close()

	r.NoError(ws.WriteMessage(websocket.TextMessage, []byte("{not json")))

	evt := readServerEvent(t, ws)
	r.Equal("error", evt.Type)
	r.NotNil(evt.Error)
	r.Contains(evt.Error.Message, "malformed event")

	// An unrecognized event type is reported the same way
	r.NoError(ws.WriteJSON(ClientEvent{Type: "join-room"}))
	evt = readServerEvent(t, ws)
	r.Equal("error", evt.Type)
	r.NotNil(evt.Error)
	r.Contains(evt.Error.Message, "malformed event")
}

func TestServeWS_MarkRead(t *testing.T) {
	r := require.New(t)

	chat := &fakeChatService{}
	server, _ := newTestServer(t, chat)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, mustToken(t, "bob")), nil)
	r.NoError(err)
	defer ws.Close()

	r.NoError(ws.WriteJSON(ClientEvent{Type: "mark-read", ConversationID: "conv-1"}))

	r.Eventually(func() bool {
		return chat.lastRead == domain.MarkReadCommand{ReaderID: "bob", ConversationID: "conv-1"}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestREST_RequiresBearerToken(t *testing.T) {
	r := require.New(t)

	server, _ := newTestServer(t, &fakeChatService{})

	resp, err := http.Get(server.URL + "/api/conversations")
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestREST_ListConversations(t *testing.T) {
	r := require.New(t)

	chat := &fakeChatService{
		conversations: []contract.ConversationWithPreview{
			{Conversation: domain.Conversation{ID: "conv-1"}, UnreadCount: 2},
		},
	}
	server, _ := newTestServer(t, chat)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/conversations", nil)
	r.NoError(err)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "alice"))

	resp, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Conversations []contract.ConversationWithPreview `json:"conversations"`
	}
	r.NoError(json.NewDecoder(resp.Body).Decode(&body))
	r.Len(body.Conversations, 1)
	r.Equal("conv-1", body.Conversations[0].Conversation.ID)
	r.Equal(2, body.Conversations[0].UnreadCount)
}

func TestREST_ListMessagesMapsDomainErrors(t *testing.T) {
	r := require.New(t)

	server, _ := newTestServer(t, &fakeChatService{})

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/conversations/missing/messages", nil)
	r.NoError(err)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "alice"))

	resp, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestREST_StartConversation(t *testing.T) {
	r := require.New(t)

	server, _ := newTestServer(t, &fakeChatService{})

	body := strings.NewReader(`{"recipientId":"bob","subject":{"kind":"listing","id":"lst-1"}}`)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/conversations", body)
	r.NoError(err)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, "alice"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	r.NoError(err)
	defer resp.Body.Close()
	r.Equal(http.StatusCreated, resp.StatusCode)

	var parsed struct {
		Conversation conversationPayload `json:"conversation"`
	}
	r.NoError(json.NewDecoder(resp.Body).Decode(&parsed))
	r.Equal("conv-1", parsed.Conversation.ID)
	r.ElementsMatch([]string{"alice", "bob"}, parsed.Conversation.Participants)
}
