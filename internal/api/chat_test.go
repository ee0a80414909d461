package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/noTilt3/SMARKETECH/internal/auth"
	"github.com/noTilt3/SMARKETECH/internal/chat"
	"github.com/noTilt3/SMARKETECH/internal/middleware"
	"github.com/noTilt3/SMARKETECH/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Shared in-memory state for the contact and message fakes.
type fakeChatState struct {
	users    *fakeUserStore
	contacts []models.Contact
	messages []models.Message
	nextMsg  int64
}

type fakeContactStore struct{ s *fakeChatState }

func (f *fakeContactStore) Add(_ context.Context, ownerID, contactID int64) error {
	for _, c := range f.s.contacts {
		if c.OwnerUserID == ownerID && c.ContactUserID == contactID {
			return nil
		}
	}
	f.s.contacts = append(f.s.contacts, models.Contact{
		OwnerUserID: ownerID, ContactUserID: contactID, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeContactStore) ListByOwner(_ context.Context, ownerID int64) ([]models.ContactSummary, error) {
	out := make([]models.ContactSummary, 0)
	for i := len(f.s.contacts) - 1; i >= 0; i-- {
		c := f.s.contacts[i]
		if c.OwnerUserID != ownerID {
			continue
		}
		u := f.s.users.users[c.ContactUserID]
		out = append(out, models.ContactSummary{ID: u.ID, Nome: u.Nome, Email: u.Email})
	}
	return out, nil
}

type fakeMessageStore struct{ s *fakeChatState }

func (f *fakeMessageStore) Create(_ context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	f.s.nextMsg++
	m := models.Message{
		ID: f.s.nextMsg, SenderID: senderID, ReceiverID: receiverID,
		Content: content, CreatedAt: time.Now(),
	}
	f.s.messages = append(f.s.messages, m)
	return &m, nil
}

func (f *fakeMessageStore) ListConversation(_ context.Context, userID, otherUserID int64) ([]models.ConversationMessage, error) {
	out := make([]models.ConversationMessage, 0)
	for _, m := range f.s.messages {
		if !((m.SenderID == userID && m.ReceiverID == otherUserID) ||
			(m.SenderID == otherUserID && m.ReceiverID == userID)) {
			continue
		}
		s, r := f.s.users.users[m.SenderID], f.s.users.users[m.ReceiverID]
		out = append(out, models.ConversationMessage{
			ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt,
			Sender:   models.UserRef{ID: s.ID, Email: s.Email},
			Receiver: models.UserRef{ID: r.ID, Email: r.Email},
		})
	}
	return out, nil
}

func (f *fakeMessageStore) DistinctSenders(_ context.Context, receiverID int64) ([]models.ContactSummary, error) {
	seen := make(map[int64]bool)
	out := make([]models.ContactSummary, 0)
	for _, m := range f.s.messages {
		if m.ReceiverID != receiverID || m.SenderID == receiverID || seen[m.SenderID] {
			continue
		}
		seen[m.SenderID] = true
		u := f.s.users.users[m.SenderID]
		out = append(out, models.ContactSummary{ID: u.ID, Nome: u.Nome, Email: u.Email})
	}
	return out, nil
}

func (f *fakeMessageStore) LatestReceived(_ context.Context, receiverID int64) (*time.Time, error) {
	var latest *time.Time
	for _, m := range f.s.messages {
		if m.ReceiverID != receiverID {
			continue
		}
		if latest == nil || m.CreatedAt.After(*latest) {
			ts := m.CreatedAt
			latest = &ts
		}
	}
	return latest, nil
}

const chatTestSecret = "chat-test-secret"

// chatTestApp wires the chat routes the way main does, over fakes.
type chatTestApp struct {
	router   *gin.Engine
	registry *chat.Registry
	state    *fakeChatState
}

func newChatTestApp(t *testing.T) *chatTestApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newFakeUserStore()
	state := &fakeChatState{users: users}
	logger := zap.NewNop()

	registry := chat.NewRegistry(logger)
	publisher := chat.NewPublisher(registry, logger)
	service := chat.NewService(users, &fakeContactStore{state}, &fakeMessageStore{state}, publisher, nil, logger)

	chatHandler := NewChatHandler(service, logger)
	streamHandler := NewStreamHandler(registry, chatTestSecret, logger)

	r := gin.New()
	r.GET("/api/chat/stream", streamHandler.Stream)
	grp := r.Group("/api/chat")
	grp.Use(middleware.AuthMiddleware(chatTestSecret))
	grp.GET("/contatos", chatHandler.ListContacts)
	grp.POST("/contatos", chatHandler.AddContact)
	grp.GET("/mensagens", chatHandler.ListMessages)
	grp.POST("/mensagens", chatHandler.SendMessage)
	grp.GET("/latest", chatHandler.Latest)

	return &chatTestApp{router: r, registry: registry, state: state}
}

func (a *chatTestApp) seedUser(t *testing.T, nome, email string) *models.User {
	t.Helper()
	u, err := a.state.users.Create(context.Background(), nome, email, "x")
	require.NoError(t, err)
	return u
}

func (a *chatTestApp) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(u.ID, u.Email, chatTestSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *chatTestApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestChatEndpoints_RequireAuth(t *testing.T) {
	app := newChatTestApp(t)

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/contatos", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddContact_ErrorStatuses(t *testing.T) {
	app := newChatTestApp(t)
	ana := app.seedUser(t, "Ana", "a@x.com")
	tok := app.token(t, ana)

	// Unknown email.
	w := app.do(t, http.MethodPost, "/api/chat/contatos", tok, gin.H{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Self-add.
	w = app.do(t, http.MethodPost, "/api/chat/contatos", tok, gin.H{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessages_RequiresUserID(t *testing.T) {
	app := newChatTestApp(t)
	ana := app.seedUser(t, "Ana", "a@x.com")

	w := app.do(t, http.MethodGet, "/api/chat/mensagens", app.token(t, ana), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// The end-to-end scenario: Ana adds Bruno by email, messages him while he
// has a stream open, and both the HTTP reads and the live push line up.
func TestChatScenario_AddContactSendAndStream(t *testing.T) {
	app := newChatTestApp(t)
	ana := app.seedUser(t, "Ana", "a@x.com")
	bruno := app.seedUser(t, "Bruno", "b@x.com")
	anaTok := app.token(t, ana)
	brunoTok := app.token(t, bruno)

	// Bruno opens his stream.
	streamCtx, closeStream := context.WithCancel(context.Background())
	streamReq := httptest.NewRequest(http.MethodGet,
		"/api/chat/stream?token="+brunoTok, nil).WithContext(streamCtx)
	streamRec := httptest.NewRecorder()
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		app.router.ServeHTTP(streamRec, streamReq)
	}()
	require.Eventually(t, func() bool {
		return app.registry.Connections(bruno.ID) == 1
	}, time.Second, 10*time.Millisecond)

	// Ana adds Bruno by email.
	w := app.do(t, http.MethodPost, "/api/chat/contatos", anaTok, gin.H{"email": "b@x.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var added models.ContactSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	assert.Equal(t, bruno.ID, added.ID)
	assert.Equal(t, "b@x.com", added.Email)

	// Ana sends Bruno a message.
	w = app.do(t, http.MethodPost, "/api/chat/mensagens", anaTok, gin.H{"toUserId": bruno.ID, "content": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sent struct {
		OK bool  `json:"ok"`
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.True(t, sent.OK)
	assert.Positive(t, sent.ID)

	// The conversation shows it from Ana's side.
	w = app.do(t, http.MethodGet, "/api/chat/mensagens?userId=2", anaTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var conv []models.ConversationMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	require.Len(t, conv, 1)
	assert.Equal(t, "hi", conv[0].Content)
	assert.Equal(t, ana.ID, conv[0].Sender.ID)

	// Bruno's latest-inbound probe sees activity.
	w = app.do(t, http.MethodGet, "/api/chat/latest", brunoTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var latest struct {
		LatestTS *time.Time `json:"latestTs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	require.NotNil(t, latest.LatestTS)

	// Bruno's stream carried the push.
	time.Sleep(100 * time.Millisecond)
	closeStream()
	select {
	case <-streamDone:
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
	body := streamRec.Body.String()
	assert.Contains(t, body, "stream:ready")
	assert.Contains(t, body, chat.EventMessageNew)
	assert.Contains(t, body, `"senderId":1`)
	assert.Equal(t, 0, app.registry.Users())
}
