package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRealtime(t *testing.T, s *testServer, token string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/realtime"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads frames until one of type want arrives.
func readFrame(t *testing.T, conn *websocket.Conn, want string) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
	}
}

// readRawFrame returns the wire bytes of the next frame of type want.
func readRawFrame(t *testing.T, conn *websocket.Conn, want string) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var head struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &head))
		if head.Type == want {
			return string(raw)
		}
	}
}

func TestRealtime_FeedAndThreadSnapshots(t *testing.T) {
	s := setupServer(t)
	conn := dialRealtime(t, s, "tok-bob")

	hello := readFrame(t, conn, "identity")
	require.NotNil(t, hello.Identity)
	assert.Equal(t, "bob", hello.Identity.UID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	initial := readFrame(t, conn, "posts")
	assert.Empty(t, initial.Posts)

	p, err := s.engine.CreatePost(context.Background(), alice, &feed.Draft{Text: "live"})
	require.NoError(t, err)

	update := readFrame(t, conn, "posts")
	require.Len(t, update.Posts, 1)
	assert.Equal(t, "live", update.Posts[0].Text)
	assert.False(t, update.Posts[0].IsLiked)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "open_thread", PostID: p.ID}))
	readFrame(t, conn, "comments")

	_, err = s.engine.AddComment(context.Background(), carol, p.ID, "hello from carol")
	require.NoError(t, err)
	thread := readFrame(t, conn, "comments")
	assert.Equal(t, p.ID, thread.PostID)
	require.Len(t, thread.Comments, 1)
	assert.Equal(t, "hello from carol", thread.Comments[0].Text)
}

func TestRealtime_ScopeSwitch(t *testing.T) {
	s := setupServer(t)
	_, err := s.engine.CreatePost(context.Background(), alice, &feed.Draft{Text: "alice wall"})
	require.NoError(t, err)
	_, err = s.engine.CreatePost(context.Background(), bob, &feed.Draft{Text: "bob wall"})
	require.NoError(t, err)

	conn := dialRealtime(t, s, "")
	readFrame(t, conn, "identity")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Scope: "alice"}))
	msg := readFrame(t, conn, "posts")
	assert.Equal(t, "alice", msg.Scope)
	require.Len(t, msg.Posts, 1)
	assert.Equal(t, "alice wall", msg.Posts[0].Text)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Scope: "bob"}))
	msg = readFrame(t, conn, "posts")
	assert.Equal(t, "bob", msg.Scope)
	require.Len(t, msg.Posts, 1)
	assert.Equal(t, "bob wall", msg.Posts[0].Text)
}

func TestRealtime_SessionChanges(t *testing.T) {
	s := setupServer(t)
	conn := dialRealtime(t, s, "")

	assert.Nil(t, readFrame(t, conn, "identity").Identity)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "authenticate", Token: "tok-nobody"}))
	assert.Equal(t, "invalid session", readFrame(t, conn, "error").Error)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "authenticate", Token: "tok-carol"}))
	id := readFrame(t, conn, "identity").Identity
	require.NotNil(t, id)
	assert.Equal(t, "carol", id.UID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "sign_out"}))
	assert.Nil(t, readFrame(t, conn, "identity").Identity)

	_, err := s.provider.Authenticate(context.Background(), "tok-carol")
	assert.Error(t, err)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "dance"}))
	assert.Equal(t, "unknown message type", readFrame(t, conn, "error").Error)
}

func TestRealtime_RejectsBadToken(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/realtime?token=forged"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtime_EmptySnapshotsCarryEmptyLists(t *testing.T) {
	s := setupServer(t)
	conn := dialRealtime(t, s, "")
	assert.NotContains(t, readRawFrame(t, conn, "identity"), `"posts"`)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	assert.Contains(t, readRawFrame(t, conn, "posts"), `"posts":[]`)

	p, err := s.engine.CreatePost(context.Background(), alice, &feed.Draft{Text: "soon gone"})
	require.NoError(t, err)
	assert.Contains(t, readRawFrame(t, conn, "posts"), "soon gone")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "open_thread", PostID: p.ID}))
	assert.Contains(t, readRawFrame(t, conn, "comments"), `"comments":[]`)

	require.NoError(t, s.engine.DeletePost(context.Background(), alice, p))
	assert.Contains(t, readRawFrame(t, conn, "posts"), `"posts":[]`)
}

func TestRealtime_SessionChangeResendsFeed(t *testing.T) {
	s := setupServer(t)
	p, err := s.engine.CreatePost(context.Background(), alice, &feed.Draft{Text: "liked by bob"})
	require.NoError(t, err)
	_, err = s.engine.ToggleLike(context.Background(), bob, p)
	require.NoError(t, err)

	conn := dialRealtime(t, s, "")
	readFrame(t, conn, "identity")
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	msg := readFrame(t, conn, "posts")
	require.Len(t, msg.Posts, 1)
	assert.False(t, msg.Posts[0].IsLiked)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "authenticate", Token: "tok-bob"}))
	readFrame(t, conn, "identity")
	msg = readFrame(t, conn, "posts")
	require.Len(t, msg.Posts, 1)
	assert.True(t, msg.Posts[0].IsLiked)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "sign_out"}))
	readFrame(t, conn, "identity")
	msg = readFrame(t, conn, "posts")
	require.Len(t, msg.Posts, 1)
	assert.False(t, msg.Posts[0].IsLiked)
}

func TestRealtime_LikeFromFeed(t *testing.T) {
	s := setupServer(t)
	p, err := s.engine.CreatePost(context.Background(), alice, &feed.Draft{Text: "like me"})
	require.NoError(t, err)

	conn := dialRealtime(t, s, "tok-carol")
	readFrame(t, conn, "identity")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "like", PostID: p.ID}))
	assert.Equal(t, "not subscribed", readFrame(t, conn, "error").Error)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe"}))
	readFrame(t, conn, "posts")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "like", PostID: p.ID}))
	msg := readFrame(t, conn, "posts")
	require.Len(t, msg.Posts, 1)
	assert.True(t, msg.Posts[0].IsLiked)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "like", PostID: "missing"}))
	assert.Equal(t, "post not in feed", readFrame(t, conn, "error").Error)
}
