package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/metrics"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// ClientMessage is a frame sent by the browser
type ClientMessage struct {
	Type   string `json:"type"`
	Scope  string `json:"scope,omitempty"`
	PostID string `json:"postId,omitempty"`
	Token  string `json:"token,omitempty"`
}

// ServerMessage is a frame pushed to the browser
type ServerMessage struct {
	Type     string                `json:"type"`
	Scope    string                `json:"scope,omitempty"`
	PostID   string                `json:"postId,omitempty"`
	Posts    []models.PostResponse `json:"posts,omitempty"`
	Comments []models.Comment      `json:"comments,omitempty"`
	Identity *identity.Identity    `json:"identity,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// MarshalJSON always writes the list of a "posts" or "comments" frame, so
// an empty snapshot arrives as [] and replaces the client's list.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	type frame ServerMessage
	out := struct {
		frame
		Posts    *[]models.PostResponse `json:"posts,omitempty"`
		Comments *[]models.Comment      `json:"comments,omitempty"`
	}{frame: frame(m)}

	switch m.Type {
	case "posts":
		posts := m.Posts
		if posts == nil {
			posts = []models.PostResponse{}
		}
		out.Posts = &posts
	case "comments":
		comments := m.Comments
		if comments == nil {
			comments = []models.Comment{}
		}
		out.Comments = &comments
	}
	return json.Marshal(out)
}

// RealtimeHandler streams feed and comment snapshots over a websocket
type RealtimeHandler struct {
	engine   *feed.Engine
	provider SessionProvider
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(engine *feed.Engine, provider SessionProvider, origins []string, log logrus.FieldLogger) *RealtimeHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &RealtimeHandler{
		engine:   engine,
		provider: provider,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// RegisterRealtimeRoutes registers the websocket endpoint
func (h *RealtimeHandler) RegisterRealtimeRoutes(g *echo.Group) {
	g.GET("/realtime", h.Serve)
}

// Serve upgrades the connection. A session token may be passed as ?token=.
func (h *RealtimeHandler) Serve(c echo.Context) error {
	var session *identity.Session
	if token := c.QueryParam("token"); token != "" {
		id, err := h.provider.Authenticate(c.Request().Context(), token)
		if err != nil {
			return toHTTPError(err)
		}
		session = identity.NewSession(id, token)
	} else {
		session = identity.NewSession(nil, "")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newRealtimeClient(h, conn, session)
	client.run()
	return nil
}

// realtimeClient owns one connection's feed and open threads.
type realtimeClient struct {
	h       *RealtimeHandler
	conn    *websocket.Conn
	session *identity.Session
	ctx     context.Context
	cancel  context.CancelFunc
	send    chan ServerMessage

	mu        sync.Mutex
	feed      *feed.Feed
	threads   map[string]*feed.Thread
	closeOnce sync.Once
}

func newRealtimeClient(h *RealtimeHandler, conn *websocket.Conn, session *identity.Session) *realtimeClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &realtimeClient{
		h:       h,
		conn:    conn,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan ServerMessage, sendBuffer),
		threads: make(map[string]*feed.Thread),
	}
}

func (rc *realtimeClient) run() {
	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	rc.session.Observe(func(id *identity.Identity) {
		rc.trySend(ServerMessage{Type: "identity", Identity: id})
		rc.resendFeed()
	})

	go rc.writePump()
	rc.trySend(ServerMessage{Type: "identity", Identity: rc.session.Current()})
	rc.readPump()
	rc.teardown()
}

// trySend queues a frame. A full buffer means the consumer is too slow and
// the connection is dropped.
func (rc *realtimeClient) trySend(msg ServerMessage) {
	select {
	case <-rc.ctx.Done():
	case rc.send <- msg:
	default:
		rc.h.log.Warn("realtime client too slow, closing connection")
		rc.cancel()
	}
}

func (rc *realtimeClient) viewer() string {
	if id := rc.session.Current(); id != nil {
		return id.UID
	}
	return ""
}

func (rc *realtimeClient) readPump() {
	rc.conn.SetReadLimit(maxMessageSize)
	_ = rc.conn.SetReadDeadline(time.Now().Add(pongWait))
	rc.conn.SetPongHandler(func(string) error {
		return rc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := rc.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rc.h.log.WithError(err).Debug("realtime connection closed")
			}
			return
		}
		if rc.ctx.Err() != nil {
			return
		}
		rc.handle(msg)
	}
}

func (rc *realtimeClient) handle(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		rc.subscribe(feed.Wall(msg.Scope))
	case "open_thread":
		rc.openThread(msg.PostID)
	case "close_thread":
		rc.closeThread(msg.PostID)
	case "like":
		rc.like(msg.PostID)
	case "authenticate":
		id, err := rc.h.provider.Authenticate(rc.ctx, msg.Token)
		if err != nil {
			rc.trySend(ServerMessage{Type: "error", Error: "invalid session"})
			return
		}
		rc.session.Set(id, msg.Token)
	case "sign_out":
		if token := rc.session.Token(); token != "" {
			if err := rc.h.provider.SignOut(rc.ctx, token); err != nil {
				rc.h.log.WithError(err).Warn("realtime sign-out failed")
			}
		}
		rc.session.Set(nil, "")
	default:
		rc.trySend(ServerMessage{Type: "error", Error: "unknown message type"})
	}
}

func (rc *realtimeClient) subscribe(scope feed.Scope) {
	rc.mu.Lock()
	current := rc.feed
	rc.mu.Unlock()

	if current != nil {
		if err := current.SetScope(scope); err != nil {
			rc.trySend(ServerMessage{Type: "error", Error: err.Error()})
		}
		return
	}

	f, err := rc.h.engine.Subscribe(rc.ctx, scope, func(s feed.Scope, posts []models.Post) {
		rc.trySend(ServerMessage{Type: "posts", Scope: s.OwnerID, Posts: postResponses(posts, rc.viewer())})
	})
	if err != nil {
		rc.trySend(ServerMessage{Type: "error", Error: err.Error()})
		return
	}
	rc.mu.Lock()
	rc.feed = f
	rc.mu.Unlock()
}

// resendFeed pushes the current snapshot again so isLiked follows the viewer.
func (rc *realtimeClient) resendFeed() {
	rc.mu.Lock()
	f := rc.feed
	rc.mu.Unlock()
	if f == nil {
		return
	}
	rc.trySend(ServerMessage{Type: "posts", Scope: f.Scope().OwnerID, Posts: postResponses(f.Posts(), rc.viewer())})
}

// like toggles the viewer's like on a post from the subscribed feed.
func (rc *realtimeClient) like(postID string) {
	rc.mu.Lock()
	f := rc.feed
	rc.mu.Unlock()
	if f == nil {
		rc.trySend(ServerMessage{Type: "error", PostID: postID, Error: "not subscribed"})
		return
	}
	post, ok := f.Find(postID)
	if !ok {
		rc.trySend(ServerMessage{Type: "error", PostID: postID, Error: "post not in feed"})
		return
	}
	if _, err := rc.h.engine.ToggleLike(rc.ctx, rc.session.Current(), &post); err != nil {
		rc.trySend(ServerMessage{Type: "error", PostID: postID, Error: err.Error()})
	}
}

func (rc *realtimeClient) openThread(postID string) {
	if postID == "" {
		return
	}
	rc.mu.Lock()
	_, open := rc.threads[postID]
	rc.mu.Unlock()
	if open {
		return
	}

	t, err := rc.h.engine.OpenThread(rc.ctx, postID, func(comments []models.Comment) {
		rc.trySend(ServerMessage{Type: "comments", PostID: postID, Comments: comments})
	})
	if err != nil {
		rc.trySend(ServerMessage{Type: "error", PostID: postID, Error: err.Error()})
		return
	}
	rc.mu.Lock()
	rc.threads[postID] = t
	rc.mu.Unlock()
}

func (rc *realtimeClient) closeThread(postID string) {
	rc.mu.Lock()
	t, ok := rc.threads[postID]
	delete(rc.threads, postID)
	rc.mu.Unlock()
	if ok {
		t.Close()
	}
}

func (rc *realtimeClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		rc.conn.Close()
	}()

	for {
		select {
		case <-rc.ctx.Done():
			_ = rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = rc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-rc.send:
			_ = rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(msg)
			if err != nil {
				rc.h.log.WithError(err).Error("failed to encode realtime frame")
				continue
			}
			if err := rc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				rc.cancel()
				return
			}
		case <-ticker.C:
			_ = rc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				rc.cancel()
				return
			}
		}
	}
}

// teardown releases every subscription held by the connection.
func (rc *realtimeClient) teardown() {
	rc.closeOnce.Do(func() {
		rc.mu.Lock()
		f := rc.feed
		threads := rc.threads
		rc.feed = nil
		rc.threads = map[string]*feed.Thread{}
		rc.mu.Unlock()

		if f != nil {
			f.Close()
		}
		for _, t := range threads {
			t.Close()
		}
		rc.cancel()
	})
}
