package handlers

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/anonto42/lofi-room/backend/internal/media"
	"github.com/anonto42/lofi-room/backend/internal/middleware"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts and likes
type PostHandler struct {
	engine *feed.Engine

	mu      sync.Mutex
	sending map[string]bool // author uid -> submission in flight
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(engine *feed.Engine) *PostHandler {
	return &PostHandler{engine: engine, sending: make(map[string]bool)}
}

// claimDraft marks the author's composer as sending. Every request builds a
// fresh draft, so the in-flight guard is held per author here.
func (h *PostHandler) claimDraft(uid string) (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sending[uid] {
		return nil, false
	}
	h.sending[uid] = true
	return func() {
		h.mu.Lock()
		delete(h.sending, uid)
		h.mu.Unlock()
	}, true
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts)
	g.GET("/posts/:id", h.GetPost)
	g.POST("/posts", h.CreatePost, middleware.RequireIdentity)
	g.DELETE("/posts/:id", h.DeletePost, middleware.RequireIdentity)
	g.POST("/posts/:id/like", h.ToggleLike, middleware.RequireIdentity)
}

func viewerID(c echo.Context) string {
	if id := middleware.CurrentIdentity(c); id != nil {
		return id.UID
	}
	return ""
}

func postResponses(posts []models.Post, viewer string) []models.PostResponse {
	out := make([]models.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, models.NewPostResponse(p, viewer))
	}
	return out
}

// GetPosts lists the global feed, or one wall with ?scope=<uid>, optionally
// filtered with ?kind=all|image|audio
func (h *PostHandler) GetPosts(c echo.Context) error {
	scope := feed.Wall(c.QueryParam("scope"))
	kind := c.QueryParam("kind")
	switch kind {
	case "", "all", string(models.MediaImage), string(models.MediaAudio):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be all, image or audio")
	}

	posts, err := h.engine.Snapshot(c.Request().Context(), scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, postResponses(feed.FilterByKind(posts, kind), viewerID(c)))
}

// GetPost retrieves a single post
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.engine.Post(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, models.NewPostResponse(*post, viewerID(c)))
}

// CreatePost accepts multipart form fields text, ownerId and an optional file
func (h *PostHandler) CreatePost(c echo.Context) error {
	who := middleware.CurrentIdentity(c)
	release, ok := h.claimDraft(who.UID)
	if !ok {
		return toHTTPError(models.ErrConflict)
	}
	defer release()

	draft := &feed.Draft{
		Text:         c.FormValue("text"),
		OwnerScopeID: c.FormValue("ownerId"),
	}

	if fh, err := c.FormFile("file"); err == nil {
		if fh.Size > media.MaxFileSize {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
		}
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read file")
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, media.MaxFileSize+1))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read file")
		}
		file, err := media.NewFile(fh.Filename, data)
		if err != nil {
			return toHTTPError(err)
		}
		draft.File = file
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}

	post, err := h.engine.CreatePost(c.Request().Context(), who, draft)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, models.NewPostResponse(*post, post.AuthorID))
}

// DeletePost deletes a post owned by the caller
func (h *PostHandler) DeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.engine.Post(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.engine.DeletePost(ctx, middleware.CurrentIdentity(c), post); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleLike likes or unlikes a post
func (h *PostHandler) ToggleLike(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.engine.Post(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	liked, err := h.engine.ToggleLike(ctx, middleware.CurrentIdentity(c), post)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"postId": post.ID, "liked": liked})
}
