package handlers

import (
	"net/http"

	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/anonto42/lofi-room/backend/internal/middleware"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	engine *feed.Engine
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(engine *feed.Engine) *CommentHandler {
	return &CommentHandler{engine: engine}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/posts/:id/comments", h.GetComments)
	g.POST("/posts/:id/comments", h.CreateComment, middleware.RequireIdentity)
	g.DELETE("/posts/:id/comments/:commentId", h.DeleteComment, middleware.RequireIdentity)
}

// GetComments lists a post's comments, oldest first
func (h *CommentHandler) GetComments(c echo.Context) error {
	comments, err := h.engine.Comments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, comments)
}

// CreateComment adds a comment to a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	post, err := h.engine.Post(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	comment, err := h.engine.AddComment(ctx, middleware.CurrentIdentity(c), post.ID, req.Text)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment; allowed for its author and the post author
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.engine.Post(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	comment, err := h.engine.Comment(ctx, post.ID, c.Param("commentId"))
	if err != nil {
		return toHTTPError(err)
	}
	if err := h.engine.DeleteComment(ctx, middleware.CurrentIdentity(c), post, comment); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
