package feed

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/media"
	"github.com/anonto42/lofi-room/backend/internal/metrics"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/store"
	"github.com/sirupsen/logrus"
)

// Draft is a post being composed. OwnerScopeID targets another user's
// wall; empty means the author's own.
type Draft struct {
	Text         string
	File         *media.File
	OwnerScopeID string

	sending atomic.Bool
}

func (d *Draft) reset() {
	d.Text = ""
	d.File = nil
}

// CreatePost runs moderation, upload and the store write for a draft.
// The draft is cleared only on success.
func (e *Engine) CreatePost(ctx context.Context, who *identity.Identity, d *Draft) (*models.Post, error) {
	if who == nil {
		return nil, models.ErrUnauthenticated
	}
	if !d.sending.CompareAndSwap(false, true) {
		return nil, models.ErrConflict
	}
	defer d.sending.Store(false)

	text := strings.TrimSpace(d.Text)
	if text == "" && d.File == nil {
		return nil, models.ErrEmptyPost
	}

	var attachment *models.Media
	if d.File != nil {
		if d.File.Kind == models.MediaImage {
			if err := e.moderate(ctx, d.File); err != nil {
				return nil, err
			}
		}

		if e.uploader == nil {
			return nil, models.Wrap(models.ErrUploadFailed, errors.New("no media storage configured"))
		}
		url, err := e.uploader.Upload(ctx, d.File)
		if err != nil {
			e.log.WithError(err).WithField("uid", who.UID).Warn("media upload failed")
			return nil, models.Wrap(models.ErrUploadFailed, err)
		}
		attachment = &models.Media{URL: url, Kind: d.File.Kind}
	}

	if text == "" && attachment == nil {
		return nil, models.ErrEmptyPost
	}

	owner := d.OwnerScopeID
	if owner == "" {
		owner = who.UID
	}

	data := map[string]interface{}{
		"authorId":     who.UID,
		"authorName":   who.DisplayName,
		"authorAvatar": who.PhotoURL,
		"ownerScopeId": owner,
		"text":         text,
		"likes":        []string{},
		"createdAt":    store.ServerTimestamp,
	}
	if attachment != nil {
		data["media"] = map[string]interface{}{"url": attachment.URL, "kind": string(attachment.Kind)}
	}

	id, err := e.store.Add(ctx, postsCollection, data)
	if err != nil {
		if models.CodeOf(err) == "" {
			err = models.Wrap(models.ErrWriteFailed, err)
		}
		return nil, err
	}

	kind := "text"
	if attachment != nil {
		kind = string(attachment.Kind)
	}
	metrics.PostsCreated.WithLabelValues(kind).Inc()
	e.log.WithFields(logrus.Fields{"post_id": id, "uid": who.UID, "kind": kind}).Info("post created")
	e.publish(ctx, events.Event{Type: events.PostCreated, ActorID: who.UID, TargetID: owner, PostID: id})

	d.reset()
	return &models.Post{
		ID:           id,
		AuthorID:     who.UID,
		AuthorName:   who.DisplayName,
		AuthorAvatar: who.PhotoURL,
		OwnerScopeID: owner,
		Text:         text,
		Media:        attachment,
		Likes:        []string{},
	}, nil
}

// moderate rejects unsafe images. A failing checker lets the image through.
func (e *Engine) moderate(ctx context.Context, f *media.File) error {
	if e.moderator == nil {
		return nil
	}
	verdict, err := e.moderator.Check(ctx, f.Data, f.ContentType)
	if err != nil {
		metrics.ModerationFailOpen.Inc()
		e.log.WithError(err).Warn("moderation unavailable, accepting image")
		return nil
	}
	if !verdict.Safe {
		metrics.ModerationRejected.Inc()
		return models.ErrContentRejected
	}
	return nil
}

// CanDeletePost reports whether who may delete p: only its author.
func CanDeletePost(who *identity.Identity, p *models.Post) bool {
	return who != nil && p != nil && who.UID == p.AuthorID
}

// DeletePost removes a post. Its comments are left in place.
func (e *Engine) DeletePost(ctx context.Context, who *identity.Identity, p *models.Post) error {
	if who == nil {
		return models.ErrUnauthenticated
	}
	if !CanDeletePost(who, p) {
		return models.ErrForbidden
	}
	if err := e.store.Delete(ctx, store.Doc(postsCollection, p.ID)); err != nil {
		if models.CodeOf(err) == "" {
			err = models.Wrap(models.ErrWriteFailed, err)
		}
		return err
	}
	e.log.WithField("post_id", p.ID).Info("post deleted")
	return nil
}
