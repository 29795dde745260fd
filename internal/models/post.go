package models

import "time"

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// Media is the uploaded attachment of a post
type Media struct {
	URL  string    `json:"url" firestore:"url" bson:"url"`
	Kind MediaKind `json:"kind" firestore:"kind" bson:"kind"`
}

// Post represents a feed post stored in the "posts" collection
type Post struct {
	ID           string    `json:"id" firestore:"-" bson:"-"`
	AuthorID     string    `json:"authorId" firestore:"authorId" bson:"authorId"`
	AuthorName   string    `json:"authorName" firestore:"authorName" bson:"authorName"`
	AuthorAvatar string    `json:"authorAvatar" firestore:"authorAvatar" bson:"authorAvatar"`
	OwnerScopeID string    `json:"ownerScopeId" firestore:"ownerScopeId" bson:"ownerScopeId"` // wall the post lives on
	Text         string    `json:"text" firestore:"text" bson:"text"`
	Media        *Media    `json:"media,omitempty" firestore:"media,omitempty" bson:"media,omitempty"`
	Likes        []string  `json:"likes" firestore:"likes" bson:"likes"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}

// HasLiked reports whether uid is in the post's like set.
func (p *Post) HasLiked(uid string) bool {
	for _, id := range p.Likes {
		if id == uid {
			return true
		}
	}
	return false
}

// Pending reports whether the store has not resolved createdAt yet.
func (p *Post) Pending() bool {
	return p.CreatedAt.IsZero()
}

// PostResponse is a post as seen by one viewer
type PostResponse struct {
	Post
	LikesCount int  `json:"likesCount"`
	IsLiked    bool `json:"isLiked"`
	Pending    bool `json:"pending"`
}

func NewPostResponse(p Post, viewerID string) PostResponse {
	return PostResponse{
		Post:       p,
		LikesCount: len(p.Likes),
		IsLiked:    viewerID != "" && p.HasLiked(viewerID),
		Pending:    p.Pending(),
	}
}
