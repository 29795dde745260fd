package models

import "time"

// Comment lives in the posts/{postId}/comments sub-collection
type Comment struct {
	ID           string    `json:"id" firestore:"-" bson:"-"`
	PostID       string    `json:"postId" firestore:"-" bson:"-"`
	AuthorID     string    `json:"authorId" firestore:"authorId" bson:"authorId"`
	AuthorName   string    `json:"authorName" firestore:"authorName" bson:"authorName"`
	AuthorAvatar string    `json:"authorAvatar" firestore:"authorAvatar" bson:"authorAvatar"`
	Text         string    `json:"text" firestore:"text" bson:"text"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}
