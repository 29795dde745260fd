package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// RoomSettings is the persisted state of a user's room
type RoomSettings struct {
	IsLightsOn        bool `json:"isLightsOn" firestore:"isLightsOn" bson:"isLightsOn"`
	CurrentSceneIndex int  `json:"currentSceneIndex" firestore:"currentSceneIndex" bson:"currentSceneIndex"`
}

func DefaultRoomSettings() RoomSettings {
	return RoomSettings{IsLightsOn: true, CurrentSceneIndex: 0}
}

// UserProfile is the users/{uid} document
type UserProfile struct {
	UID          string        `json:"uid" firestore:"uid" bson:"uid"`
	DisplayName  string        `json:"displayName" firestore:"displayName" bson:"displayName"`
	PhotoURL     string        `json:"photoURL" firestore:"photoURL" bson:"photoURL"`
	Followers    []string      `json:"followers" firestore:"followers" bson:"followers"`
	RoomSettings *RoomSettings `json:"roomSettings,omitempty" firestore:"roomSettings,omitempty" bson:"roomSettings,omitempty"`
	CreatedAt    time.Time     `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}

// IsFollowedBy reports whether uid is in the follower set.
func (u *UserProfile) IsFollowedBy(uid string) bool {
	for _, id := range u.Followers {
		if id == uid {
			return true
		}
	}
	return false
}

// Settings returns the stored room settings or the defaults.
func (u *UserProfile) Settings() RoomSettings {
	if u.RoomSettings == nil {
		return DefaultRoomSettings()
	}
	return *u.RoomSettings
}

// ProfileResponse is a profile as seen by one viewer
type ProfileResponse struct {
	UID            string `json:"uid"`
	DisplayName    string `json:"displayName"`
	PhotoURL       string `json:"photoURL"`
	FollowersCount int    `json:"followersCount"`
	IsFollowing    bool   `json:"isFollowing"`
	IsOwner        bool   `json:"isOwner"`
}

func NewProfileResponse(u *UserProfile, viewerID string) ProfileResponse {
	return ProfileResponse{
		UID:            u.UID,
		DisplayName:    u.DisplayName,
		PhotoURL:       u.PhotoURL,
		FollowersCount: len(u.Followers),
		IsFollowing:    viewerID != "" && u.IsFollowedBy(viewerID),
		IsOwner:        viewerID == u.UID,
	}
}

type SignInRequest struct {
	IDToken string `json:"idToken"`
}

type UpdateRoomSettingsRequest struct {
	IsLightsOn        *bool `json:"isLightsOn" validate:"required"`
	CurrentSceneIndex *int  `json:"currentSceneIndex" validate:"required,min=0"`
}

// SessionClaims are the claims of a session token issued after sign-in
type SessionClaims struct {
	UID     string `json:"uid"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}
