package models

import "time"

// Worry is an anonymous "let it go" note
type Worry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UID       string    `json:"uid" gorm:"index"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateWorryRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}
