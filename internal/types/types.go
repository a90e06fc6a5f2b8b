package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id                 int           `json:"id"`
	ExternalId         string        `json:"external_id"`
	IsSupportRoom      bool          `json:"is_support_room"`
	LastMessageSummary string        `json:"last_message_summary,omitempty"`
	LastActivityAt     time.Time     `json:"last_activity_at,omitempty"`
	Participants       []Participant `json:"participants,omitempty"`
	CreatedAt          time.Time     `json:"created_at,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at,omitempty"`
}

type Participant struct {
	UserId      int       `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	ServesFor   *int      `json:"serves_for,omitempty"`
	IsSupporter bool      `json:"is_supporter"`
	IsLeave     bool      `json:"is_leave"`
	IsSeen      bool      `json:"is_seen"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	RoomId    int       `json:"room_id"`
	UserId    int       `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
