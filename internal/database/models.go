package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ChatRoom struct {
	Id                 int
	ExternalId         string
	IsSupportRoom      bool
	LastMessageSummary string
	LastActivityAt     time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Participants       []RoomParticipant
}

// RoomParticipant is one row per (room, user). For supporter rows the
// IsLeave/IsSeen pair encodes the departure state; ServesFor records
// the customer the supporter is attending to.
type RoomParticipant struct {
	RoomId      int
	UserId      int
	Username    string
	ServesFor   sql.NullInt64
	IsSupporter bool
	IsLeave     bool
	IsSeen      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ChatMessage struct {
	Id        int
	RoomId    int
	UserId    int
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	IsStaff      bool
}

type CreateRoomParams struct {
	ExternalId    string
	IsSupportRoom bool
}

// UpsertParticipantParams carries absolute flag values; the store writes
// them as-is on both the insert and the conflict-update path.
type UpsertParticipantParams struct {
	RoomId      int
	UserId      int
	ServesFor   sql.NullInt64
	IsSupporter bool
	IsLeave     bool
	IsSeen      bool
}

type UpdateParticipantFlagsParams struct {
	RoomId  int
	UserId  int
	IsLeave bool
	IsSeen  bool
}
