// Package router implements the support-session state machine: opening
// sessions, staff claim/release, forced escalation, and the computed
// pending queue. There is no stored queue and no background work; every
// view is derived from participant rows on demand.
package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/pawdesk/support-chat/internal/database"
	"github.com/pawdesk/support-chat/internal/presence"
	"github.com/pawdesk/support-chat/internal/stats"
	"github.com/pawdesk/support-chat/internal/types"
	"github.com/teris-io/shortid"
)

const (
	SessionsOpenedMetric           = "SessionsOpened"
	SessionsClaimedMetric          = "SessionsClaimed"
	SessionsReleasedMetric         = "SessionsReleased"
	SessionsEscalatedMetric        = "SessionsEscalated"
	AbandonmentsAcknowledgedMetric = "AbandonmentsAcknowledged"

	// gauge: supporter rows currently active across all rooms
	ActiveSupportersMetric = "ActiveSupporters"
)

type SupportRouter struct {
	log    *log.Logger
	db     database.ChatRepository
	stats  stats.StatsProvider
	events EventSink
	locks  roomLocks
}

func NewSupportRouter(logger *log.Logger, db database.ChatRepository, su stats.StatsProvider, events EventSink) *SupportRouter {
	for _, m := range []string{
		SessionsOpenedMetric,
		SessionsClaimedMetric,
		SessionsReleasedMetric,
		SessionsEscalatedMetric,
		AbandonmentsAcknowledgedMetric,
		ActiveSupportersMetric,
	} {
		su.RegisterMetric(m)
	}

	return &SupportRouter{
		log:    logger,
		db:     db,
		stats:  su,
		events: events,
	}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// supportRoom resolves an external room id to a support room.
func (sr *SupportRouter) supportRoom(roomId string) (database.ChatRoom, error) {
	room, err := sr.db.GetRoomByExternalId(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ChatRoom{}, ErrRoomNotFound
		}
		return database.ChatRoom{}, storageErr(err)
	}

	if !room.IsSupportRoom {
		return database.ChatRoom{}, ErrNotSupportRoom
	}

	return room, nil
}

// InitiateSupportSession opens a new support session for the customer.
// A customer with a still-open session gets ErrAlreadyActive rather
// than a second ticket.
func (sr *SupportRouter) InitiateSupportSession(ctx context.Context, customerId int) (types.Room, error) {
	_, err := sr.db.FindActiveSupportRoom(customerId)
	if err == nil {
		return types.Room{}, ErrAlreadyActive
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Room{}, storageErr(err)
	}

	sid, err := shortid.Generate()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := sr.db.CreateSupportRoom(sid, customerId)
	if err != nil {
		return types.Room{}, storageErr(err)
	}

	sr.stats.Incr(SessionsOpenedMetric)
	sr.events.SessionOpened(room.ExternalId, customerId)

	return roomToType(room), nil
}

// AssignStaff makes the staff member the (or an) active supporter of
// the room. Claiming is an upsert: a staff member who previously left
// the room gets their existing row flipped back to active, and a claim
// always counts as having seen the room. Concurrent claims both
// succeed; co-staffing is permitted.
func (sr *SupportRouter) AssignStaff(ctx context.Context, roomId string, staffId, customerId int) error {
	room, err := sr.supportRoom(roomId)
	if err != nil {
		return err
	}

	mu := sr.locks.forRoom(roomId)
	mu.Lock()
	defer mu.Unlock()

	var wasActive bool
	prev, err := sr.db.GetParticipant(room.Id, staffId)
	if err == nil {
		wasActive = prev.IsSupporter && !prev.IsLeave
	} else if !errors.Is(err, sql.ErrNoRows) {
		return storageErr(err)
	}

	_, err = sr.db.UpsertParticipant(database.UpsertParticipantParams{
		RoomId:      room.Id,
		UserId:      staffId,
		ServesFor:   sql.NullInt64{Int64: int64(customerId), Valid: true},
		IsSupporter: true,
		IsLeave:     false,
		IsSeen:      true,
	})
	if err != nil {
		return storageErr(err)
	}

	sr.stats.Incr(SessionsClaimedMetric)
	if !wasActive {
		sr.stats.Incr(ActiveSupportersMetric)
	}
	sr.events.SessionClaimed(roomId, staffId, customerId)

	return nil
}

// ReleaseStaff records a voluntary, orderly departure. IsSeen is left
// as-is: a calm handoff is surfaced through the pending queue, not the
// abandonment alarm.
func (sr *SupportRouter) ReleaseStaff(ctx context.Context, roomId string, staffId int) error {
	room, err := sr.supportRoom(roomId)
	if err != nil {
		return err
	}

	mu := sr.locks.forRoom(roomId)
	mu.Lock()
	defer mu.Unlock()

	p, err := sr.db.GetParticipant(room.Id, staffId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		return storageErr(err)
	}
	if !p.IsSupporter {
		return ErrParticipantNotFound
	}

	err = sr.db.UpdateParticipantFlags(database.UpdateParticipantFlagsParams{
		RoomId:  room.Id,
		UserId:  staffId,
		IsLeave: true,
		IsSeen:  p.IsSeen,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		return storageErr(err)
	}

	sr.stats.Incr(SessionsReleasedMetric)
	if !p.IsLeave {
		sr.stats.Decr(ActiveSupportersMetric)
	}
	sr.events.SessionReleased(roomId, staffId)

	return nil
}

// RequestNewSupporter forcibly marks every supporter in the room as
// departed and unacknowledged. This is the alarm path: the session
// needs attention again right now, regardless of what state the
// supporter rows were in.
func (sr *SupportRouter) RequestNewSupporter(ctx context.Context, roomId string) error {
	room, err := sr.supportRoom(roomId)
	if err != nil {
		return err
	}

	mu := sr.locks.forRoom(roomId)
	mu.Lock()
	defer mu.Unlock()

	deactivated, err := sr.db.MarkSupportersLeftUnseen(room.Id)
	if err != nil {
		return storageErr(err)
	}

	sr.stats.Incr(SessionsEscalatedMetric)
	for i := 0; i < deactivated; i++ {
		sr.stats.Decr(ActiveSupportersMetric)
	}
	sr.events.SessionEscalated(roomId)

	return nil
}

// AcknowledgeAbandonment silences the alarm for one supporter's
// departure without claiming the room.
func (sr *SupportRouter) AcknowledgeAbandonment(ctx context.Context, roomId string, staffId int) error {
	room, err := sr.supportRoom(roomId)
	if err != nil {
		return err
	}

	mu := sr.locks.forRoom(roomId)
	mu.Lock()
	defer mu.Unlock()

	p, err := sr.db.GetParticipant(room.Id, staffId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		return storageErr(err)
	}
	if !p.IsSupporter {
		return ErrParticipantNotFound
	}

	err = sr.db.UpdateParticipantFlags(database.UpdateParticipantFlagsParams{
		RoomId:  room.Id,
		UserId:  staffId,
		IsLeave: p.IsLeave,
		IsSeen:  true,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrParticipantNotFound
		}
		return storageErr(err)
	}

	sr.stats.Incr(AbandonmentsAcknowledgedMetric)
	sr.events.AbandonmentAcknowledged(roomId, staffId)

	return nil
}

// ListPendingSupportRooms returns every support room with no active
// supporter, oldest activity first. The queue is recomputed from
// participant rows on every call; nothing is maintained separately.
func (sr *SupportRouter) ListPendingSupportRooms(ctx context.Context) ([]types.Room, error) {
	rooms, err := sr.db.ListSupportRooms()
	if err != nil {
		return nil, storageErr(err)
	}

	pending := make([]types.Room, 0)
	for _, room := range rooms {
		if presence.IsPending(room.Participants) {
			pending = append(pending, roomToType(room))
		}
	}

	return pending, nil
}

// CheckAbandonedUnacknowledged evaluates the alarm condition for one
// room: at least one supporter row, all departed and unseen.
func (sr *SupportRouter) CheckAbandonedUnacknowledged(ctx context.Context, roomId string) (bool, error) {
	room, err := sr.supportRoom(roomId)
	if err != nil {
		return false, err
	}

	participants, err := sr.db.ListParticipants(room.Id)
	if err != nil {
		return false, storageErr(err)
	}

	return presence.IsAbandonedUnacknowledged(participants), nil
}

// GetRoom returns one room with its current participant rows.
func (sr *SupportRouter) GetRoom(ctx context.Context, roomId string) (types.Room, error) {
	room, err := sr.db.GetRoomByExternalId(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, storageErr(err)
	}

	full, err := sr.db.GetRoomWithParticipants(room.Id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, storageErr(err)
	}

	return roomToType(*full), nil
}

// CreateDirectRoom creates an ordinary 1:1 room. Direct rooms never
// enter the routing queue.
func (sr *SupportRouter) CreateDirectRoom(ctx context.Context, userId, peerId int) (types.Room, error) {
	sid, err := shortid.Generate()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := sr.db.CreateDirectRoom(sid, userId, peerId)
	if err != nil {
		return types.Room{}, storageErr(err)
	}

	return roomToType(room), nil
}

// AddMessage appends a message and refreshes the room's denormalized
// summary columns.
func (sr *SupportRouter) AddMessage(ctx context.Context, roomId string, userId int, content string) (types.Message, error) {
	room, err := sr.db.GetRoomByExternalId(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrRoomNotFound
		}
		return types.Message{}, storageErr(err)
	}

	msg, err := sr.db.CreateMessage(database.ChatMessage{
		RoomId:  room.Id,
		UserId:  userId,
		Content: content,
	})
	if err != nil {
		return types.Message{}, storageErr(err)
	}

	return messageToType(msg), nil
}

func (sr *SupportRouter) ListRoomsForUser(ctx context.Context, userId int) ([]types.Room, error) {
	rooms, err := sr.db.ListRoomsForUser(userId)
	if err != nil {
		return nil, storageErr(err)
	}

	result := make([]types.Room, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, roomToType(room))
	}

	return result, nil
}

func (sr *SupportRouter) ListMessages(ctx context.Context, roomId string, limit int) ([]types.Message, error) {
	room, err := sr.db.GetRoomByExternalId(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, storageErr(err)
	}

	msgs, err := sr.db.GetMessages(room.Id, limit)
	if err != nil {
		return nil, storageErr(err)
	}

	result := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, messageToType(msg))
	}

	return result, nil
}

func roomToType(room database.ChatRoom) types.Room {
	r := types.Room{
		Id:                 room.Id,
		ExternalId:         room.ExternalId,
		IsSupportRoom:      room.IsSupportRoom,
		LastMessageSummary: room.LastMessageSummary,
		LastActivityAt:     room.LastActivityAt,
		CreatedAt:          room.CreatedAt,
		UpdatedAt:          room.UpdatedAt,
	}

	for _, p := range room.Participants {
		r.Participants = append(r.Participants, participantToType(p))
	}

	return r
}

func participantToType(p database.RoomParticipant) types.Participant {
	tp := types.Participant{
		UserId:      p.UserId,
		Username:    p.Username,
		IsSupporter: p.IsSupporter,
		IsLeave:     p.IsLeave,
		IsSeen:      p.IsSeen,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	if p.ServesFor.Valid {
		servesFor := int(p.ServesFor.Int64)
		tp.ServesFor = &servesFor
	}

	return tp
}

func messageToType(msg database.ChatMessage) types.Message {
	return types.Message{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		UserId:    msg.UserId,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	}
}
