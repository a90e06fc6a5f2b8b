// Package presence derives supporter availability for support rooms
// from stored participant rows. All functions are pure; the
// participant slice is the single source of truth and nothing here is
// cached or maintained incrementally.
package presence

import (
	"github.com/pawdesk/support-chat/internal/database"
)

// SupporterState is the explicit form of the (is_leave, is_seen) flag
// pair on a supporter row.
type SupporterState int

const (
	// Active means the supporter is currently attending the room.
	Active SupporterState = iota
	// LeftQuiet means the supporter departed in an orderly way and the
	// departure has been acknowledged.
	LeftQuiet
	// LeftAlarm means the supporter departed and nobody has
	// acknowledged it yet.
	LeftAlarm
)

func (s SupporterState) String() string {
	switch s {
	case Active:
		return "active"
	case LeftQuiet:
		return "left_quiet"
	case LeftAlarm:
		return "left_alarm"
	default:
		return "unknown"
	}
}

// StateOf classifies a supporter row. Customer rows have no supporter
// state; callers filter on IsSupporter first.
func StateOf(p database.RoomParticipant) SupporterState {
	if !p.IsLeave {
		return Active
	}
	if p.IsSeen {
		return LeftQuiet
	}
	return LeftAlarm
}

// RoomState is the derived lifecycle position of a support room.
type RoomState int

const (
	// AwaitingFirstAssignment is a fresh session no staff member has
	// ever claimed.
	AwaitingFirstAssignment RoomState = iota
	// Assigned means at least one supporter is attending.
	Assigned
	// PendingReassignment means every supporter departed, at least one
	// departure acknowledged.
	PendingReassignment
	// Escalated means every supporter departed and none of the
	// departures has been acknowledged.
	Escalated
)

func (s RoomState) String() string {
	switch s {
	case AwaitingFirstAssignment:
		return "awaiting_first_assignment"
	case Assigned:
		return "assigned"
	case PendingReassignment:
		return "pending_reassignment"
	case Escalated:
		return "escalated"
	default:
		return "unknown"
	}
}

// HasActiveSupporter reports whether any supporter row is non-departed.
func HasActiveSupporter(participants []database.RoomParticipant) bool {
	for _, p := range participants {
		if p.IsSupporter && !p.IsLeave {
			return true
		}
	}
	return false
}

// IsPending reports whether the room is eligible for assignment: no
// supporter rows at all, or every supporter has departed.
func IsPending(participants []database.RoomParticipant) bool {
	return !HasActiveSupporter(participants)
}

// IsAbandonedUnacknowledged reports the alarm condition: at least one
// supporter row exists and every one of them is departed and unseen.
func IsAbandonedUnacknowledged(participants []database.RoomParticipant) bool {
	var supporters int
	for _, p := range participants {
		if !p.IsSupporter {
			continue
		}
		supporters++
		if StateOf(p) != LeftAlarm {
			return false
		}
	}
	return supporters > 0
}

// StateOfRoom classifies a support room from its participant rows.
func StateOfRoom(participants []database.RoomParticipant) RoomState {
	var supporters, alarms int
	for _, p := range participants {
		if !p.IsSupporter {
			continue
		}
		supporters++
		switch StateOf(p) {
		case Active:
			return Assigned
		case LeftAlarm:
			alarms++
		}
	}

	if supporters == 0 {
		return AwaitingFirstAssignment
	}
	if alarms == supporters {
		return Escalated
	}
	return PendingReassignment
}
