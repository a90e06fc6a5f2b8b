package database

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	createParticipantQuery = "INSERT INTO participants (room_id, user_id, serves_for, is_supporter, is_leave, is_seen, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) " +
		"RETURNING room_id, user_id, serves_for, is_supporter, is_leave, is_seen"
	participantColumns = "p.room_id, p.user_id, a.username, p.serves_for, p.is_supporter, p.is_leave, p.is_seen, p.created_at, p.updated_at"
)

func (db *PgChatRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, is_staff, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, is_staff",
		accountParams.Username,
		accountParams.EmailAddress,
		accountParams.PasswordHash,
		accountParams.IsStaff,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.IsStaff,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, is_staff, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.IsStaff,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, is_staff, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.IsStaff,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) createRoom(tx *sql.Tx, params CreateRoomParams) (ChatRoom, error) {
	res := tx.QueryRow(
		"INSERT INTO rooms (external_id, is_support_room, last_activity_at, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3, $3) "+
			"RETURNING id, external_id, is_support_room, last_activity_at, created_at, updated_at",
		params.ExternalId,
		params.IsSupportRoom,
		time.Now().UTC(),
	)

	var room ChatRoom
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.IsSupportRoom,
		&room.LastActivityAt,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

// CreateSupportRoom creates a support room together with its single
// customer participant row in one transaction.
func (db *PgChatRepository) CreateSupportRoom(externalId string, customerId int) (ChatRoom, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return ChatRoom{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	room, err := db.createRoom(tx, CreateRoomParams{ExternalId: externalId, IsSupportRoom: true})
	if err != nil {
		return ChatRoom{}, err
	}

	_, err = tx.Exec(
		createParticipantQuery,
		room.Id,
		customerId,
		nil,
		false,
		false,
		false,
		time.Now().UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return ChatRoom{}, err
	}

	if err = tx.Commit(); err != nil {
		return ChatRoom{}, err
	}

	return room, nil
}

// CreateDirectRoom creates an ordinary 1:1 room with both participant
// rows in one transaction.
func (db *PgChatRepository) CreateDirectRoom(externalId string, userId, peerId int) (ChatRoom, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return ChatRoom{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	room, err := db.createRoom(tx, CreateRoomParams{ExternalId: externalId, IsSupportRoom: false})
	if err != nil {
		return ChatRoom{}, err
	}

	for _, id := range []int{userId, peerId} {
		_, err = tx.Exec(
			createParticipantQuery,
			room.Id,
			id,
			nil,
			false,
			false,
			false,
			time.Now().UTC(),
			time.Now().UTC(),
		)
		if err != nil {
			return ChatRoom{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return ChatRoom{}, err
	}

	return room, nil
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (ChatRoom, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, is_support_room, last_message_summary, last_activity_at, created_at, updated_at "+
			"FROM rooms WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room ChatRoom
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.IsSupportRoom,
		&room.LastMessageSummary,
		&room.LastActivityAt,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgChatRepository) GetRoomWithParticipants(roomId int) (*ChatRoom, error) {
	query := `
		SELECT
				r.id AS room_id,
				r.external_id,
				r.is_support_room,
				r.last_message_summary,
				r.last_activity_at,
				r.created_at AS room_created_at,
				r.updated_at AS room_updated_at,
				p.user_id,
				a.username,
				p.serves_for,
				p.is_supporter,
				p.is_leave,
				p.is_seen,
				p.created_at AS participant_created_at,
				p.updated_at AS participant_updated_at
		FROM rooms r
		LEFT JOIN participants p ON r.id = p.room_id
		LEFT JOIN accounts a ON p.user_id = a.id
		WHERE r.id = $1;
`

	rows, err := db.conn.Query(query, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room with participants: %w", err)
	}
	defer rows.Close()

	var room *ChatRoom
	for rows.Next() {
		var (
			id                   int
			externalId           string
			isSupportRoom        bool
			lastMessageSummary   string
			lastActivityAt       time.Time
			roomCreatedAt        time.Time
			roomUpdatedAt        time.Time
			userId               sql.NullInt64
			username             sql.NullString
			servesFor            sql.NullInt64
			isSupporter          sql.NullBool
			isLeave              sql.NullBool
			isSeen               sql.NullBool
			participantCreatedAt sql.NullTime
			participantUpdatedAt sql.NullTime
		)

		err := rows.Scan(
			&id,
			&externalId,
			&isSupportRoom,
			&lastMessageSummary,
			&lastActivityAt,
			&roomCreatedAt,
			&roomUpdatedAt,
			&userId,
			&username,
			&servesFor,
			&isSupporter,
			&isLeave,
			&isSeen,
			&participantCreatedAt,
			&participantUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if room == nil {
			room = &ChatRoom{
				Id:                 id,
				ExternalId:         externalId,
				IsSupportRoom:      isSupportRoom,
				LastMessageSummary: lastMessageSummary,
				LastActivityAt:     lastActivityAt,
				CreatedAt:          roomCreatedAt,
				UpdatedAt:          roomUpdatedAt,
				Participants:       make([]RoomParticipant, 0),
			}
		}

		if userId.Valid {
			room.Participants = append(room.Participants, RoomParticipant{
				RoomId:      id,
				UserId:      int(userId.Int64),
				Username:    username.String,
				ServesFor:   servesFor,
				IsSupporter: isSupporter.Bool,
				IsLeave:     isLeave.Bool,
				IsSeen:      isSeen.Bool,
				CreatedAt:   participantCreatedAt.Time,
				UpdatedAt:   participantUpdatedAt.Time,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if room == nil {
		return nil, sql.ErrNoRows
	}

	return room, nil
}

func (db *PgChatRepository) GetParticipant(roomId, userId int) (RoomParticipant, error) {
	row := db.conn.QueryRow(
		"SELECT "+participantColumns+" FROM participants p "+
			"JOIN accounts a ON p.user_id = a.id "+
			"WHERE p.room_id = $1 AND p.user_id = $2 LIMIT 1",
		roomId,
		userId,
	)

	var p RoomParticipant
	err := row.Scan(
		&p.RoomId,
		&p.UserId,
		&p.Username,
		&p.ServesFor,
		&p.IsSupporter,
		&p.IsLeave,
		&p.IsSeen,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

// UpsertParticipant inserts the row or, if one already exists for
// (room_id, user_id), overwrites its flags. The conflict path is what
// turns a duplicate-insert race into an update.
func (db *PgChatRepository) UpsertParticipant(params UpsertParticipantParams) (RoomParticipant, error) {
	res := db.conn.QueryRow(
		"INSERT INTO participants (room_id, user_id, serves_for, is_supporter, is_leave, is_seen, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) "+
			"ON CONFLICT (room_id, user_id) DO UPDATE SET "+
			"serves_for = EXCLUDED.serves_for, is_supporter = EXCLUDED.is_supporter, "+
			"is_leave = EXCLUDED.is_leave, is_seen = EXCLUDED.is_seen, updated_at = EXCLUDED.updated_at "+
			"RETURNING room_id, user_id, serves_for, is_supporter, is_leave, is_seen",
		params.RoomId,
		params.UserId,
		params.ServesFor,
		params.IsSupporter,
		params.IsLeave,
		params.IsSeen,
		time.Now().UTC(),
	)

	var p RoomParticipant
	err := res.Scan(
		&p.RoomId,
		&p.UserId,
		&p.ServesFor,
		&p.IsSupporter,
		&p.IsLeave,
		&p.IsSeen,
	)

	return p, err
}

func (db *PgChatRepository) UpdateParticipantFlags(params UpdateParticipantFlagsParams) error {
	res, err := db.conn.Exec(
		"UPDATE participants SET is_leave = $3, is_seen = $4, updated_at = $5 "+
			"WHERE room_id = $1 AND user_id = $2",
		params.RoomId,
		params.UserId,
		params.IsLeave,
		params.IsSeen,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// MarkSupportersLeftUnseen flips every supporter row in the room to
// departed and unacknowledged. It returns how many supporters were
// still active before the update; both run in one transaction so the
// count matches the rows flipped.
func (db *PgChatRepository) MarkSupportersLeftUnseen(roomId int) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var active int
	err = tx.QueryRow(
		"SELECT count(*) FROM participants WHERE room_id = $1 AND is_supporter AND NOT is_leave",
		roomId,
	).Scan(&active)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(
		"UPDATE participants SET is_leave = TRUE, is_seen = FALSE, updated_at = $2 "+
			"WHERE room_id = $1 AND is_supporter",
		roomId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return active, nil
}

func (db *PgChatRepository) ListParticipants(roomId int) ([]RoomParticipant, error) {
	rows, err := db.conn.Query(
		"SELECT "+participantColumns+" FROM participants p "+
			"JOIN accounts a ON p.user_id = a.id WHERE p.room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants = make([]RoomParticipant, 0)
	for rows.Next() {
		var p RoomParticipant
		if err = rows.Scan(
			&p.RoomId,
			&p.UserId,
			&p.Username,
			&p.ServesFor,
			&p.IsSupporter,
			&p.IsLeave,
			&p.IsSeen,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			break
		}

		participants = append(participants, p)
	}

	return participants, err
}

// ListSupportRooms returns every support room with its participant
// rows attached, oldest activity first.
func (db *PgChatRepository) ListSupportRooms() ([]ChatRoom, error) {
	rows, err := db.conn.Query(
		"SELECT id, external_id, is_support_room, last_message_summary, last_activity_at, created_at, updated_at " +
			"FROM rooms WHERE is_support_room ORDER BY last_activity_at ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []ChatRoom
	for rows.Next() {
		var room ChatRoom
		if err = rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.IsSupportRoom,
			&room.LastMessageSummary,
			&room.LastActivityAt,
			&room.CreatedAt,
			&room.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		participants, err := db.ListParticipants(rooms[i].Id)
		if err != nil {
			return nil, err
		}
		rooms[i].Participants = participants
	}

	return rooms, nil
}

// FindActiveSupportRoom locates a support room in which the customer
// still has a non-departed participant row.
func (db *PgChatRepository) FindActiveSupportRoom(customerId int) (ChatRoom, error) {
	row := db.conn.QueryRow(
		"SELECT r.id, r.external_id, r.is_support_room, r.last_message_summary, r.last_activity_at, r.created_at, r.updated_at "+
			"FROM rooms r JOIN participants p ON r.id = p.room_id "+
			"WHERE r.is_support_room AND p.user_id = $1 AND NOT p.is_supporter AND NOT p.is_leave "+
			"ORDER BY r.created_at DESC LIMIT 1",
		customerId,
	)

	var room ChatRoom
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.IsSupportRoom,
		&room.LastMessageSummary,
		&room.LastActivityAt,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgChatRepository) ListRoomsForUser(userId int) ([]ChatRoom, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.external_id, r.is_support_room, r.last_message_summary, r.last_activity_at "+
			"FROM participants p JOIN rooms r ON r.id = p.room_id "+
			"WHERE p.user_id = $1 ORDER BY r.last_activity_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []ChatRoom
	for rows.Next() {
		var room ChatRoom
		if err = rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.IsSupportRoom,
			&room.LastMessageSummary,
			&room.LastActivityAt,
		); err != nil {
			break
		}

		rooms = append(rooms, room)
	}

	return rooms, err
}

// CreateMessage appends the message and refreshes the room's
// denormalized summary columns in one transaction.
func (db *PgChatRepository) CreateMessage(msg ChatMessage) (ChatMessage, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return ChatMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	res := tx.QueryRow(
		"INSERT INTO messages (room_id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, room_id, user_id, content, created_at",
		msg.RoomId,
		msg.UserId,
		msg.Content,
		now,
	)

	var created ChatMessage
	err = res.Scan(
		&created.Id,
		&created.RoomId,
		&created.UserId,
		&created.Content,
		&created.CreatedAt,
	)
	if err != nil {
		return ChatMessage{}, err
	}

	_, err = tx.Exec(
		"UPDATE rooms SET last_message_summary = $2, last_activity_at = $3, updated_at = $3 WHERE id = $1",
		msg.RoomId,
		msg.Content,
		now,
	)
	if err != nil {
		return ChatMessage{}, err
	}

	if err = tx.Commit(); err != nil {
		return ChatMessage{}, err
	}

	return created, nil
}

func (db *PgChatRepository) GetMessages(roomId, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, user_id, content, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY id DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]ChatMessage, 0, limit)
	for rows.Next() {
		var msg ChatMessage
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}
