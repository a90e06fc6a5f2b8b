package database

type ChatRepository interface {
	Ping() error
	CreateAccount(accountParams CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateSupportRoom(externalId string, customerId int) (ChatRoom, error)
	CreateDirectRoom(externalId string, userId, peerId int) (ChatRoom, error)
	GetRoomByExternalId(externalId string) (ChatRoom, error)
	GetRoomWithParticipants(roomId int) (*ChatRoom, error)
	GetParticipant(roomId, userId int) (RoomParticipant, error)
	UpsertParticipant(params UpsertParticipantParams) (RoomParticipant, error)
	UpdateParticipantFlags(params UpdateParticipantFlagsParams) error
	MarkSupportersLeftUnseen(roomId int) (int, error)
	ListParticipants(roomId int) ([]RoomParticipant, error)
	ListSupportRooms() ([]ChatRoom, error)
	FindActiveSupportRoom(customerId int) (ChatRoom, error)
	ListRoomsForUser(userId int) ([]ChatRoom, error)
	CreateMessage(msg ChatMessage) (ChatMessage, error)
	GetMessages(roomId, limit int) ([]ChatMessage, error)
}
