package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	args := m.Called(accountParams)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CreateSupportRoom(externalId string, customerId int) (ChatRoom, error) {
	args := m.Called(externalId, customerId)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) CreateDirectRoom(externalId string, userId, peerId int) (ChatRoom, error) {
	args := m.Called(externalId, userId, peerId)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) GetRoomByExternalId(externalId string) (ChatRoom, error) {
	args := m.Called(externalId)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) GetRoomWithParticipants(roomId int) (*ChatRoom, error) {
	args := m.Called(roomId)
	if room, ok := args.Get(0).(*ChatRoom); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) GetParticipant(roomId, userId int) (RoomParticipant, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(RoomParticipant), args.Error(1)
}
func (m *MockChatRepository) UpsertParticipant(params UpsertParticipantParams) (RoomParticipant, error) {
	args := m.Called(params)
	return args.Get(0).(RoomParticipant), args.Error(1)
}
func (m *MockChatRepository) UpdateParticipantFlags(params UpdateParticipantFlagsParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockChatRepository) MarkSupportersLeftUnseen(roomId int) (int, error) {
	args := m.Called(roomId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) ListParticipants(roomId int) ([]RoomParticipant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]RoomParticipant), args.Error(1)
}
func (m *MockChatRepository) ListSupportRooms() ([]ChatRoom, error) {
	args := m.Called()
	return args.Get(0).([]ChatRoom), args.Error(1)
}
func (m *MockChatRepository) FindActiveSupportRoom(customerId int) (ChatRoom, error) {
	args := m.Called(customerId)
	return args.Get(0).(ChatRoom), args.Error(1)
}
func (m *MockChatRepository) ListRoomsForUser(userId int) ([]ChatRoom, error) {
	args := m.Called(userId)
	return args.Get(0).([]ChatRoom), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(msg ChatMessage) (ChatMessage, error) {
	args := m.Called(msg)
	return args.Get(0).(ChatMessage), args.Error(1)
}
func (m *MockChatRepository) GetMessages(roomId, limit int) ([]ChatMessage, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]ChatMessage), args.Error(1)
}
