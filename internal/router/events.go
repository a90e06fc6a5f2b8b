package router

import (
	"log"

	"github.com/stretchr/testify/mock"
)

// EventSink receives a structured event per session state transition.
// Staff-facing notification systems consume these; the router itself
// never pushes to clients.
type EventSink interface {
	SessionOpened(roomId string, customerId int)
	SessionClaimed(roomId string, staffId, customerId int)
	SessionReleased(roomId string, staffId int)
	SessionEscalated(roomId string)
	AbandonmentAcknowledged(roomId string, staffId int)
}

// LogEventSink writes each transition to the service log.
type LogEventSink struct {
	log *log.Logger
}

func NewLogEventSink(logger *log.Logger) *LogEventSink {
	return &LogEventSink{log: logger}
}

func (s *LogEventSink) SessionOpened(roomId string, customerId int) {
	s.log.Printf("support session opened: room=%s customer=%d", roomId, customerId)
}

func (s *LogEventSink) SessionClaimed(roomId string, staffId, customerId int) {
	s.log.Printf("support session claimed: room=%s staff=%d customer=%d", roomId, staffId, customerId)
}

func (s *LogEventSink) SessionReleased(roomId string, staffId int) {
	s.log.Printf("support session released: room=%s staff=%d", roomId, staffId)
}

func (s *LogEventSink) SessionEscalated(roomId string) {
	s.log.Printf("support session escalated: room=%s", roomId)
}

func (s *LogEventSink) AbandonmentAcknowledged(roomId string, staffId int) {
	s.log.Printf("abandonment acknowledged: room=%s staff=%d", roomId, staffId)
}

type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) SessionOpened(roomId string, customerId int) {
	m.Called(roomId, customerId)
}
func (m *MockEventSink) SessionClaimed(roomId string, staffId, customerId int) {
	m.Called(roomId, staffId, customerId)
}
func (m *MockEventSink) SessionReleased(roomId string, staffId int) {
	m.Called(roomId, staffId)
}
func (m *MockEventSink) SessionEscalated(roomId string) {
	m.Called(roomId)
}
func (m *MockEventSink) AbandonmentAcknowledged(roomId string, staffId int) {
	m.Called(roomId, staffId)
}
