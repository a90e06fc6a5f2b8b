package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pawdesk/support-chat/internal/config"
	"github.com/pawdesk/support-chat/internal/database"
	"github.com/pawdesk/support-chat/internal/router"
	"github.com/pawdesk/support-chat/internal/stats"
	"github.com/pawdesk/support-chat/internal/testutil"
	"github.com/pawdesk/support-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSessionRouter struct {
	mock.Mock
}

func (m *MockSessionRouter) InitiateSupportSession(ctx context.Context, customerId int) (types.Room, error) {
	args := m.Called(ctx, customerId)
	return args.Get(0).(types.Room), args.Error(1)
}
func (m *MockSessionRouter) GetRoom(ctx context.Context, roomId string) (types.Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(types.Room), args.Error(1)
}
func (m *MockSessionRouter) AssignStaff(ctx context.Context, roomId string, staffId, customerId int) error {
	args := m.Called(ctx, roomId, staffId, customerId)
	return args.Error(0)
}
func (m *MockSessionRouter) ReleaseStaff(ctx context.Context, roomId string, staffId int) error {
	args := m.Called(ctx, roomId, staffId)
	return args.Error(0)
}
func (m *MockSessionRouter) RequestNewSupporter(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}
func (m *MockSessionRouter) AcknowledgeAbandonment(ctx context.Context, roomId string, staffId int) error {
	args := m.Called(ctx, roomId, staffId)
	return args.Error(0)
}
func (m *MockSessionRouter) ListPendingSupportRooms(ctx context.Context) ([]types.Room, error) {
	args := m.Called(ctx)
	return args.Get(0).([]types.Room), args.Error(1)
}
func (m *MockSessionRouter) CheckAbandonedUnacknowledged(ctx context.Context, roomId string) (bool, error) {
	args := m.Called(ctx, roomId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSessionRouter) CreateDirectRoom(ctx context.Context, userId, peerId int) (types.Room, error) {
	args := m.Called(ctx, userId, peerId)
	return args.Get(0).(types.Room), args.Error(1)
}
func (m *MockSessionRouter) AddMessage(ctx context.Context, roomId string, userId int, content string) (types.Message, error) {
	args := m.Called(ctx, roomId, userId, content)
	return args.Get(0).(types.Message), args.Error(1)
}
func (m *MockSessionRouter) ListRoomsForUser(ctx context.Context, userId int) ([]types.Room, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]types.Room), args.Error(1)
}
func (m *MockSessionRouter) ListMessages(ctx context.Context, roomId string, limit int) ([]types.Message, error) {
	args := m.Called(ctx, roomId, limit)
	return args.Get(0).([]types.Message), args.Error(1)
}

// testStats is a stats mock that tolerates any counter traffic; tests
// that care about a specific metric build their own.
func testStats() *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.AnythingOfType("string")).Maybe()
	su.On("Incr", mock.AnythingOfType("string")).Maybe()
	su.On("Decr", mock.AnythingOfType("string")).Maybe()
	return su
}

func newTestApp(t *testing.T, sr SessionRouter, db database.ChatRepository) *SupportChatApp {
	return NewSupportChatApp(
		http.NewServeMux(),
		testutil.TestLogger(t),
		sr,
		db,
		testStats(),
		&config.Config{
			ServerAddr: "localhost:8080",
			SigningKey: []byte("test-signing-key"),
		},
	)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return buf
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	expectedUser := database.User{
		Id:           1,
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		IsStaff:      true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	tcases := []struct {
		name        string
		body        any
		success     bool
		mockUser    database.User
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name: "successfully creates a new account",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password",
				IsStaff:  true,
			},
			success:  true,
			mockUser: expectedUser,
		},
		{
			name:        "failed with invalid json body",
			body:        "invalid json",
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing username",
			body: RegisterRequest{
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing email",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Password: "password",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with db error",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			mockErr:     errors.New("db error"),
			expectedErr: NewInternalServerError(errors.New("db error")),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.success || tc.mockErr != nil {
				mockRepo.On("CreateAccount", mock.AnythingOfType("database.CreateAccountParams")).
					Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, tc.body))
			app.createAccount(rr, req)

			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code)
				return
			}

			assert.Equal(t, http.StatusCreated, rr.Code)

			var u types.User
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
			assert.Equal(t, expectedUser.Id, u.Id)
			assert.Equal(t, expectedUser.Username, u.Username)
			assert.True(t, u.IsStaff, "expected staff flag to round-trip")
		})
	}
}

func TestLoginHandler(t *testing.T) {
	pwdHash, err := hashPassword("password")
	assert.NoError(t, err)

	dbUser := database.User{
		Id:           1,
		Username:     "user",
		EmailAddress: "user@example.com",
		PasswordHash: pwdHash,
	}

	tcases := []struct {
		name        string
		body        any
		mockUser    database.User
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name:     "successful login",
			body:     LoginRequest{Email: dbUser.EmailAddress, Password: "password"},
			mockUser: dbUser,
		},
		{
			name:        "wrong password",
			body:        LoginRequest{Email: dbUser.EmailAddress, Password: "nope"},
			mockUser:    dbUser,
			expectedErr: NewUnauthorizedError(),
		},
		{
			name:        "unknown account",
			body:        LoginRequest{Email: "ghost@example.com", Password: "password"},
			mockErr:     sql.ErrNoRows,
			expectedErr: NewNotFoundError(),
		},
		{
			name:        "missing fields",
			body:        LoginRequest{},
			expectedErr: NewBadRequestError(),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			lr, isLogin := tc.body.(LoginRequest)
			if isLogin && lr.Email != "" && lr.Password != "" {
				mockRepo.On("GetAccountByEmail", lr.Email).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, nil, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tc.body))
			app.login(rr, req)

			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code)
				return
			}

			assert.Equal(t, http.StatusOK, rr.Code)

			cookie := findCookie(rr, tokenCookieKey)
			assert.NotNil(t, cookie, "expected a session cookie")
			assert.NotEmpty(t, cookie.Value, "expected a signed token")
		})
	}
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestInitiateSupportSessionHandler(t *testing.T) {
	t.Run("opens a session", func(t *testing.T) {
		mockRouter := &MockSessionRouter{}
		defer mockRouter.AssertExpectations(t)

		mockRouter.On("InitiateSupportSession", mock.Anything, 7).
			Return(types.Room{Id: 1, ExternalId: "r1", IsSupportRoom: true}, nil).Once()

		app := newTestApp(t, mockRouter, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/support/sessions", nil)
		req = req.WithContext(WithUserId(req.Context(), 7))
		app.initiateSupportSession(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
		assert.Equal(t, "r1", room.ExternalId)
	})

	t.Run("conflict when customer already has a session", func(t *testing.T) {
		mockRouter := &MockSessionRouter{}
		defer mockRouter.AssertExpectations(t)

		mockRouter.On("InitiateSupportSession", mock.Anything, 7).
			Return(types.Room{}, router.ErrAlreadyActive).Once()

		app := newTestApp(t, mockRouter, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/support/sessions", nil)
		req = req.WithContext(WithUserId(req.Context(), 7))
		app.initiateSupportSession(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unauthorized without user in context", func(t *testing.T) {
		app := newTestApp(t, &MockSessionRouter{}, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/support/sessions", nil)
		app.initiateSupportSession(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestClaimSessionHandler(t *testing.T) {
	tcases := []struct {
		name         string
		body         any
		mockErr      error
		expectedCode int
	}{
		{
			name:         "successful claim",
			body:         ClaimSessionRequest{RoomId: "r1", CustomerId: 7},
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "missing room id",
			body:         ClaimSessionRequest{CustomerId: 7},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "room not found",
			body:         ClaimSessionRequest{RoomId: "missing", CustomerId: 7},
			mockErr:      router.ErrRoomNotFound,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "direct room rejected",
			body:         ClaimSessionRequest{RoomId: "dm", CustomerId: 7},
			mockErr:      router.ErrNotSupportRoom,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "storage failure",
			body:         ClaimSessionRequest{RoomId: "r1", CustomerId: 7},
			mockErr:      router.ErrStorageUnavailable,
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRouter := &MockSessionRouter{}
			defer mockRouter.AssertExpectations(t)

			if req, ok := tc.body.(ClaimSessionRequest); ok && req.RoomId != "" {
				mockRouter.On("AssignStaff", mock.Anything, req.RoomId, 9, req.CustomerId).
					Return(tc.mockErr).Once()
			}

			app := newTestApp(t, mockRouter, nil)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/support/sessions/claim", jsonBody(t, tc.body))
			req = req.WithContext(WithUserId(req.Context(), 9))
			app.claimSession(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func TestReleaseSessionHandler(t *testing.T) {
	mockRouter := &MockSessionRouter{}
	defer mockRouter.AssertExpectations(t)

	mockRouter.On("ReleaseStaff", mock.Anything, "r1", 9).Return(nil).Once()

	app := newTestApp(t, mockRouter, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/support/sessions/release", jsonBody(t, ReleaseSessionRequest{RoomId: "r1"}))
	req = req.WithContext(WithUserId(req.Context(), 9))
	app.releaseSession(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestEscalateSessionHandler(t *testing.T) {
	mockRouter := &MockSessionRouter{}
	defer mockRouter.AssertExpectations(t)

	mockRouter.On("RequestNewSupporter", mock.Anything, "r1").Return(nil).Once()

	app := newTestApp(t, mockRouter, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/support/sessions/escalate", jsonBody(t, EscalateSessionRequest{RoomId: "r1"}))
	req = req.WithContext(WithUserId(req.Context(), 7))
	app.escalateSession(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAckAbandonmentHandler(t *testing.T) {
	mockRouter := &MockSessionRouter{}
	defer mockRouter.AssertExpectations(t)

	mockRouter.On("AcknowledgeAbandonment", mock.Anything, "r1", 9).Return(nil).Once()

	app := newTestApp(t, mockRouter, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/support/sessions/ack", jsonBody(t, AckAbandonmentRequest{RoomId: "r1"}))
	req = req.WithContext(WithUserId(req.Context(), 9))
	app.ackAbandonment(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestPendingSessionsHandler(t *testing.T) {
	mockRouter := &MockSessionRouter{}
	defer mockRouter.AssertExpectations(t)

	mockRouter.On("ListPendingSupportRooms", mock.Anything).
		Return([]types.Room{{Id: 1, ExternalId: "r1", IsSupportRoom: true}}, nil).Once()

	app := newTestApp(t, mockRouter, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/support/pending", nil)
	req = req.WithContext(WithUserId(req.Context(), 9))
	app.pendingSessions(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var rooms []types.Room
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms))
	assert.Len(t, rooms, 1)
	assert.Equal(t, "r1", rooms[0].ExternalId)
}

func TestAbandonedUnacknowledgedHandler(t *testing.T) {
	t.Run("reports the alarm state", func(t *testing.T) {
		mockRouter := &MockSessionRouter{}
		defer mockRouter.AssertExpectations(t)

		mockRouter.On("CheckAbandonedUnacknowledged", mock.Anything, "r1").Return(true, nil).Once()

		app := newTestApp(t, mockRouter, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/support/abandoned?id=r1", nil)
		req = req.WithContext(WithUserId(req.Context(), 9))
		app.abandonedUnacknowledged(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]bool
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.True(t, resp["abandoned_unacknowledged"])
	})

	t.Run("missing id", func(t *testing.T) {
		app := newTestApp(t, &MockSessionRouter{}, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/support/abandoned", nil)
		req = req.WithContext(WithUserId(req.Context(), 9))
		app.abandonedUnacknowledged(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("creates a direct room", func(t *testing.T) {
		mockRouter := &MockSessionRouter{}
		defer mockRouter.AssertExpectations(t)

		mockRouter.On("CreateDirectRoom", mock.Anything, 7, 8).
			Return(types.Room{Id: 2, ExternalId: "dm"}, nil).Once()

		app := newTestApp(t, mockRouter, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/rooms", jsonBody(t, CreateRoomRequest{PeerId: 8}))
		req = req.WithContext(WithUserId(req.Context(), 7))
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("rejects a room with self", func(t *testing.T) {
		app := newTestApp(t, &MockSessionRouter{}, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/rooms", jsonBody(t, CreateRoomRequest{PeerId: 7}))
		req = req.WithContext(WithUserId(req.Context(), 7))
		app.createRoom(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetRoomHandler(t *testing.T) {
	t.Run("returns the room with participants", func(t *testing.T) {
		mockRouter := &MockSessionRouter{}
		defer mockRouter.AssertExpectations(t)

		staffId := 9
		mockRouter.On("GetRoom", mock.Anything, "r1").
			Return(types.Room{
				Id:            1,
				ExternalId:    "r1",
				IsSupportRoom: true,
				Participants: []types.Participant{
					{UserId: 7},
					{UserId: staffId, IsSupporter: true, IsSeen: true},
				},
			}, nil).Once()

		app := newTestApp(t, mockRouter, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
		req.SetPathValue("id", "r1")
		req = req.WithContext(WithUserId(req.Context(), staffId))
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
		assert.Equal(t, "r1", room.ExternalId)
		assert.Len(t, room.Participants, 2)
	})

	t.Run("room not found", func(t *testing.T) {
		mockRouter := &MockSessionRouter{}
		defer mockRouter.AssertExpectations(t)

		mockRouter.On("GetRoom", mock.Anything, "missing").
			Return(types.Room{}, router.ErrRoomNotFound).Once()

		app := newTestApp(t, mockRouter, nil)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/rooms/missing", nil)
		req.SetPathValue("id", "missing")
		req = req.WithContext(WithUserId(req.Context(), 9))
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCreateMessageHandler(t *testing.T) {
	mockRouter := &MockSessionRouter{}
	defer mockRouter.AssertExpectations(t)

	mockRouter.On("AddMessage", mock.Anything, "r1", 7, "hello").
		Return(types.Message{Id: 1, RoomId: 1, UserId: 7, Content: "hello"}, nil).Once()

	app := newTestApp(t, mockRouter, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", jsonBody(t, CreateMessageRequest{RoomId: "r1", Content: "hello"}))
	req = req.WithContext(WithUserId(req.Context(), 7))
	app.createMessage(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestGetMessagesHandler(t *testing.T) {
	mockRouter := &MockSessionRouter{}
	defer mockRouter.AssertExpectations(t)

	mockRouter.On("ListMessages", mock.Anything, "r1", 10).
		Return([]types.Message{{Id: 1, Content: "hello"}}, nil).Once()

	app := newTestApp(t, mockRouter, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages?id=r1&limit=10", nil)
	req = req.WithContext(WithUserId(req.Context(), 7))
	app.getMessages(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
