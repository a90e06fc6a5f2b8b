package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/pawdesk/support-chat/internal/config"
	"github.com/pawdesk/support-chat/internal/database"
	"github.com/pawdesk/support-chat/internal/stats"
	"github.com/pawdesk/support-chat/internal/types"
)

// HttpRequestsMetric counts every request the server handles.
const HttpRequestsMetric = "HttpRequests"

// SessionRouter is the routing surface the HTTP layer drives.
type SessionRouter interface {
	InitiateSupportSession(ctx context.Context, customerId int) (types.Room, error)
	GetRoom(ctx context.Context, roomId string) (types.Room, error)
	AssignStaff(ctx context.Context, roomId string, staffId, customerId int) error
	ReleaseStaff(ctx context.Context, roomId string, staffId int) error
	RequestNewSupporter(ctx context.Context, roomId string) error
	AcknowledgeAbandonment(ctx context.Context, roomId string, staffId int) error
	ListPendingSupportRooms(ctx context.Context) ([]types.Room, error)
	CheckAbandonedUnacknowledged(ctx context.Context, roomId string) (bool, error)
	CreateDirectRoom(ctx context.Context, userId, peerId int) (types.Room, error)
	AddMessage(ctx context.Context, roomId string, userId int, content string) (types.Message, error)
	ListRoomsForUser(ctx context.Context, userId int) ([]types.Room, error)
	ListMessages(ctx context.Context, roomId string, limit int) ([]types.Message, error)
}

type SupportChatApp struct {
	log        *log.Logger
	db         database.ChatRepository
	sr         SessionRouter
	mux        *http.Server
	stats      stats.StatsProvider
	signingKey []byte
}

func NewSupportChatApp(mux *http.ServeMux, logger *log.Logger, sr SessionRouter, db database.ChatRepository, su stats.StatsProvider, cfg *config.Config) *SupportChatApp {
	s := &SupportChatApp{
		log:        logger,
		db:         db,
		sr:         sr,
		stats:      su,
		signingKey: cfg.SigningKey,
	}

	su.RegisterMetric(HttpRequestsMetric)

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/support/sessions", s.authMiddleware(s.initiateSupportSession))
	mux.Handle("POST /api/support/sessions/claim", s.authMiddleware(s.staffMiddleware(s.claimSession)))
	mux.Handle("POST /api/support/sessions/release", s.authMiddleware(s.staffMiddleware(s.releaseSession)))
	mux.Handle("POST /api/support/sessions/escalate", s.authMiddleware(s.escalateSession))
	mux.Handle("POST /api/support/sessions/ack", s.authMiddleware(s.staffMiddleware(s.ackAbandonment)))
	mux.Handle("GET /api/support/pending", s.authMiddleware(s.staffMiddleware(s.pendingSessions)))
	mux.Handle("GET /api/support/abandoned", s.authMiddleware(s.staffMiddleware(s.abandonedUnacknowledged)))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.getRooms))
	mux.Handle("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SupportChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SupportChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
