// Package server is the HTTP transport layer. Handlers stay thin and
// delegate to the verification pipeline and the ranking service; no
// business rules live here.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/nandar/payquest/internal/models"
	"gitlab.com/nandar/payquest/internal/ranking"
	"gitlab.com/nandar/payquest/internal/verification"
)

// maxUploadBytes bounds the multipart body. Slightly above the integrity
// checker's 5 MB image ceiling so oversized images reach the checker and
// get a proper rejection reason instead of a transport error.
const maxUploadBytes = 6 << 20

// Verifier is the submission side of the verification pipeline.
type Verifier interface {
	Submit(ctx context.Context, participantID int64, image []byte, filename string) *verification.Result
	Preview(ctx context.Context, participantID int64, image []byte, filename string) *verification.PreviewResult
	Confirm(ctx context.Context, token string) (*verification.Result, error)
}

// Leaderboards is the query side of the ranking engine.
type Leaderboards interface {
	Paginated(ctx context.Context, period ranking.Period, track string, page, perPage int, search string) (*ranking.Page, error)
	Top20WithPosition(ctx context.Context, period ranking.Period, track string, participantID int64) (*ranking.Standing, error)
}

// Participants registers and resolves competitors.
type Participants interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id int64) (*models.Participant, error)
}

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	verifier     Verifier
	leaderboards Leaderboards
	participants Participants
	db           Pinger
}

// New creates the HTTP server handlers.
func New(verifier Verifier, leaderboards Leaderboards, participants Participants, db Pinger) *Server {
	return &Server{
		verifier:     verifier,
		leaderboards: leaderboards,
		participants: participants,
		db:           db,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/participants", s.handleCreateParticipant)
		r.Post("/submissions", s.handleSubmit)
		r.Post("/submissions/preview", s.handlePreview)
		r.Post("/submissions/{token}/confirm", s.handleConfirm)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/me", s.handleMyStanding)
	})

	return r
}

// NewHTTPServer wraps the handler in an http.Server with sane defaults.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
