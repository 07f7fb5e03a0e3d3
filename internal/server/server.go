package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"toursapp/internal/auth"
	"toursapp/internal/config"
	"toursapp/internal/email"
	"toursapp/internal/reviews"
	"toursapp/internal/tours"
)

// UserStore is the credential store the auth core depends on. Implemented
// by auth.UserRepository; the seam keeps handlers testable with fakes.
type UserStore interface {
	Create(ctx context.Context, p auth.CreateUserParams) (*auth.User, error)
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	FindByID(ctx context.Context, id string) (*auth.User, error)
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error)
	List(ctx context.Context) ([]auth.User, error)
	UpdatePassword(ctx context.Context, userID, password string) error
	SetVerified(ctx context.Context, userID string) error
	SetPasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error
	ClearPasswordReset(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, userID string, name, email *string) (*auth.User, error)
	UpdateRole(ctx context.Context, userID, role string) error
	Deactivate(ctx context.Context, userID string) error
}

// SessionStore holds the server-side refresh sessions. Implemented by
// auth.RefreshSessionRepository.
type SessionStore interface {
	Create(ctx context.Context, sess auth.RefreshSession) (*auth.RefreshSession, error)
	FindByUser(ctx context.Context, userID string) (*auth.RefreshSession, error)
	FindValid(ctx context.Context, userID, value string) (*auth.RefreshSession, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type TourStore interface {
	List(ctx context.Context, q tours.ListQuery) ([]tours.Tour, error)
	Create(ctx context.Context, t tours.Tour) (*tours.Tour, error)
	FindByID(ctx context.Context, id string) (*tours.Tour, error)
	Update(ctx context.Context, t tours.Tour) (*tours.Tour, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ReviewStore interface {
	List(ctx context.Context, tourID string) ([]reviews.Review, error)
	Create(ctx context.Context, rev reviews.Review) (*reviews.Review, error)
	FindByID(ctx context.Context, id string) (*reviews.Review, error)
	Update(ctx context.Context, id string, rating int, comment string) (*reviews.Review, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Server struct {
	Users          UserStore
	Sessions       SessionStore
	Tours          TourStore
	Reviews        ReviewStore
	Tokens         *auth.TokenService
	TOTP           *auth.TOTPService
	Hasher         auth.PasswordHasher
	RateLimiter    *auth.RateLimiter
	Mailer         email.Mailer
	Config         config.Config
	trustedProxies []net.IPNet
}

func NewServer(
	cfg config.Config,
	users UserStore,
	sessions SessionStore,
	tourStore TourStore,
	reviewStore ReviewStore,
	tokens *auth.TokenService,
	totp *auth.TOTPService,
	hasher auth.PasswordHasher,
	rl *auth.RateLimiter,
	mailer email.Mailer,
) *Server {
	return &Server{
		Users:          users,
		Sessions:       sessions,
		Tours:          tourStore,
		Reviews:        reviewStore,
		Tokens:         tokens,
		TOTP:           totp,
		Hasher:         hasher,
		RateLimiter:    rl,
		Mailer:         mailer,
		Config:         cfg,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/signup", s.handleSignup)
		api.Post("/login", s.handleLogin)
		api.Get("/refresh", s.handleRefresh)
		api.Post("/verify-email", s.handleVerifyEmail)
		api.Post("/forget-password", s.handleForgetPassword)
		api.Patch("/reset-password/{token}", s.handleResetPassword)

		api.Group(func(pr chi.Router) {
			pr.Use(s.protect)
			pr.Get("/logout", s.handleLogout)
			pr.Post("/verify-two-factor-auth", s.handleVerifyTwoFactor)
			pr.Patch("/updateMyPassword", s.handleUpdatePassword)
		})

		api.Route("/tours", func(tr chi.Router) {
			tr.Get("/", s.handleListTours)
			tr.Get("/top-five", s.handleTopFiveTours)
			tr.With(s.protect, s.restrictTo(auth.RoleAdmin)).Post("/", s.handleCreateTour)
			tr.Get("/{tourId}", s.handleGetTour)
			tr.With(s.protect, s.restrictTo(auth.RoleAdmin)).Put("/{tourId}", s.handleUpdateTour)
			tr.With(s.protect, s.restrictTo(auth.RoleAdmin)).Delete("/{tourId}", s.handleDeleteTour)

			tr.Route("/{tourId}/reviews", func(rr chi.Router) {
				rr.Get("/", s.handleListReviews)
				rr.With(s.protect, s.restrictTo(auth.RoleUser)).Post("/", s.handleCreateReview)
			})
		})

		api.Route("/reviews", func(rr chi.Router) {
			rr.Get("/", s.handleListReviews)
			rr.With(s.protect, s.restrictTo(auth.RoleUser)).Post("/", s.handleCreateReview)
			rr.Get("/{id}", s.handleGetReview)
			rr.With(s.protect, s.restrictTo(auth.RoleUser)).Patch("/{id}", s.handleUpdateReview)
			rr.With(s.protect, s.restrictTo(auth.RoleUser)).Delete("/{id}", s.handleDeleteReview)
		})

		api.Route("/users", func(ur chi.Router) {
			ur.Use(s.protect)
			ur.Get("/me", s.handleMe)
			ur.Patch("/updateMe", s.handleUpdateMe)
			ur.Delete("/deleteMe", s.handleDeleteMe)

			ur.Group(func(ar chi.Router) {
				ar.Use(s.restrictTo(auth.RoleAdmin))
				ar.Get("/", s.handleListUsers)
				ar.Post("/", s.handleCreateUser)
				ar.Get("/{id}", s.handleGetUser)
				ar.Patch("/{id}", s.handleUpdateUser)
				ar.Delete("/{id}", s.handleDeleteUser)
			})
		})
	})

	return r
}
