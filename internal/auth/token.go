package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenConfig carries the signing secret and lifetimes. It is injected at
// construction; nothing in the token path reads ambient configuration.
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// AccessClaims authorize a single request window.
type AccessClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// RefreshClaims additionally embed the server-side session value, which is
// cross-checked against the stored refresh session on every refresh.
type RefreshClaims struct {
	UserID  string `json:"userId"`
	Session string `json:"refreshToken"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService signs and verifies access and refresh tokens. Verification
// is purely computational; only refresh validation (done by the caller)
// touches storage.
type TokenService struct {
	cfg TokenConfig
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenService{cfg: cfg}, nil
}

// IssuePair mints an access token and a refresh token embedding the given
// session value. Pure function of inputs, secret and clock.
func (s *TokenService) IssuePair(userID, sessionValue string) (TokenPair, error) {
	access, err := s.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.sign(&RefreshClaims{
		UserID:           userID,
		Session:          sessionValue,
		RegisteredClaims: s.registered(s.cfg.RefreshTTL),
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) IssueAccess(userID string) (string, error) {
	return s.sign(&AccessClaims{
		UserID:           userID,
		RegisteredClaims: s.registered(s.cfg.AccessTTL),
	})
}

func (s *TokenService) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.Session == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

func (s *TokenService) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
