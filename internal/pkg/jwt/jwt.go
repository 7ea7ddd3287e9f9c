package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskmanager/internal/domain"
)

const (
	AccessTTL     = time.Hour
	RefreshTTL    = 365 * 24 * time.Hour
	DefaultIssuer = "task-manager-service"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var ErrEmptySubject = errors.New("jwt: empty subject id")

type Config struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
}

type Claims struct {
	UserID string `json:"userId"`
	IP     string `json:"ip,omitempty"`
	Type   string `json:"typ"`
	jwtlib.RegisteredClaims
}

// Identity is what a verified token proves.
type Identity struct {
	SubjectID   string
	BindingFact string
	ExpiresAt   time.Time
}

// Service mints and verifies access and refresh tokens. Access and refresh
// tokens use separate secrets; a refresh token never verifies as access.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	now           func() time.Time
}

// New validates cfg and builds the codec. Missing or equal secrets are
// configuration errors.
func New(cfg Config) (*Service, error) {
	switch {
	case strings.TrimSpace(cfg.AccessSecret) == "":
		return nil, fmt.Errorf("%w: access token secret is empty", domain.ErrConfiguration)
	case strings.TrimSpace(cfg.RefreshSecret) == "":
		return nil, fmt.Errorf("%w: refresh token secret is empty", domain.ErrConfiguration)
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", domain.ErrConfiguration)
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        issuer,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// MintAccess signs a one-hour access token for subjectID.
func (s *Service) MintAccess(subjectID, bindingFact string) (string, error) {
	return s.mint(s.accessSecret, typeAccess, AccessTTL, subjectID, bindingFact)
}

// MintRefresh signs a one-year refresh token with the refresh secret.
func (s *Service) MintRefresh(subjectID, bindingFact string) (string, error) {
	return s.mint(s.refreshSecret, typeRefresh, RefreshTTL, subjectID, bindingFact)
}

// VerifyAccess checks signature, issuer, expiry and token type.
func (s *Service) VerifyAccess(tokenStr string) (*Identity, error) {
	return s.verify(s.accessSecret, typeAccess, tokenStr)
}

// VerifyRefresh is VerifyAccess for refresh tokens.
func (s *Service) VerifyRefresh(tokenStr string) (*Identity, error) {
	return s.verify(s.refreshSecret, typeRefresh, tokenStr)
}

func (s *Service) mint(secret []byte, typ string, ttl time.Duration, subjectID, bindingFact string) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", ErrEmptySubject
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: %s token secret is empty", domain.ErrConfiguration, typ)
	}

	now := s.now()
	claims := Claims{
		UserID: subjectID,
		IP:     bindingFact,
		Type:   typ,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign %s token: %v", domain.ErrConfiguration, typ, err)
	}
	return signed, nil
}

func (s *Service) verify(secret []byte, typ, tokenStr string) (*Identity, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, domain.ErrMissingToken
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: %s token secret is empty", domain.ErrConfiguration, typ)
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", domain.ErrInvalidToken)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token, got %q", domain.ErrInvalidToken, typ, claims.Type)
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: subject claim mismatch", domain.ErrInvalidToken)
	}

	return &Identity{
		SubjectID:   claims.UserID,
		BindingFact: claims.IP,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
