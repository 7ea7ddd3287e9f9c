package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/domain"
	"taskmanager/internal/events"
	jwtsvc "taskmanager/internal/pkg/jwt"
)

type RotationMode string

const (
	// RotationAtomic consumes the presented token before issuing a new one,
	// so concurrent refreshes of one token have a single winner.
	RotationAtomic RotationMode = "atomic"
	// RotationTwoPhase checks, persists the new token, then deletes the old
	// one. Two requests racing on one token can both succeed.
	RotationTwoPhase RotationMode = "two_phase"
)

type Options struct {
	Rotation      RotationMode
	RevokeOnReuse bool
}

// Service contains all business logic for authentication
type Service struct {
	users  UserRepositoryInterface
	ledger RefreshTokenLedger
	tokens TokenCodec
	events EventPublisher
	log    *slog.Logger
	opts   Options
	now    func() time.Time
}

type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

func NewService(
	users UserRepositoryInterface,
	ledger RefreshTokenLedger,
	tokens TokenCodec,
	publisher EventPublisher,
	logger *slog.Logger,
	opts Options,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Rotation == "" {
		opts.Rotation = RotationAtomic
	}
	return &Service{
		users:  users,
		ledger: ledger,
		tokens: tokens,
		events: publisher,
		log:    logger,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest, bindingFact string) (*LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return s.IssueSession(ctx, user, bindingFact)
}

func (s *Service) Login(ctx context.Context, req LoginRequest, bindingFact string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.IssueSession(ctx, user, bindingFact)
}

// IssueSession mints a session pair for an already authenticated user and
// records the refresh token. Nothing is returned unless the record succeeds.
func (s *Service) IssueSession(ctx context.Context, user *domain.User, bindingFact string) (*LoginResult, error) {
	pair, err := s.mintPair(user.ID, bindingFact)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Persist(ctx, user.ID, pair.RefreshToken, s.refreshExpiry()); err != nil {
		return nil, err
	}

	out := *user
	out.PasswordHash = ""
	if err := s.users.SetLoggedIn(ctx, user.ID, true); err != nil {
		s.log.WarnContext(ctx, "mark user logged in", "user_id", user.ID, "error", err)
	} else {
		out.IsLoggedIn = true
	}

	s.publish(ctx, events.Login, user.ID, bindingFact)

	return &LoginResult{User: &out, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh trades a live refresh token for a new session pair bound to
// bindingFact. The presented token stops being redeemable.
func (s *Service) Refresh(ctx context.Context, presented, bindingFact string) (*RefreshResult, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, domain.ErrMissingToken
	}

	identity, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		return nil, err
	}

	var pair *RefreshResult
	if s.opts.Rotation == RotationTwoPhase {
		pair, err = s.rotateTwoPhase(ctx, presented, identity.SubjectID, bindingFact)
	} else {
		pair, err = s.rotateAtomic(ctx, presented, identity.SubjectID, bindingFact)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Refresh, identity.SubjectID, bindingFact)
	return pair, nil
}

func (s *Service) rotateAtomic(ctx context.Context, presented, subjectID, bindingFact string) (*RefreshResult, error) {
	// mint first so a codec failure never spends the presented token
	pair, err := s.mintPair(subjectID, bindingFact)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Consume(ctx, presented, subjectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.tokenNotRecognized(ctx, subjectID, bindingFact)
		}
		return nil, err
	}

	if _, err := s.ledger.Persist(ctx, subjectID, pair.RefreshToken, s.refreshExpiry()); err != nil {
		s.log.ErrorContext(ctx, "refresh rotation lost session", "user_id", subjectID, "error", err)
		return nil, err
	}
	return pair, nil
}

func (s *Service) rotateTwoPhase(ctx context.Context, presented, subjectID, bindingFact string) (*RefreshResult, error) {
	if _, err := s.ledger.FindByTokenAndSubject(ctx, presented, subjectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.tokenNotRecognized(ctx, subjectID, bindingFact)
		}
		return nil, err
	}

	pair, err := s.mintPair(subjectID, bindingFact)
	if err != nil {
		return nil, err
	}

	_, persistErr := s.ledger.Persist(ctx, subjectID, pair.RefreshToken, s.refreshExpiry())
	_, deleteErr := s.ledger.DeleteByToken(ctx, presented)

	if persistErr != nil || deleteErr != nil {
		if persistErr == nil {
			// the new token is never handed out; drop its row
			if _, err := s.ledger.DeleteByToken(ctx, pair.RefreshToken); err != nil {
				s.log.WarnContext(ctx, "drop unused refresh token", "user_id", subjectID, "error", err)
			}
		}
		s.log.ErrorContext(ctx, "refresh rotation failed",
			"user_id", subjectID,
			"persist_error", persistErr,
			"delete_error", deleteErr,
		)
		return nil, errors.Join(persistErr, deleteErr)
	}
	return pair, nil
}

func (s *Service) tokenNotRecognized(ctx context.Context, subjectID, bindingFact string) error {
	s.log.WarnContext(ctx, "refresh token not recognized", "user_id", subjectID, "ip", bindingFact)
	s.publish(ctx, events.RefreshReuse, subjectID, bindingFact)

	if s.opts.RevokeOnReuse {
		n, err := s.ledger.DeleteBySubject(ctx, subjectID)
		if err != nil {
			s.log.ErrorContext(ctx, "revoke sessions after refresh reuse", "user_id", subjectID, "error", err)
		} else {
			s.log.InfoContext(ctx, "revoked sessions after refresh reuse", "user_id", subjectID, "count", n)
		}
	}
	return domain.ErrTokenNotRecognized
}

// Logout ends one session when refreshToken is given, otherwise every
// session of the subject. Nothing matching is not an error.
func (s *Service) Logout(ctx context.Context, subjectID, refreshToken, bindingFact string) error {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if _, err := s.ledger.Consume(ctx, refreshToken, subjectID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	} else {
		if _, err := s.ledger.DeleteBySubject(ctx, subjectID); err != nil {
			return err
		}
	}

	if err := s.users.SetLoggedIn(ctx, subjectID, false); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.WarnContext(ctx, "mark user logged out", "user_id", subjectID, "error", err)
	}

	s.publish(ctx, events.Logout, subjectID, bindingFact)
	return nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	out := *user
	out.PasswordHash = ""
	return &out, nil
}

func (s *Service) mintPair(subjectID, bindingFact string) (*RefreshResult, error) {
	access, err := s.tokens.MintAccess(subjectID, bindingFact)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.MintRefresh(subjectID, bindingFact)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) refreshExpiry() time.Time {
	return s.now().Add(jwtsvc.RefreshTTL)
}

// publish is best-effort; audit delivery never fails an auth operation.
func (s *Service) publish(ctx context.Context, typ events.Type, userID, ip string) {
	err := s.events.Publish(ctx, events.Event{
		Type:       typ,
		UserID:     userID,
		IP:         ip,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.log.WarnContext(ctx, "publish auth event", "type", string(typ), "user_id", userID, "error", err)
	}
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
