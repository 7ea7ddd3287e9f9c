package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/domain"
	"taskmanager/internal/logging"
	jwtsvc "taskmanager/internal/pkg/jwt"
	"taskmanager/internal/pkg/response"
)

const ContextUserID = "user_id"

type subjectCtxKey struct{}

var (
	errAuthHeaderMissing = fmt.Errorf("%w: authorization header missing", domain.ErrMissingToken)
	errAuthHeaderFormat  = fmt.Errorf("%w: authorization header is not a bearer token", domain.ErrMissingToken)
)

type TokenVerifier interface {
	VerifyAccess(token string) (*jwtsvc.Identity, error)
}

// BindingPolicy decides whether the ip claim must match the caller.
// Tokens minted without a binding fact always pass.
type BindingPolicy struct {
	Enforce bool
}

type guardRequest struct {
	header   string
	clientIP string
	token    string
	identity *jwtsvc.Identity
}

type guardStage func(req *guardRequest) error

// AccessGuard authenticates a request in fixed stages: bearer extraction,
// access token verification, binding check. The first failing stage wins.
type AccessGuard struct {
	stages []guardStage
}

func NewAccessGuard(tokens TokenVerifier, policy BindingPolicy) *AccessGuard {
	return &AccessGuard{
		stages: []guardStage{
			extractBearer,
			verifyAccess(tokens),
			checkBinding(policy),
		},
	}
}

func (g *AccessGuard) Authenticate(authHeader, clientIP string) (*jwtsvc.Identity, error) {
	req := &guardRequest{header: authHeader, clientIP: clientIP}
	for _, stage := range g.stages {
		if err := stage(req); err != nil {
			return nil, err
		}
	}
	return req.identity, nil
}

func (g *AccessGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := g.Authenticate(c.GetHeader("Authorization"), c.ClientIP())
		if err != nil {
			abortAuth(c, err)
			return
		}

		c.Set(ContextUserID, identity.SubjectID)
		ctx := WithSubject(c.Request.Context(), identity.SubjectID)
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", identity.SubjectID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func JWTAuth(tokens TokenVerifier, policy BindingPolicy) gin.HandlerFunc {
	return NewAccessGuard(tokens, policy).Middleware()
}

func extractBearer(req *guardRequest) error {
	header := strings.TrimSpace(req.header)
	if header == "" {
		return errAuthHeaderMissing
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return errAuthHeaderFormat
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return errAuthHeaderFormat
	}
	req.token = token
	return nil
}

func verifyAccess(tokens TokenVerifier) guardStage {
	return func(req *guardRequest) error {
		identity, err := tokens.VerifyAccess(req.token)
		if err != nil {
			return err
		}
		req.identity = identity
		return nil
	}
}

func checkBinding(policy BindingPolicy) guardStage {
	return func(req *guardRequest) error {
		if !policy.Enforce || req.identity.BindingFact == "" {
			return nil
		}
		if req.identity.BindingFact != req.clientIP {
			return domain.ErrBindingMismatch
		}
		return nil
	}
}

func abortAuth(c *gin.Context, err error) {
	log := logging.FromContext(c.Request.Context())

	switch {
	case errors.Is(err, errAuthHeaderMissing):
		response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
	case errors.Is(err, domain.ErrMissingToken):
		response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be: Bearer <token>")
	case errors.Is(err, domain.ErrInvalidToken):
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	case errors.Is(err, domain.ErrBindingMismatch):
		log.Warn("access token binding mismatch", "client_ip", c.ClientIP())
		response.Error(c, http.StatusForbidden, "BINDING_MISMATCH", "Token is not valid for this client")
	default:
		log.Error("access guard failure", "error", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
	c.Abort()
}

func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectCtxKey{}, subjectID)
}

// SubjectFromContext returns the authenticated user id set by the guard.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectCtxKey{}).(string)
	return id, ok && id != ""
}

// UserID reads the authenticated user id from a gin context.
func UserID(c *gin.Context) (string, bool) {
	if id := c.GetString(ContextUserID); id != "" {
		return id, true
	}
	return SubjectFromContext(c.Request.Context())
}
