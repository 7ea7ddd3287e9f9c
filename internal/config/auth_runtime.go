package config

import (
	"fmt"
	"os"
	"strings"

	"taskmanager/internal/domain"
)

const (
	defaultJWTIssuer      = "task-manager-service"
	defaultBindingEnforce = "false"
	defaultRotationMode   = RotationAtomic
	defaultRevokeOnReuse  = "true"

	minProdSecretLen = 32
)

const (
	RotationAtomic   = "atomic"
	RotationTwoPhase = "two_phase"
)

type AuthRuntimeConfig struct {
	AppEnv             string
	AccessTokenSecret  string
	RefreshTokenSecret string
	JWTIssuer          string
	BindingEnforce     bool
	RotationMode       string
	RevokeOnReuse      bool
}

func LoadAuthRuntimeConfig() (*AuthRuntimeConfig, error) {
	cfg := &AuthRuntimeConfig{
		AppEnv:             appEnv(),
		AccessTokenSecret:  strings.TrimSpace(os.Getenv("ACCESS_TOKEN_SECRET")),
		RefreshTokenSecret: strings.TrimSpace(os.Getenv("REFRESH_TOKEN_SECRET")),
		JWTIssuer:          strings.TrimSpace(getEnv("JWT_ISSUER", defaultJWTIssuer)),
		BindingEnforce:     parseBoolEnv("BINDING_ENFORCE", defaultBindingEnforce),
		RotationMode:       strings.ToLower(strings.TrimSpace(getEnv("REFRESH_ROTATION", defaultRotationMode))),
		RevokeOnReuse:      parseBoolEnv("REVOKE_ON_REUSE", defaultRevokeOnReuse),
	}

	if err := validateAuthConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateAuthConfig(cfg *AuthRuntimeConfig) error {
	if cfg.AccessTokenSecret == "" {
		return fmt.Errorf("%w: ACCESS_TOKEN_SECRET must be set", domain.ErrConfiguration)
	}
	if cfg.RefreshTokenSecret == "" {
		return fmt.Errorf("%w: REFRESH_TOKEN_SECRET must be set", domain.ErrConfiguration)
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return fmt.Errorf("%w: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ", domain.ErrConfiguration)
	}
	if cfg.RotationMode != RotationAtomic && cfg.RotationMode != RotationTwoPhase {
		return fmt.Errorf("%w: REFRESH_ROTATION must be one of: %s, %s", domain.ErrConfiguration, RotationAtomic, RotationTwoPhase)
	}

	if isProdLike(cfg.AppEnv) {
		if len(cfg.AccessTokenSecret) < minProdSecretLen {
			return fmt.Errorf("%w: in prod/release ACCESS_TOKEN_SECRET must be at least %d bytes", domain.ErrConfiguration, minProdSecretLen)
		}
		if len(cfg.RefreshTokenSecret) < minProdSecretLen {
			return fmt.Errorf("%w: in prod/release REFRESH_TOKEN_SECRET must be at least %d bytes", domain.ErrConfiguration, minProdSecretLen)
		}
	}

	return nil
}

func appEnv() string {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = strings.TrimSpace(os.Getenv("ENV"))
	}
	if env == "" {
		env = "dev"
	}
	return strings.ToLower(env)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
