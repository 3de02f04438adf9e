package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/auth"
	"gigline/internal/repo"
)

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
	// AllowLegacyPartyHeader trusts X-Party-Id without credentials. Local use only.
	AllowLegacyPartyHeader bool
	// AllowDevLogin exposes POST /auth/dev/login.
	AllowDevLogin bool
	Logger        *log.Logger
}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func callerFromRequest(ctx context.Context) (auth.Caller, huma.StatusError) {
	if c, ok := auth.CallerFromContext(ctx); ok {
		return c, nil
	}
	return auth.Caller{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (auth.Caller, error) {
	if strings.TrimSpace(key) == "" {
		return auth.Caller{}, errors.New("api key required")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return auth.Caller{}, err
	}
	if apiKey.PartyID == "" {
		return auth.Caller{}, errors.New("api key missing party")
	}
	return auth.Caller{PartyID: apiKey.PartyID, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware resolves the caller from a bearer JWT, an API key or, when
// allowed, the legacy X-Party-Id header. Unauthenticated requests are refused
// except for health, docs and dev login.
func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "openapi.json"):   true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			legacyParty := strings.TrimSpace(req.Header.Get("X-Party-Id"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				caller, err := auth.ParseToken(token, cfg.JWTSecret, cfg.JWTIssuer)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(auth.WithCaller(req.Context(), caller)))
				return
			}

			if apiKeyHeader != "" {
				caller, err := authenticateAPIKey(req.Context(), r, apiKeyHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(auth.WithCaller(req.Context(), caller)))
				return
			}

			if legacyParty != "" && cfg.AllowLegacyPartyHeader {
				cfg.logger().Printf("WARNING: using legacy X-Party-Id header without auth (party_id=%s)", legacyParty)
				ctx := auth.WithCaller(req.Context(), auth.Caller{PartyID: legacyParty, Source: "legacy_header"})
				next.ServeHTTP(w, req.WithContext(ctx))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
