package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	baseURLVar       = "BASE_URL"
	issuerVar        = "ISSUER"
	audienceVar      = "AUDIENCE"
	loginURLVar      = "LOGIN_URL"
	redisVar         = "REDIS_ADDR"
	signingSecretVar = "SIGNING_SECRET"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Token Engine")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the base URL for the server (e.g., "https://auth.example.com")
// This is used for the issuer URL, redirect validation, and all OAuth endpoints
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetIssuer returns the issuer claim stamped into every signed token.
// Defaults to the base URL.
func (e EnvVars) GetIssuer() string {
	return GetEnv(issuerVar, e.GetBaseURL())
}

// GetAudience returns the audience claim stamped into access tokens and
// required back on verification.
func (EnvVars) GetAudience() string {
	return GetEnv(audienceVar, "api")
}

// GetSigningSecret returns the HMAC key tokens are signed with. There is no
// default: an empty secret is a fatal configuration error, never a fallback.
func (EnvVars) GetSigningSecret() string {
	return os.Getenv(signingSecretVar)
}

// GetLoginURL returns the external login page unauthenticated authorize
// requests are redirected to. User authentication itself lives outside
// this service.
func (e EnvVars) GetLoginURL() string {
	return GetEnv(loginURLVar, e.GetBaseURL()+"/login")
}

// GetRedisAddr returns the Redis address for the token denylist.
// Empty means the in-memory denylist is used.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
