package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration for the credential service.
type Server struct {
	Addr            string
	Environment     string
	JWTSigningKey   string
	AdminAddress    string
	ContentAPIURL   string
	ContentMode     string // "gateway" talks to the pinning API, "memory" runs in-process
	ContentTimeout  time.Duration
	InclusionWait   time.Duration
	ConfirmAttempts int
	ConfirmBackoff  time.Duration
	TokenTTL        time.Duration
}

// Confirmation defaults. InclusionWait bounds how long a single ledger write
// may take to land before it is reported unconfirmed; ConfirmAttempts and
// ConfirmBackoff drive the read-back retry loop.
var (
	DefaultInclusionWait  = 30 * time.Second
	DefaultContentTimeout = 15 * time.Second
	DefaultAttempts       = 3
	DefaultBackoff        = 2 * time.Second
	DefaultTokenTTL       = 15 * time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ATTEST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	env := os.Getenv("ATTEST_ENV")
	if env == "" {
		env = "dev"
	}

	contentAPI := os.Getenv("CONTENT_API_URL")
	if contentAPI == "" {
		contentAPI = "http://localhost:5001"
	}

	contentMode := os.Getenv("CONTENT_MODE")
	if contentMode == "" {
		contentMode = "gateway"
	}

	admin := os.Getenv("ATTEST_ADMIN_ADDRESS")
	if admin == "" {
		admin = "0xadmin"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:            addr,
		Environment:     env,
		JWTSigningKey:   jwtSigningKey,
		AdminAddress:    admin,
		ContentAPIURL:   contentAPI,
		ContentMode:     contentMode,
		ContentTimeout:  durationEnv("CONTENT_TIMEOUT", DefaultContentTimeout),
		InclusionWait:   durationEnv("INCLUSION_WAIT", DefaultInclusionWait),
		ConfirmAttempts: intFromEnv("CONFIRM_MAX_ATTEMPTS", DefaultAttempts),
		ConfirmBackoff:  durationEnv("CONFIRM_BACKOFF", DefaultBackoff),
		TokenTTL:        durationEnv("TOKEN_TTL", DefaultTokenTTL),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
