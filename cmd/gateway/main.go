package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/api"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/audit"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/config"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/connector"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/intent"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/pipeline"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/history"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/rules"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ratelimit"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/telemetry"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/tenants"

	_ "github.com/lib/pq" // Postgres driver, used when DATABASE_URL is set
)

// ANSI colors, matching helm's boot-banner style.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	os.Exit(Run())
}

// Run is the server entrypoint, separated from main for testability.
func Run() int {
	fmt.Fprintf(os.Stdout, "%sedon-gateway starting...%s\n", colorBold+colorBlue, colorReset)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[edon-gateway] config: %v", err)
	}

	if cfg.LiteMode() {
		fmt.Fprintf(os.Stdout, "%sDATABASE_URL not set; running in Lite Mode (embedded SQLite)%s\n", colorCyan, colorReset)
	}

	ctx := context.Background()

	dataDir := "data"
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		log.Fatalf("[edon-gateway] create data dir: %v", err)
	}
	sqlitePath := filepath.Join(dataDir, "edon-gateway.db")

	s, err := store.Open(ctx, cfg.DatabaseURL, sqlitePath)
	if err != nil {
		log.Fatalf("[edon-gateway] store: %v", err)
	}
	defer func() { _ = s.Close() }()
	log.Println("[edon-gateway] store: ready")

	encKey, err := loadOrGenerateEncryptionKey(cfg)
	if err != nil {
		log.Fatalf("[edon-gateway] credentials: %v", err)
	}
	vault, err := credentials.New(s, encKey)
	if err != nil {
		log.Fatalf("[edon-gateway] credentials: %v", err)
	}

	ruleSet, err := rules.NewSet()
	if err != nil {
		log.Fatalf("[edon-gateway] rules: %v", err)
	}

	evalCfg := policy.DefaultConfig()
	evalCfg.MaxActionsPerMinute = cfg.MaxActionsPerMinute
	evalCfg.LoopDetectionWindow = cfg.LoopDetectionWindow
	evalCfg.LoopDetectionThreshold = cfg.LoopDetectionThreshold
	evalCfg.WorkHoursStart = cfg.WorkHoursStart
	evalCfg.WorkHoursEnd = cfg.WorkHoursEnd
	evaluator := policy.NewEvaluator(evalCfg, ruleSet)

	h := history.New()
	intents := intent.New(s)
	rec := audit.New(s)
	tp := tenants.New(s)

	sampleRate := 1.0
	if cfg.IsProduction() {
		sampleRate = 0.1
	}
	tel := telemetry.New("edon-gateway", cfg.Environment, sampleRate)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	connectors := connector.NewRegistry(vault, connector.Options{
		FilesystemRoot:       cfg.FilesystemRoot,
		DelegatedToolBaseURL: cfg.DelegatedToolBaseURL,
		SearchBaseURL:        cfg.BraveSearchBaseURL,
		MemoryStore:          s,
	})

	// JWT-backed sessions are optional: unset without a JWKS endpoint
	// configured, the resolver simply never matches a JWT and falls through
	// to its other resolution paths.
	var jwtValidator *auth.JWTValidator
	resolver := auth.NewResolver(s, jwtValidator, cfg.EnvToken, !cfg.IsProduction() || cfg.AllowEnvTokenInProd)

	var counter ratelimit.Counter = s
	if cfg.RedisURL != "" {
		redisCounter, err := ratelimit.NewRedisCounter(cfg.RedisURL)
		if err != nil {
			log.Fatalf("[edon-gateway] ratelimit: %v", err)
		}
		if err := redisCounter.Ping(ctx); err != nil {
			log.Fatalf("[edon-gateway] ratelimit: redis ping: %v", err)
		}
		defer func() { _ = redisCounter.Close() }()
		counter = redisCounter
		log.Println("[edon-gateway] ratelimit: redis-backed counters")
	}

	limiter := ratelimit.New(
		counter,
		ratelimit.Limits{PerMinute: cfg.RateLimitPerMinute, PerHour: cfg.RateLimitPerHour, PerDay: cfg.RateLimitPerDay},
		ratelimit.Limits{PerMinute: cfg.RateLimitPerMinute / 4, PerHour: cfg.RateLimitPerHour / 4, PerDay: cfg.RateLimitPerDay / 4},
		ratelimit.Limits{PerMinute: cfg.RateLimitPerMinute * 4, PerHour: cfg.RateLimitPerHour * 4, PerDay: cfg.RateLimitPerDay * 4},
	)

	var magVerifier pipeline.MagVerifier
	if cfg.MAGEnabled {
		magVerifier = pipeline.NewHTTPMagVerifier(cfg.MAGEndpoint)
	}

	gw := api.New(s, resolver, evaluator, h, intents, vault, connectors, rec, tel, tp, cfg)
	router := api.Router(gw, limiter, magVerifier)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[edon-gateway] ready: http://localhost:%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[edon-gateway] server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[edon-gateway] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[edon-gateway] shutdown error: %v", err)
	}
	return 0
}

// loadOrGenerateEncryptionKey derives the 32-byte AES key the vault needs
// from the configured secret via HKDF-SHA256, rather than using the secret
// (or its raw hash) directly, so a short or low-entropy
// EDON_CREDENTIAL_ENCRYPTION_KEY still yields a uniformly-distributed AES
// key. Falls back to a deterministic development key so Lite Mode boots
// without any setup. Never used when CredentialsStrict is set — Validate
// already rejected that combination.
func loadOrGenerateEncryptionKey(cfg *config.Config) ([]byte, error) {
	secret := cfg.CredentialEncryptionKey
	if secret == "" {
		slog.Warn("EDON_CREDENTIAL_ENCRYPTION_KEY is unset; using an insecure development key")
		secret = "edon-gateway-dev-key-do-not-use-in-production"
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("edon-gateway credential vault v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive credential encryption key: %w", err)
	}
	return key, nil
}
