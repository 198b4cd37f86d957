// Package app wires the gateway process together: configuration,
// persistence, caches, the completion pipeline and the management API.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/cache"
	"github.com/cencori/gateway/internal/config"
	"github.com/cencori/gateway/internal/db"
	"github.com/cencori/gateway/internal/gateway"
	admin "github.com/cencori/gateway/internal/http/api/admin"
	"github.com/cencori/gateway/internal/provider"
	"github.com/cencori/gateway/internal/ratelimit"
	"github.com/cencori/gateway/internal/usage"
	"github.com/cencori/gateway/internal/vault"
	"github.com/cencori/gateway/internal/watcher"
	"github.com/cencori/gateway/internal/webhooks"
)

const (
	shutdownTimeout      = 10 * time.Second
	rateLimitRedisPrefix = "cencori:rl"
)

// Migrate opens the database and applies migrations.
func Migrate(configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the gateway and blocks until ctx is canceled or the
// listener fails.
func RunServer(ctx context.Context, configPath string) error {
	path := config.ResolveConfigPath(configPath)
	cfg, errLoad := config.Load(path)
	if errLoad != nil {
		return errLoad
	}

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := SeedAdminFromEnv(conn); errSeed != nil {
		return errSeed
	}

	v, errVault := vault.New(cfg.Vault.MasterKey)
	if errVault != nil {
		return errVault
	}

	// The holder carries the live config revision; the file watcher swaps
	// it so platform keys and limiter settings rotate without a restart.
	holder := &atomic.Pointer[config.Config]{}
	holder.Store(cfg)

	exact, semantic := buildCaches(cfg)

	limiter := ratelimit.NewManager(func() ratelimit.Config {
		current := holder.Load()
		return ratelimit.Config{
			RedisEnabled:  strings.TrimSpace(current.Redis.Addr) != "",
			RedisAddr:     current.Redis.Addr,
			RedisPassword: current.Redis.Password,
			RedisPrefix:   rateLimitRedisPrefix,
			RedisDB:       current.Redis.DB,
		}
	}, nil, nil)

	dispatcher := webhooks.NewDispatcher(conn)
	router := provider.NewRouter(
		provider.NewOpenAIClient(""),
		provider.NewAnthropicClient(""),
	)

	pipeline := gateway.NewPipeline(gateway.Options{
		DB:         conn,
		Vault:      v,
		Exact:      exact,
		Semantic:   semantic,
		Dispatcher: dispatcher,
		Router:     router,
		Recorder:   usage.NewRecorder(conn),
		Limiter:    limiter,
		PlatformKey: func(name string) string {
			return holder.Load().PlatformKey(name)
		},
		SafetyEnabled: cfg.Safety.Enabled,
	})

	engine := buildEngine(pipeline, conn, cfg.JWT, v)

	cw := watcher.New(path, func(next *config.Config) { holder.Store(next) })
	if errWatch := cw.Start(ctx); errWatch != nil {
		log.WithError(errWatch).Warn("config watcher unavailable, continuing without hot reload")
	}
	defer func() { _ = cw.Stop() }()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Error("server shutdown failed")
		}
	}()

	log.Infof("gateway listening on %s", cfg.Server.Addr)
	errListen := srv.ListenAndServe()

	// Let in-flight webhook deliveries finish before the process exits.
	dispatcher.Wait()

	if errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// buildCaches constructs both response cache tiers, or neither when Redis
// is not configured. The gateway serves fine without them.
func buildCaches(cfg *config.Config) (*cache.ExactCache, *cache.SemanticCache) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		log.Warn("redis not configured, response caching disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	exact := cache.NewExactCache(cache.NewRedisKV(client), cfg.Cache.ExactTTL)
	semantic := cache.NewSemanticCache(
		cache.NewRedisVectorStore(client),
		buildEmbedder(cfg),
		cfg.Cache.SimilarityThreshold,
	)
	return exact, semantic
}

// buildEmbedder selects the embedding backend for the semantic tier.
func buildEmbedder(cfg *config.Config) cache.Embedder {
	if strings.EqualFold(strings.TrimSpace(cfg.Cache.EmbeddingsMode), "openai") {
		if key := cfg.PlatformKey(provider.NameOpenAI); key != "" {
			return cache.NewOpenAIEmbedder(key, "", "")
		}
		log.Warn("embeddings-mode openai requires a platform openai key, using mock embedder")
	}
	return cache.MockEmbedder{}
}

// buildEngine assembles the HTTP surface: the completion endpoint, the
// management API and Prometheus metrics.
func buildEngine(pipeline *gateway.Pipeline, conn *gorm.DB, jwtCfg config.JWTConfig, v *vault.Vault) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	gateway.NewHandler(pipeline).RegisterRoutes(engine)
	admin.RegisterAdminRoutes(engine, conn, jwtCfg, v)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}
