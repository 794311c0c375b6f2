package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/feed-pager/pkg/logging"
	"github.com/Sternrassler/feed-pager/pkg/pagination"
	"github.com/Sternrassler/feed-pager/pkg/querycache"
	"github.com/Sternrassler/feed-pager/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxLists = 256

	// Snapshots do not expire unless CACHE_TTL is set.
	defaultCacheTTL time.Duration = 0
)

func main() {
	logging.Setup(logging.ConfigFromEnv(os.Getenv))
	logger := logging.NewLogger(logging.ComponentProxy)

	// Configuration from environment
	port := getEnv("PORT", "8080")
	upstreamURL := getEnv("UPSTREAM_URL", "")
	userAgent := getEnv("USER_AGENT", "feed-pager/0.1.0")
	redisURL := getEnv("REDIS_URL", "")
	namespace := getEnv("CACHE_NAMESPACE", querycache.DefaultNamespace)
	cacheTTL := getEnvDuration("CACHE_TTL", defaultCacheTTL)
	cacheSize := getEnvInt("CACHE_SIZE", querycache.DefaultLRUSize)
	maxLists := getEnvInt("MAX_LISTS", defaultMaxLists)

	if upstreamURL == "" {
		log.Fatal().Msg("UPSTREAM_URL is required")
	}

	// Create source client
	sourceClient, err := source.New(source.DefaultConfig(upstreamURL, userAgent))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create source client")
	}

	// Setup query cache
	var store querycache.Store[json.RawMessage]
	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisURL,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

		store = querycache.NewRedisStore[json.RawMessage](redisClient, querycache.RedisConfig{
			Namespace: namespace,
			TTL:       cacheTTL,
		})
	} else {
		lruStore, err := querycache.NewLRUStore[json.RawMessage](cacheSize)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create LRU store")
		}
		store = lruStore
		logger.Info().Int("size", cacheSize).Msg("Using in-process query cache")
	}

	proxy, err := newProxy(proxyConfig{
		Source:   sourceClient,
		Store:    store,
		Redis:    redisClient,
		Lists:    pagination.DefaultConfig(),
		MaxLists: maxLists,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create proxy")
	}
	defer proxy.Close()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           proxy.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", upstreamURL).
			Str("user_agent", userAgent).
			Msg("Starting feed proxy server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}
