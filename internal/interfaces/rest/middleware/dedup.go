package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest"
)

// PushDeduper tracks already-processed push deliveries by their gateway
// unique id. The reconciler is idempotent anyway; dedup just short
// circuits the database work for redeliveries.
type PushDeduper interface {
	Seen(ctx context.Context, uniqueID string) (bool, error)
}

type redisPushDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisPushDeduper) Seen(ctx context.Context, uniqueID string) (bool, error) {
	key := d.prefix + ":" + uniqueID
	ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

type memoryPushDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryPushDeduper(ttl time.Duration) *memoryPushDeduper {
	now := time.Now()
	return &memoryPushDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryPushDeduper) Seen(_ context.Context, uniqueID string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[uniqueID]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[uniqueID] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for id, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, id)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewPushDeduper builds a Redis deduper and falls back to in-memory on
// failure.
func NewPushDeduper(cfg config.RedisConfig) (PushDeduper, error) {
	ttl := cfg.DedupTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if cfg.Addr == "" {
		return newMemoryPushDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryPushDeduper(ttl), err
	}

	return &redisPushDeduper{
		client: client,
		prefix: "push:unique",
		ttl:    ttl,
	}, nil
}

// Dedup drops a push delivery whose unique id was already seen. Dedup
// failures fail open: a duplicate reaching the reconciler is harmless, a
// dropped first delivery is not.
func Dedup(deduper PushDeduper, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, err := rest.FormParams(r)
			if err != nil {
				rest.WriteError(w, err, logger)
				return
			}

			uniqueID := params["IDENTIFICATION_UNIQUEID"]
			if uniqueID != "" {
				dup, err := deduper.Seen(r.Context(), params["PAYMENT_CODE"]+":"+uniqueID)
				if err != nil {
					logger.WarnContext(r.Context(), "push dedup check failed",
						slog.String("unique_id", uniqueID),
						slog.String("error", err.Error()),
					)
				} else if dup {
					logger.InfoContext(r.Context(), "duplicate push dropped",
						slog.String("unique_id", uniqueID),
					)
					w.WriteHeader(http.StatusOK)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
