package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	keyPrefix = "storefront:voucher:"
	// missingMarker caches a code the table does not know.
	missingMarker = "-"
)

// CachedVoucherRepository is a read-through Redis cache in front of another
// VoucherRepository. Concurrent misses for one code share a single backend lookup.
// Redis failures degrade to the backend.
type CachedVoucherRepository struct {
	next       repository.VoucherRepository
	client     *redis.Client
	ttl        time.Duration
	missingTTL time.Duration
	group      singleflight.Group
	logger     *slog.Logger
}

// NewCachedVoucherRepository wraps next. Unknown codes are remembered for a tenth of ttl.
func NewCachedVoucherRepository(next repository.VoucherRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedVoucherRepository {
	return &CachedVoucherRepository{
		next:       next,
		client:     client,
		ttl:        ttl,
		missingTTL: ttl / 10,
		logger:     logger,
	}
}

// Lookup serves code from Redis, falling back to the backend on a miss.
func (r *CachedVoucherRepository) Lookup(ctx context.Context, code string) (*domain.Voucher, error) {
	key := keyPrefix + code

	raw, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == missingMarker {
			return nil, apperrors.NotFound("voucher", code)
		}
		var v domain.Voucher
		if jsonErr := json.Unmarshal([]byte(raw), &v); jsonErr == nil {
			return &v, nil
		}
		r.logger.WarnContext(ctx, "discarding corrupt voucher cache entry", slog.String("code", code))
	case errors.Is(err, redis.Nil):
	default:
		r.logger.WarnContext(ctx, "voucher cache read failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	res, err, _ := r.group.Do(code, func() (any, error) {
		v, err := r.next.Lookup(ctx, code)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				r.store(ctx, key, missingMarker, r.missingTTL)
			}
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal voucher: %w", err)
		}
		r.store(ctx, key, string(b), r.ttl)
		return v, nil
	})
	if err != nil {
		return nil, err
	}

	v := *res.(*domain.Voucher)
	return &v, nil
}

func (r *CachedVoucherRepository) store(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "voucher cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
