package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisChallengeStore keeps challenges as hashes with a TTL and the
// request history as a sorted set scored by unix time. Needed when the
// API runs behind a load balancer: the verify call may land on a
// different instance than the request.
type redisChallengeStore struct {
	rdb *redis.Client
}

// NewRedisChallengeStore connects to the given Redis URL and verifies
// the connection before returning the store.
func NewRedisChallengeStore(ctx context.Context, redisURL string) (ChallengeStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &redisChallengeStore{rdb: rdb}, nil
}

func challengeKey(ref string) string { return "otp:challenge:" + ref }
func rateKeyOf(rateKey string) string { return "otp:rate:" + rateKey }

func (s *redisChallengeStore) Put(ctx context.Context, c *OTPChallenge) error {
	key := challengeKey(c.Ref)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"member_id":     c.MemberID.String(),
		"member_number": c.MemberNumber,
		"phone":         c.Phone,
		"code_hash":     c.CodeHash,
		"channel":       c.Channel,
		"destination":   c.Destination,
		"created_at":    c.CreatedAt,
		"expires_at":    c.ExpiresAt,
		"attempts":      c.Attempts,
		"rate_key":      c.RateKey,
	})
	pipe.ExpireAt(ctx, key, time.Unix(c.ExpiresAt, 0))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

func (s *redisChallengeStore) Get(ctx context.Context, ref string) (*OTPChallenge, error) {
	vals, err := s.rdb.HGetAll(ctx, challengeKey(ref)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	memberID, err := uuid.Parse(vals["member_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge record: %w", err)
	}
	createdAt, _ := strconv.ParseInt(vals["created_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(vals["expires_at"], 10, 64)
	attempts, _ := strconv.Atoi(vals["attempts"])
	return &OTPChallenge{
		Ref:          ref,
		MemberID:     memberID,
		MemberNumber: vals["member_number"],
		Phone:        vals["phone"],
		CodeHash:     vals["code_hash"],
		Channel:      vals["channel"],
		Destination:  vals["destination"],
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
		Attempts:     attempts,
		RateKey:      vals["rate_key"],
	}, nil
}

func (s *redisChallengeStore) Delete(ctx context.Context, ref string) error {
	return s.rdb.Del(ctx, challengeKey(ref)).Err()
}

func (s *redisChallengeStore) IncrementAttempts(ctx context.Context, ref string) (int, error) {
	key := challengeKey(ref)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check challenge: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	n, err := s.rdb.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return int(n), nil
}

func (s *redisChallengeStore) CountRecent(ctx context.Context, rateKey string, now time.Time, window time.Duration) (int, error) {
	key := rateKeyOf(rateKey)
	cutoff := now.Add(-window).Unix()
	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return int(card.Val()), nil
}

func (s *redisChallengeStore) RecordRequest(ctx context.Context, rateKey string, now time.Time, window time.Duration) error {
	key := rateKeyOf(rateKey)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}
