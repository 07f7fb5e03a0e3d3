package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter tracks authentication abuse in redis. Counters expire on
// their own; a burst of login failures bans the source IP for an hour.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts  = 5
	loginAttemptTTL   = 10 * time.Minute
	loginBanTTL       = 1 * time.Hour
	verifyMaxAttempts = 5
	verifyAttemptTTL  = 10 * time.Minute

	// EmailCooldown spaces out outbound mail per address.
	EmailCooldown = 60 * time.Second
)

func (r *RateLimiter) loginAttemptKey(ip string) string {
	return "login_attempts:" + ip
}

func (r *RateLimiter) loginBanKey(ip string) string {
	return "login_ban:" + ip
}

func (r *RateLimiter) verifyAttemptKey(email string) string {
	return "verify_attempts:" + strings.ToLower(email)
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	exists, _ := r.Redis.Exists(ctx, r.loginBanKey(ip)).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	key := r.loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, r.loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.Redis.Del(ctx, r.loginAttemptKey(ip))
}

// RegisterVerifyAttempt throttles verification guesses per email address.
func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, email string) (bool, time.Duration, error) {
	key := r.verifyAttemptKey(email)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, verifyAttemptTTL)
	}
	if attempts >= verifyMaxAttempts {
		ttl, _ := r.Redis.TTL(ctx, key).Result()
		return true, ttl, nil
	}
	return false, 0, nil
}

func (r *RateLimiter) ResetVerify(ctx context.Context, email string) {
	r.Redis.Del(ctx, r.verifyAttemptKey(email))
}

// CooldownTTL returns the remaining cooldown for a key, zero when none.
func (r *RateLimiter) CooldownTTL(ctx context.Context, key string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetCooldown(ctx context.Context, key string, ttl time.Duration) {
	r.Redis.Set(ctx, key, "1", ttl)
}
