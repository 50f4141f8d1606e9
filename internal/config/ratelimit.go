package config

import "time"

// RateLimitConfig drives the Redis token bucket in front of the movie
// routes.  Capacity tokens are available per key; RefillTokens are added
// back every RefillInterval.  KeyStrategy is one of ip, route or ip_route.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refill_tokens"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
	TTL            time.Duration `mapstructure:"ttl"`
	KeyStrategy    string        `mapstructure:"key_strategy" validate:"oneof=ip route ip_route"`
	Prefix         string        `mapstructure:"prefix" validate:"required"`
	Debug          bool          `mapstructure:"debug"`
}

// normalize clamps values that would make the bucket unusable.  The TTL
// must outlive several refill intervals or idle buckets would reset to
// full capacity too early.
func (rl *RateLimitConfig) normalize() {
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
}
