package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// New connects from a redis:// URL and pings before handing the client out,
// so a bad address fails at startup rather than on the first login.
func New(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
