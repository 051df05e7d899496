package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter returns a Gin middleware that limits requests per IP. With a
// Redis client the counters are shared across instances.
func RateLimiter(perMinute int, client redis.UniversalClient) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 100
	}
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  int64(perMinute),
	}

	store := memory.NewStore()
	if client != nil {
		if shared, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "campus_limiter"}); err == nil {
			store = shared
		}
	}

	return ginlimiter.NewMiddleware(limiter.New(store, rate))
}
