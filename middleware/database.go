package middleware

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/yourusername/footprint/db"
)

// dbCheckInterval is how long a successful ping is trusted before the next
// request checks again.
const dbCheckInterval = time.Second

// DBPing guards the history routes. It pings the database, tries one
// reconnect when the ping fails, and answers 503 if that fails too.
func DBPing() fiber.Handler {
	var lastOK atomic.Int64
	return func(c *fiber.Ctx) error {
		if time.Since(time.Unix(0, lastOK.Load())) < dbCheckInterval {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Printf("History: database ping failed (%v), reconnecting", err)
			if err := db.Reconnect(); err != nil {
				log.Printf("History: reconnect failed: %v", err)
				return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Database connection is down",
				})
			}
			log.Printf("History: reconnected to database")
		}
		lastOK.Store(time.Now().UnixNano())
		return c.Next()
	}
}
