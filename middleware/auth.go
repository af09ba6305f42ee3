package middleware

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// Claims identifies the caller of the history API. Subject is a free-form
// operator name recorded in the token.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const historyScope = "reports:read"

var ErrNoSecret = errors.New("JWT_SECRET is not set")

func getJWTSecret() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, ErrNoSecret
	}
	return []byte(secret), nil
}

// GenerateToken signs a history token for subject valid for ttl.
func GenerateToken(subject string, ttl time.Duration) (string, time.Time, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	expires := now.Add(ttl)
	claims := Claims{
		Scope: historyScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func parseToken(tokenString string) (*Claims, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Scope != historyScope {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Protected requires a valid bearer token issued by GenerateToken.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Get("Authorization")
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims, err := parseToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrNoSecret) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "History API is not configured",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals("subject", claims.Subject)
		return c.Next()
	}
}

func GetSubject(c *fiber.Ctx) string {
	subject, ok := c.Locals("subject").(string)
	if !ok {
		return ""
	}
	return subject
}
