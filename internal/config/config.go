package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	RedisAddr       string
	RedisPassword   string
	MarketDataURL   string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	WebSocketOrigin string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.RedisAddr = os.Getenv("REDIS_ADDR")
	if c.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.MarketDataURL = strings.TrimSuffix(os.Getenv("MARKETDATA_URL"), "/")
	if c.MarketDataURL == "" {
		missing = append(missing, "MARKETDATA_URL")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		c.JWTTTL = time.Hour
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
