package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/loykin/pushprobe/internal/common"
)

const defaultJWTTTL = 5 * time.Minute

// JWTConfig mints HS256 bearer tokens for backends that accept a shared
// secret, e.g. an admin token for the bookings endpoints.
type JWTConfig struct {
	Header   string         `mapstructure:"header"`
	Secret   string         `mapstructure:"secret"`
	TTL      time.Duration  `mapstructure:"ttl"`
	Subject  string         `mapstructure:"sub"`
	Issuer   string         `mapstructure:"iss"`
	Audience []string       `mapstructure:"aud"`
	Role     string         `mapstructure:"role"`
	Custom   map[string]any `mapstructure:"custom"`
}

// Issue returns a signed token valid for TTL (5 minutes when unset).
func (c JWTConfig) Issue(now time.Time) (string, error) {
	if c.Secret == "" {
		return "", errors.New("jwt: secret required")
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultJWTTTL
	}
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = c.Audience
	}
	if c.Role != "" {
		claims["role"] = c.Role
	}
	for k, v := range c.Custom {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}

// Method returns a Method minting a fresh token on every Acquire.
func (c JWTConfig) Method() (Method, error) {
	if c.Secret == "" {
		return nil, errors.New("jwt: secret required")
	}
	common.GetGlobalMasker().AddLiteral("jwt_secret", c.Secret)
	return jwtMethod{cfg: c}, nil
}

type jwtMethod struct{ cfg JWTConfig }

func (m jwtMethod) Acquire(_ context.Context) (string, string, error) {
	tok, err := m.cfg.Issue(time.Now())
	if err != nil {
		return "", "", err
	}
	return headerOrDefault(m.cfg.Header), "Bearer " + tok, nil
}

// VerifyOptions constrain token verification.
type VerifyOptions struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Verify parses an HS256 token (with or without the "Bearer " prefix) and
// returns its claims.
func Verify(secret []byte, token string, opts VerifyOptions) (jwt.MapClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt: secret not configured")
	}
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, errors.New("jwt: missing token")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(opts.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("jwt: invalid token")
	}
	return claims, nil
}
