package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fruition-api/internal/cache"
	"fruition-api/internal/model"
	"fruition-api/pkg/clock"
)

const (
	// TokenPrefix is the prefix for all stream tokens
	TokenPrefix = "frt_"

	// TokenTTL is the default token lifetime
	TokenTTL = 10 * time.Minute

	tokenKeyPrefix = "token:"
)

// ErrInvalidToken is returned for unknown, malformed or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues stream tokens. Browsers cannot attach identity
// headers to an event stream, so the client trades its headers for a
// token and passes it as a query parameter.
type TokenService struct {
	kv    cache.Cache
	clock clock.Clock
	ttl   time.Duration
}

// NewTokenService creates a token service over kv. A ttl <= 0 uses TokenTTL.
func NewTokenService(kv cache.Cache, clk clock.Clock, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	return &TokenService{kv: kv, clock: clk, ttl: ttl}
}

// TTL returns the lifetime of new and refreshed tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// GenerateToken creates a new token for id.
func (s *TokenService) GenerateToken(ctx context.Context, id model.Identity) (string, *model.StreamTicket, error) {
	if id.UserID == "" {
		return "", nil, ErrAnonymous
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	now := s.clock.Now()
	ticket := &model.StreamTicket{
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store(ctx, token, ticket); err != nil {
		return "", nil, err
	}

	log.Printf("[TokenService] Generated token for %s, expires=%v", id.UserID, ticket.ExpiresAt)
	return token, ticket, nil
}

func (s *TokenService) store(ctx context.Context, token string, ticket *model.StreamTicket) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := s.kv.Set(ctx, tokenKeyPrefix+token, data, s.ttl); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *TokenService) load(ctx context.Context, token string) (*model.StreamTicket, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrInvalidToken
	}
	data, err := s.kv.Get(ctx, tokenKeyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var ticket model.StreamTicket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}
	return &ticket, nil
}

// ValidateToken checks a token and returns its ticket.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.StreamTicket, error) {
	ticket, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.clock.Now().After(ticket.ExpiresAt) {
		_ = s.kv.Delete(ctx, tokenKeyPrefix+token)
		return nil, ErrInvalidToken
	}
	return ticket, nil
}

// RevokeToken deletes a token.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, tokenKeyPrefix+token)
}

// RefreshToken extends the lifetime of a valid token.
func (s *TokenService) RefreshToken(ctx context.Context, token string) (*model.StreamTicket, error) {
	ticket, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	ticket.ExpiresAt = s.clock.Now().Add(s.ttl)
	if err := s.store(ctx, token, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}
