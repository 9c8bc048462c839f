package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidRefreshToken = errors.New("auth: invalid or expired refresh token")

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

// JWTService issues access tokens and tracks refresh tokens in redis so a
// logout revokes them immediately.
type JWTService struct {
	secretKey []byte
	redis     *redis.Client
}

func NewJWTService(secretKey string, redisClient *redis.Client) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		redis:     redisClient,
	}
}

func (s *JWTService) GenerateToken(userID int, username, displayName, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":      strconv.Itoa(userID),
		"username":     username,
		"display_name": displayName,
		"role":         role,
		"exp":          time.Now().Add(accessTokenTTL).Unix(),
		"iat":          time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return tokenString, nil
}

func (s *JWTService) GenerateRefreshToken(ctx context.Context, userID int) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	key := "refresh_token:" + token
	if err := s.redis.Set(ctx, key, userID, refreshTokenTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *JWTService) ValidateRefreshToken(ctx context.Context, token string) (int, error) {
	userID, err := s.redis.Get(ctx, "refresh_token:"+token).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidRefreshToken
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *JWTService) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.redis.Del(ctx, "refresh_token:"+token).Err()
}
