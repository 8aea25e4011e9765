package utilities

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"quizcoach-backend/internal/config"
)

var (
	tokenMu       sync.RWMutex
	accessSecret  = []byte("change-me-access")
	refreshSecret = []byte("change-me-refresh")
	clientKeyHash []byte

	AccessTokenExpiry  = time.Minute * 15
	RefreshTokenExpiry = time.Hour * 24 * 7
)

var (
	ErrInvalidToken     = errors.New("invalid or malformed token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClientKey = errors.New("invalid client key")
)

// Claims carries the caller identity the transport maps onto a user id.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// ConfigureTokens installs secrets and lifetimes from the authentication config.
func ConfigureTokens(cfg config.AuthenticationConfig) {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	if cfg.AccessSecret != "" {
		accessSecret = []byte(cfg.AccessSecret)
	}
	if cfg.RefreshSecret != "" {
		refreshSecret = []byte(cfg.RefreshSecret)
	}
	if cfg.AccessTTL > 0 {
		AccessTokenExpiry = time.Duration(cfg.AccessTTL) * time.Minute
	}
	if cfg.RefreshTTL > 0 {
		RefreshTokenExpiry = time.Duration(cfg.RefreshTTL) * time.Hour
	}
	clientKeyHash = nil
	if cfg.ClientKeyHash != "" {
		clientKeyHash = []byte(cfg.ClientKeyHash)
	}
}

// CheckClientKey compares key with the configured bcrypt hash. Without a
// configured hash every key is accepted.
func CheckClientKey(key string) error {
	tokenMu.RLock()
	hash := clientKeyHash
	tokenMu.RUnlock()
	if len(hash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
		return ErrInvalidClientKey
	}
	return nil
}

// HashClientKey produces the value to put into CLIENT_KEY_HASH.
func HashClientKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// GenerateTokens creates both access and refresh tokens
func GenerateTokens(userID string) (string, string, error) {
	tokenMu.RLock()
	aSecret, rSecret := accessSecret, refreshSecret
	aTTL, rTTL := AccessTokenExpiry, RefreshTokenExpiry
	tokenMu.RUnlock()

	accessToken, err := generateToken(userID, aSecret, aTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := generateToken(userID, rSecret, rTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// ValidateToken verifies the token and extracts claims
func ValidateToken(tokenStr string, isRefresh bool) (*Claims, error) {
	tokenMu.RLock()
	secret := accessSecret
	if isRefresh {
		secret = refreshSecret
	}
	tokenMu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshTokens generates a new access and refresh token using a valid refresh token
func RefreshTokens(refreshToken string) (string, string, error) {
	claims, err := ValidateToken(refreshToken, true)
	if err != nil {
		return "", "", err
	}
	return GenerateTokens(claims.UserID)
}

func generateToken(userID string, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
