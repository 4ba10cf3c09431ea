package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrMissingToken = errors.New("missing token")
)

var jwtSecret string

func SetJWTSecret(secret string) {
	jwtSecret = secret
}

func getJWTSecret() (string, error) {
	if jwtSecret == "" {
		return "", errors.New("JWT secret is not set in config")
	}
	return jwtSecret, nil
}

var emailName = regexp.MustCompile(`^([^@]+)`)

// ExtractNameFromEmail extracts the username before '@'
func ExtractNameFromEmail(email string) string {
	match := emailName.FindStringSubmatch(email)
	if len(match) < 2 {
		return email
	}
	return match[1]
}

// JWT Functions
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Sub    string `json:"sub"`
	jwt.RegisteredClaims
}

// Identity is who a token belongs to.
type Identity struct {
	UserID string
	Email  string
}

// DisplayName is the fallback name used when no profile name is known.
func (id Identity) DisplayName() string {
	if id.Email != "" {
		return ExtractNameFromEmail(id.Email)
	}
	return id.UserID
}

func GenerateJWTToken(userID, email string, ttl time.Duration) (string, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signedToken, nil
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IdentityFromToken validates token and returns its owner. The user id
// falls back to the subject and then to the email.
func IdentityFromToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	claims, err := ParseJWTToken(token)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{UserID: claims.UserID, Email: claims.Email}
	if id.UserID == "" {
		id.UserID = claims.Sub
	}
	if id.UserID == "" {
		id.UserID = id.Email
	}
	if id.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header
// value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
