package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"openduel/models"
)

const identityKey = "identity"

// Claims are issued by the auth service; the server only verifies them.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   int    `json:"avatar"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() models.Identity {
	playerID := c.UserID
	if playerID == "" {
		playerID = c.Subject
	}
	return models.Identity{
		PlayerID: playerID,
		Username: c.Username,
		Name:     c.Name,
		Avatar:   c.Avatar,
	}
}

// AuthMiddleware accepts a bearer token, a "token" cookie or a "token" query
// parameter (browsers cannot set headers on websocket upgrades).
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		identity, err := ParseToken(jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

func ParseToken(jwtSecret, tokenString string) (models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, eris.Wrap(err, "failed to parse token")
	}
	if !token.Valid {
		return models.Identity{}, eris.New("token is not valid")
	}

	identity := claims.Identity()
	if identity.PlayerID == "" {
		return models.Identity{}, eris.New("token carries no player id")
	}
	return identity, nil
}

// SignToken issues an HS256 token for identity.
func SignToken(jwtSecret string, identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   identity.PlayerID,
		Username: identity.Username,
		Name:     identity.Name,
		Avatar:   identity.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.PlayerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		return "", eris.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}
