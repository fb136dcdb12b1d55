package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lingopulse/realtime-gateway/models"
)

const bearerPrefix = "Bearer "

// Authenticator validates gateway tokens signed with the realtime
// path's dedicated HMAC secret and extracts the caller's identity.
// It holds no mutable state and is safe for concurrent use.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Authenticate verifies the token's signature and expiry and returns
// the identity encoded in its claims. The token may carry the
// "Bearer " prefix or be bare. Every failure is an *Error.
func (a *Authenticator) Authenticate(tokenString string) (models.Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if strings.HasPrefix(tokenString, bearerPrefix) {
		tokenString = strings.TrimPrefix(tokenString, bearerPrefix)
	}
	if tokenString == "" {
		return models.Identity{}, newError(KindMalformed, errors.New("empty token"))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return models.Identity{}, classify(err)
	}
	if !token.Valid {
		return models.Identity{}, newError(KindSignature, nil)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, newError(KindMalformed, errors.New("unexpected claims type"))
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return models.Identity{}, newError(KindMalformed, errors.New("missing subject claim"))
	}

	identity := models.Identity{UserID: subject}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}
	identity.Scopes = parseScopes(claims["scopes"])

	return identity, nil
}

// Generate issues a signed gateway token for the given identity. Used
// by internal tooling and tests; the platform's auth service issues
// production tokens with the same claim set.
func (a *Authenticator) Generate(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identity.UserID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if identity.Role != "" {
		claims["role"] = identity.Role
	}
	if len(identity.Scopes) > 0 {
		claims["scopes"] = strings.Join(identity.Scopes, " ")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return newError(KindSignature, err)
	default:
		return newError(KindMalformed, err)
	}
}

// parseScopes accepts either a space-delimited string or a JSON array
// of strings, matching the two encodings the platform's token issuers
// produce.
func parseScopes(claim interface{}) []string {
	switch v := claim.(type) {
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(v)
	case []interface{}:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		if len(scopes) == 0 {
			return nil
		}
		return scopes
	default:
		return nil
	}
}
