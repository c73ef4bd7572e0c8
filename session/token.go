package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/saiset-co/sai-feed/types"
)

// UserFromToken decodes the user claims of an access token without checking
// its signature and rejects tokens expired at now.
func UserFromToken(token string, now time.Time) (*types.User, error) {
	if token == "" {
		return nil, types.ErrTokenInvalid
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, types.Errorf(types.ErrTokenInvalid, "%v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, types.Errorf(types.ErrTokenInvalid, "unexpected claims type")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, types.Errorf(types.ErrTokenInvalid, "missing exp claim")
	}

	if !exp.After(now) {
		return nil, types.Errorf(types.ErrSessionExpired, "token expired at %s", exp.Format(time.RFC3339))
	}

	return &types.User{
		ID:       claimString(claims, "sub"),
		Name:     claimString(claims, "name"),
		Email:    claimString(claims, "email"),
		Fakultas: claimString(claims, "fakultas"),
		Avatar:   claimString(claims, "avatar"),
		Role:     claimString(claims, "role"),
	}, nil
}

func claimString(claims jwt.MapClaims, name string) string {
	value, ok := claims[name]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
