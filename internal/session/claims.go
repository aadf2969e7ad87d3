package session

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
)

// idClaims are tried in order when a user record has no id.
var idClaims = []string{"user_id", "sub"}

// userIDFromToken reads the user id out of an access token without checking
// its signature. The value is only used to label the local session; the API
// still validates every request.
func userIDFromToken(token string) (domain.ID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	for _, name := range idClaims {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return domain.ID(v), nil
			}
		case float64:
			return domain.ID(strconv.FormatFloat(v, 'f', -1, 64)), nil
		}
	}
	return "", fmt.Errorf("access token has no %v claim", idClaims)
}
