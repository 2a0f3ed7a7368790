package auth

import "github.com/golang-jwt/jwt/v5"

type Authenticator interface {
	GenerateTokens(claims Claims) (string, string, error)
	ValidateAccessToken(token string) (*jwt.Token, error)
	ValidateRefreshToken(token string) (*jwt.Token, error)
	ParseAccessClaims(token string) (*Claims, error)
}

// Claims is everything encoded into an access token. ActorID is the
// role-specific profile id, not the account id.
type Claims struct {
	ActorID     int64
	UserID      int64
	Role        string
	Roles       []string
	Permissions []string
}
