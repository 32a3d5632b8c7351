package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/identity"
)

// Claims carried by access tokens issued by the identity subsystem.
type Claims struct {
	Role identity.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver resolves the actor from a Bearer token. The user row is
// always loaded so that deactivated accounts are rejected even while
// their tokens are still live.
type JWTResolver struct {
	secret []byte
	users  identity.Repository
}

func NewJWTResolver(secret string, users identity.Repository) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), users: users}
}

func (j *JWTResolver) ResolveActor(ctx context.Context, r *http.Request) (*identity.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrUnauthenticated
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := j.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// StaticResolver resolves the actor from an X-Acting-User header carrying
// a user id. It exists for demos and tests only and still requires the
// referenced user to exist: there is no anonymous grant, and every
// request goes through the same role checks as production traffic.
type StaticResolver struct {
	users identity.Repository
}

func NewStaticResolver(users identity.Repository) *StaticResolver {
	return &StaticResolver{users: users}
}

func (s *StaticResolver) ResolveActor(ctx context.Context, r *http.Request) (*identity.User, error) {
	raw := r.Header.Get("X-Acting-User")
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}

	return user, nil
}
