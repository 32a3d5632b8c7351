package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/identity"
)

type fakeUsers struct {
	users map[uuid.UUID]*identity.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetPhysicianByID(context.Context, uuid.UUID) (*identity.Physician, error) {
	return nil, identity.ErrPhysicianNotFound
}

func (f *fakeUsers) GetPhysicianByUser(context.Context, uuid.UUID) (*identity.Physician, error) {
	return nil, identity.ErrPhysicianNotFound
}

func (f *fakeUsers) GetPhysicianByLicense(context.Context, string) (*identity.Physician, error) {
	return nil, identity.ErrPhysicianNotFound
}

func (f *fakeUsers) GetClinicByID(context.Context, uuid.UUID) (*identity.Clinic, error) {
	return nil, identity.ErrClinicNotFound
}

func TestRequireRole(t *testing.T) {
	admin := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin}
	physician := &identity.User{ID: uuid.New(), Role: identity.RolePhysician}

	if err := RequireRole(admin, identity.RoleAdmin); err != nil {
		t.Errorf("admin should pass admin gate, got %v", err)
	}
	if err := RequireRole(physician, identity.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("physician at admin gate: want ErrForbidden, got %v", err)
	}
	if err := RequireRole(physician, identity.RoleAdmin, identity.RolePhysician); err != nil {
		t.Errorf("physician should pass multi-role gate, got %v", err)
	}
	if err := RequireRole(nil, identity.RoleAdmin); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("nil actor: want ErrUnauthenticated, got %v", err)
	}
}

func TestRequireSelfOrAdmin(t *testing.T) {
	ownerID := uuid.New()
	owner := &identity.User{ID: ownerID, Role: identity.RolePatient}
	admin := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin}
	other := &identity.User{ID: uuid.New(), Role: identity.RolePatient}

	if err := RequireSelfOrAdmin(owner, ownerID); err != nil {
		t.Errorf("owner should pass, got %v", err)
	}
	if err := RequireSelfOrAdmin(admin, ownerID); err != nil {
		t.Errorf("admin should pass, got %v", err)
	}
	if err := RequireSelfOrAdmin(other, ownerID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: want ErrForbidden, got %v", err)
	}
	if err := RequireSelfOrAdmin(nil, ownerID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("nil actor: want ErrUnauthenticated, got %v", err)
	}
}

func TestActorRoundTrip(t *testing.T) {
	actor := &identity.User{ID: uuid.New(), Role: identity.RolePhysician}
	ctx := WithActor(context.Background(), actor)

	got, err := ActorFrom(ctx)
	if err != nil {
		t.Fatalf("ActorFrom: %v", err)
	}
	if got.ID != actor.ID {
		t.Errorf("got actor %s, want %s", got.ID, actor.ID)
	}

	if _, err := ActorFrom(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("bare context: want ErrUnauthenticated, got %v", err)
	}
}

func TestStaticResolver(t *testing.T) {
	active := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true}
	inactive := &identity.User{ID: uuid.New(), Role: identity.RolePatient, IsActive: false}
	users := &fakeUsers{users: map[uuid.UUID]*identity.User{
		active.ID:   active,
		inactive.ID: inactive,
	}}
	resolver := NewStaticResolver(users)

	req := func(header string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("X-Acting-User", header)
		}
		return r
	}

	got, err := resolver.ResolveActor(context.Background(), req(active.ID.String()))
	if err != nil {
		t.Fatalf("resolve active user: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("got user %s, want %s", got.ID, active.ID)
	}

	cases := map[string]string{
		"missing header":   "",
		"malformed id":     "not-a-uuid",
		"unknown user":     uuid.NewString(),
		"deactivated user": inactive.ID.String(),
	}
	for name, header := range cases {
		if _, err := resolver.ResolveActor(context.Background(), req(header)); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: want ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestJWTResolver(t *testing.T) {
	const secret = "test-secret"
	active := &identity.User{ID: uuid.New(), Role: identity.RolePhysician, IsActive: true}
	inactive := &identity.User{ID: uuid.New(), Role: identity.RolePhysician, IsActive: false}
	users := &fakeUsers{users: map[uuid.UUID]*identity.User{
		active.ID:   active,
		inactive.ID: inactive,
	}}
	resolver := NewJWTResolver(secret, users)

	sign := func(sub string, key string, exp time.Time) string {
		claims := &Claims{
			Role: identity.RolePhysician,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return token
	}

	req := func(token string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return r
	}

	future := time.Now().Add(time.Hour)
	got, err := resolver.ResolveActor(context.Background(), req(sign(active.ID.String(), secret, future)))
	if err != nil {
		t.Fatalf("resolve valid token: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("got user %s, want %s", got.ID, active.ID)
	}

	cases := map[string]string{
		"wrong key":        sign(active.ID.String(), "other-secret", future),
		"expired":          sign(active.ID.String(), secret, time.Now().Add(-time.Hour)),
		"bad subject":      sign("not-a-uuid", secret, future),
		"unknown user":     sign(uuid.NewString(), secret, future),
		"deactivated user": sign(inactive.ID.String(), secret, future),
	}
	for name, token := range cases {
		if _, err := resolver.ResolveActor(context.Background(), req(token)); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: want ErrUnauthenticated, got %v", name, err)
		}
	}

	if _, err := resolver.ResolveActor(context.Background(), req("")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("missing header: want ErrUnauthenticated, got %v", err)
	}
}
