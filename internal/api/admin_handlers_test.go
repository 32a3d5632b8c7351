package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/identity"
)

type stubAuditLog struct {
	entries   []audit.Entry
	lastLimit int
}

func (s *stubAuditLog) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.lastLimit = limit
	return s.entries, nil
}

type stubIdentity struct {
	physician *identity.Physician
}

func (s *stubIdentity) GetPhysicianByLicense(_ context.Context, licenseID string) (*identity.Physician, error) {
	if s.physician == nil || s.physician.LicenseID != licenseID {
		return nil, identity.ErrPhysicianNotFound
	}
	cp := *s.physician
	return &cp, nil
}

func (s *stubIdentity) GetUserByID(context.Context, uuid.UUID) (*identity.User, error) {
	panic("unexpected GetUserByID")
}

func (s *stubIdentity) GetPhysicianByID(context.Context, uuid.UUID) (*identity.Physician, error) {
	panic("unexpected GetPhysicianByID")
}

func (s *stubIdentity) GetPhysicianByUser(context.Context, uuid.UUID) (*identity.Physician, error) {
	panic("unexpected GetPhysicianByUser")
}

func (s *stubIdentity) GetClinicByID(context.Context, uuid.UUID) (*identity.Clinic, error) {
	panic("unexpected GetClinicByID")
}

func adminRouter(actor *identity.User, logs audit.Lister, users identity.Repository) http.Handler {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(&stubResolver{actor: actor}))
	r.Get("/api/audit", listAuditHandler(logs))
	r.Get("/api/physicians/license/{licenseID}", getPhysicianByLicenseHandler(users))
	return r
}

func TestListAuditReturnsEntries(t *testing.T) {
	actorID := uuid.New()
	logs := &stubAuditLog{entries: []audit.Entry{
		{ID: 2, ActorID: &actorID, Action: "save_biodata", CreatedAt: time.Now()},
		{ID: 1, Action: "expire_booking", CreatedAt: time.Now().Add(-time.Minute)},
	}}
	admin := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?limit=25", nil)
	rec := httptest.NewRecorder()
	adminRouter(admin, logs, &stubIdentity{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if logs.lastLimit != 25 {
		t.Errorf("limit passed to store = %d, want 25", logs.lastLimit)
	}

	var out []AuditEntryResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(out) != 2 || out[0].Action != "save_biodata" {
		t.Errorf("unexpected entries: %+v", out)
	}
}

func TestListAuditRejectsNonAdmin(t *testing.T) {
	physician := &identity.User{ID: uuid.New(), Role: identity.RolePhysician, IsActive: true}

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	adminRouter(physician, &stubAuditLog{}, &stubIdentity{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestListAuditRejectsBadLimit(t *testing.T) {
	admin := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?limit=lots", nil)
	rec := httptest.NewRecorder()
	adminRouter(admin, &stubAuditLog{}, &stubIdentity{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetPhysicianByLicense(t *testing.T) {
	phys := &identity.Physician{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		LicenseID: "KMP-12345",
		Hospital:  "Coast General",
	}
	admin := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true}
	router := adminRouter(admin, &stubAuditLog{}, &stubIdentity{physician: phys})

	req := httptest.NewRequest(http.MethodGet, "/api/physicians/license/KMP-12345", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out PhysicianResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out.LicenseID != "KMP-12345" || out.Hospital != "Coast General" {
		t.Errorf("unexpected physician: %+v", out)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/physicians/license/KMP-99999", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown license: status = %d, want 404", rec.Code)
	}
}
