package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/daraja"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/referral"
)

// biodataRepo holds a single referral and supports the calls the
// biodata flow makes. Everything else fails loudly.
type biodataRepo struct {
	ref *referral.Referral
}

func (r *biodataRepo) GetByID(_ context.Context, id uuid.UUID) (*referral.Referral, error) {
	if r.ref == nil || r.ref.ID != id {
		return nil, referral.ErrReferralNotFound
	}
	cp := *r.ref
	return &cp, nil
}

func (r *biodataRepo) SaveBiodata(_ context.Context, id uuid.UUID, b referral.Biodata) (*referral.Referral, error) {
	if r.ref == nil || r.ref.ID != id || r.ref.Status != referral.StatusPendingAdmin {
		return nil, referral.ErrReferralNotFound
	}
	r.ref.Status = referral.StatusPendingPayment
	r.ref.PatientPhone = &b.PatientPhone
	r.ref.STKPhoneNumber = &b.STKPhoneNumber
	cp := *r.ref
	return &cp, nil
}

func (r *biodataRepo) GetByToken(context.Context, string) (*referral.Referral, error) {
	panic("unexpected GetByToken")
}

func (r *biodataRepo) FindOpenByPatientID(context.Context, string) (*referral.Referral, error) {
	panic("unexpected FindOpenByPatientID")
}

func (r *biodataRepo) Create(context.Context, *referral.Referral) (*referral.Referral, error) {
	panic("unexpected Create")
}

func (r *biodataRepo) UpdateStatus(context.Context, uuid.UUID, referral.Status, referral.Status, *time.Time, *time.Time) (*referral.Referral, error) {
	panic("unexpected UpdateStatus")
}

func (r *biodataRepo) UpdatePhones(context.Context, uuid.UUID, string, string) (*referral.Referral, error) {
	panic("unexpected UpdatePhones")
}

func (r *biodataRepo) IncrementPushCount(context.Context, uuid.UUID) (int, error) {
	panic("unexpected IncrementPushCount")
}

func (r *biodataRepo) ListByPhysician(context.Context, uuid.UUID) ([]referral.Referral, error) {
	panic("unexpected ListByPhysician")
}

func (r *biodataRepo) ListByStatus(context.Context, referral.Status) ([]referral.Referral, error) {
	panic("unexpected ListByStatus")
}

func (r *biodataRepo) ListOpenForAdmin(context.Context) ([]referral.Referral, error) {
	panic("unexpected ListOpenForAdmin")
}

func (r *biodataRepo) ListCompleted(context.Context) ([]referral.Referral, error) {
	panic("unexpected ListCompleted")
}

type recordingPusher struct {
	calls int
	last  uuid.UUID
	err   error
}

func (p *recordingPusher) SendReferralPush(_ context.Context, _ *identity.User, id uuid.UUID) (*daraja.PushResult, error) {
	p.calls++
	p.last = id
	if p.err != nil {
		return nil, p.err
	}
	return &daraja.PushResult{Accepted: true, CheckoutRequestID: "ws_CO_test"}, nil
}

func biodataRouter(repo *biodataRepo, pusher *recordingPusher) http.Handler {
	svc := referral.NewService(repo, nil, audit.NopSink{}, zerolog.Nop())
	admin := &identity.User{ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(&stubResolver{actor: admin}))
	r.Post("/api/referrals/{id}/biodata", attachBiodataHandler(svc, pusher, zerolog.Nop()))
	return r
}

func postBiodata(t *testing.T, h http.Handler, id uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"patient_phone": "0712345678", "stk_phone_number": "254712345678"}`
	req := httptest.NewRequest(http.MethodPost, "/api/referrals/"+id.String()+"/biodata", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAttachBiodataStartsPaymentPush(t *testing.T) {
	id := uuid.New()
	repo := &biodataRepo{ref: &referral.Referral{
		ID:          id,
		PatientName: "Jane Wanjiku",
		Status:      referral.StatusPendingAdmin,
	}}
	pusher := &recordingPusher{}

	rec := postBiodata(t, biodataRouter(repo, pusher), id)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if pusher.calls != 1 {
		t.Fatalf("push initiations = %d, want 1", pusher.calls)
	}
	if pusher.last != id {
		t.Errorf("push sent for referral %s, want %s", pusher.last, id)
	}

	var resp ReferralResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(referral.StatusPendingPayment) {
		t.Errorf("status = %q, want %q", resp.Status, referral.StatusPendingPayment)
	}
}

func TestAttachBiodataSucceedsWhenPushFails(t *testing.T) {
	id := uuid.New()
	repo := &biodataRepo{ref: &referral.Referral{
		ID:          id,
		PatientName: "Jane Wanjiku",
		Status:      referral.StatusPendingAdmin,
	}}
	pusher := &recordingPusher{err: daraja.ErrGatewayUnavailable}

	rec := postBiodata(t, biodataRouter(repo, pusher), id)

	// Biodata is already committed; the prompt can be resent later.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if pusher.calls != 1 {
		t.Fatalf("push initiations = %d, want 1", pusher.calls)
	}
	if repo.ref.Status != referral.StatusPendingPayment {
		t.Errorf("referral status = %q, want %q", repo.ref.Status, referral.StatusPendingPayment)
	}
}

func TestAttachBiodataSkipsPushOnWrongState(t *testing.T) {
	id := uuid.New()
	repo := &biodataRepo{ref: &referral.Referral{
		ID:          id,
		PatientName: "Jane Wanjiku",
		Status:      referral.StatusPendingPayment,
	}}
	pusher := &recordingPusher{}

	rec := postBiodata(t, biodataRouter(repo, pusher), id)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if pusher.calls != 0 {
		t.Errorf("push initiations = %d, want 0", pusher.calls)
	}
}
