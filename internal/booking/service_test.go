package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/notify"
)

type fakeRepo struct {
	byID map[uuid.UUID]*Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[uuid.UUID]*Booking)}
}

func (r *fakeRepo) add(b *Booking) *Booking {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.byID[b.ID] = b
	return b
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := r.byID[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) Create(_ context.Context, b *Booking) (*Booking, error) {
	cp := *b
	created := r.add(&cp)
	out := *created
	return &out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	b, ok := r.byID[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) IncrementPushCount(_ context.Context, id uuid.UUID) (int, error) {
	b, ok := r.byID[id]
	if !ok {
		return 0, ErrBookingNotFound
	}
	b.STKSentCount++
	return b.STKSentCount, nil
}

func (r *fakeRepo) FindExpiredPending(_ context.Context, now time.Time) ([]Booking, error) {
	var out []Booking
	for _, b := range r.byID {
		if b.Status == StatusPendingPayment && b.ExpiresAt.Before(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByPatient(_ context.Context, patientID string) ([]Booking, error) {
	var out []Booking
	for _, b := range r.byID {
		if b.PatientID == patientID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByClinicDate(_ context.Context, clinicID, date string) ([]Booking, error) {
	var out []Booking
	for _, b := range r.byID {
		if b.ClinicID == clinicID && b.BookingDate == date {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListAll(context.Context) ([]Booking, error) {
	var out []Booking
	for _, b := range r.byID {
		out = append(out, *b)
	}
	return out, nil
}

type fakeNotifications struct {
	created []notify.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *notify.Notification) (*notify.Notification, error) {
	f.created = append(f.created, *n)
	cp := *n
	cp.ID = uuid.New()
	return &cp, nil
}

func (f *fakeNotifications) ListByUser(context.Context, string) ([]notify.Notification, error) {
	return nil, nil
}

func (f *fakeNotifications) UnreadCount(context.Context, string) (int, error) { return 0, nil }

func (f *fakeNotifications) MarkRead(context.Context, uuid.UUID) error { return nil }

func (f *fakeNotifications) MarkAllRead(context.Context, string) (int, error) { return 0, nil }

var testClinicID = uuid.New()

type fakeClinics struct {
	clinics map[uuid.UUID]*identity.Clinic
}

func newFakeClinics() *fakeClinics {
	return &fakeClinics{clinics: map[uuid.UUID]*identity.Clinic{
		testClinicID: {ID: testClinicID, Name: "Kisumu Specialist Clinic", IsActive: true},
	}}
}

func (f *fakeClinics) GetClinicByID(_ context.Context, id uuid.UUID) (*identity.Clinic, error) {
	c, ok := f.clinics[id]
	if !ok {
		return nil, identity.ErrClinicNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClinics) GetUserByID(context.Context, uuid.UUID) (*identity.User, error) {
	panic("unexpected GetUserByID")
}

func (f *fakeClinics) GetPhysicianByID(context.Context, uuid.UUID) (*identity.Physician, error) {
	panic("unexpected GetPhysicianByID")
}

func (f *fakeClinics) GetPhysicianByUser(context.Context, uuid.UUID) (*identity.Physician, error) {
	panic("unexpected GetPhysicianByUser")
}

func (f *fakeClinics) GetPhysicianByLicense(context.Context, string) (*identity.Physician, error) {
	panic("unexpected GetPhysicianByLicense")
}

func newTestService(ttl time.Duration) (*Service, *fakeRepo, *fakeNotifications) {
	repo := newFakeRepo()
	notifications := &fakeNotifications{}
	svc := NewService(repo, newFakeClinics(), notifications, audit.NopSink{}, ttl, zerolog.Nop())
	return svc, repo, notifications
}

func adminActor() *identity.User {
	return &identity.User{ID: uuid.New(), Role: identity.RoleAdmin, IsActive: true}
}

func physicianUser() *identity.User {
	return &identity.User{ID: uuid.New(), Role: identity.RolePhysician, IsActive: true}
}

func validCreateInput() CreateInput {
	return CreateInput{
		PatientID:      uuid.New().String(),
		PatientPhone:   "0712345678",
		STKPhoneNumber: "0712345678",
		ClinicID:       testClinicID.String(),
		SlotID:         "slot-1",
		BookingDate:    "2026-09-01",
		BookingTime:    "10:00",
		PaymentAmount:  1000,
	}
}

func TestCreateReservesWithExpiryWindow(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)
	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	b, err := svc.Create(context.Background(), adminActor(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != StatusPendingPayment {
		t.Errorf("expected pending-payment, got %s", b.Status)
	}
	if !b.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expected expiry at %s, got %s", fixed.Add(time.Hour), b.ExpiresAt)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)

	in := validCreateInput()
	in.PaymentAmount = 0
	if _, err := svc.Create(context.Background(), adminActor(), in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero amount, got %v", err)
	}

	in = validCreateInput()
	in.PatientPhone = ""
	if _, err := svc.Create(context.Background(), adminActor(), in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing phone, got %v", err)
	}

	in = validCreateInput()
	in.ClinicID = "clinic-1"
	if _, err := svc.Create(context.Background(), adminActor(), in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed clinic id, got %v", err)
	}
}

func TestCreateRejectsUnknownClinic(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)

	in := validCreateInput()
	in.ClinicID = uuid.New().String()
	if _, err := svc.Create(context.Background(), adminActor(), in); !errors.Is(err, identity.ErrClinicNotFound) {
		t.Fatalf("expected ErrClinicNotFound, got %v", err)
	}
}

func TestCreateRejectsInactiveClinic(t *testing.T) {
	repo := newFakeRepo()
	clinics := newFakeClinics()
	closed := uuid.New()
	clinics.clinics[closed] = &identity.Clinic{ID: closed, Name: "Closed Annex", IsActive: false}
	svc := NewService(repo, clinics, &fakeNotifications{}, audit.NopSink{}, time.Hour, zerolog.Nop())

	in := validCreateInput()
	in.ClinicID = closed.String()
	if _, err := svc.Create(context.Background(), adminActor(), in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for inactive clinic, got %v", err)
	}
}

func TestConfirmIsAdminOnly(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	b := repo.add(&Booking{Status: StatusPendingPayment, ExpiresAt: time.Now().Add(time.Hour)})

	_, err := svc.Confirm(context.Background(), physicianUser(), b.ID)
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for physician, got %v", err)
	}

	confirmed, err := svc.Confirm(context.Background(), adminActor(), b.ID)
	if err != nil {
		t.Fatalf("admin confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}
}

func TestConfirmRejectsExpiredReservation(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	b := repo.add(&Booking{Status: StatusPendingPayment, ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := svc.Confirm(context.Background(), adminActor(), b.ID)
	if !errors.Is(err, ErrBookingExpired) {
		t.Fatalf("expected ErrBookingExpired, got %v", err)
	}
}

func TestConfirmRejectsNonPending(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	b := repo.add(&Booking{Status: StatusCancelled, ExpiresAt: time.Now().Add(time.Hour)})

	_, err := svc.Confirm(context.Background(), adminActor(), b.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestExpireDueSweepsOverdueOnly(t *testing.T) {
	svc, repo, notifications := newTestService(time.Hour)
	now := time.Now()

	overdue := repo.add(&Booking{
		Status:      StatusPendingPayment,
		PatientID:   "patient-1",
		BookingDate: "2026-08-28",
		ExpiresAt:   now.Add(-time.Minute),
	})
	fresh := repo.add(&Booking{Status: StatusPendingPayment, ExpiresAt: now.Add(time.Hour)})
	alreadyConfirmed := repo.add(&Booking{Status: StatusConfirmed, ExpiresAt: now.Add(-time.Hour)})

	n, err := svc.ExpireDue(context.Background())
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if repo.byID[overdue.ID].Status != StatusExpired {
		t.Errorf("expected overdue booking expired, got %s", repo.byID[overdue.ID].Status)
	}
	if repo.byID[fresh.ID].Status != StatusPendingPayment {
		t.Errorf("fresh booking must stay pending, got %s", repo.byID[fresh.ID].Status)
	}
	if repo.byID[alreadyConfirmed.ID].Status != StatusConfirmed {
		t.Errorf("confirmed booking must not be touched, got %s", repo.byID[alreadyConfirmed.ID].Status)
	}
	if len(notifications.created) != 1 || notifications.created[0].UserID != "patient-1" {
		t.Errorf("expected one expiry notification for patient-1, got %+v", notifications.created)
	}
}

func TestExpireDueIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	repo.add(&Booking{Status: StatusPendingPayment, PatientID: "p", ExpiresAt: time.Now().Add(-time.Minute)})

	first, err := svc.ExpireDue(context.Background())
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second, err := svc.ExpireDue(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("expected sweeps (1, 0), got (%d, %d)", first, second)
	}
}

func TestListByPatientOwnershipGate(t *testing.T) {
	svc, repo, _ := newTestService(time.Hour)
	patient := &identity.User{ID: uuid.New(), Role: identity.RolePatient, IsActive: true}
	repo.add(&Booking{Status: StatusPendingPayment, PatientID: patient.ID.String()})

	own, err := svc.ListByPatient(context.Background(), patient, patient.ID.String())
	if err != nil {
		t.Fatalf("own bookings: %v", err)
	}
	if len(own) != 1 {
		t.Errorf("expected 1 booking, got %d", len(own))
	}

	_, err = svc.ListByPatient(context.Background(), patient, "someone-else")
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another patient's bookings, got %v", err)
	}
}

func TestListAllAdminOnly(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)
	_, err := svc.ListAll(context.Background(), physicianUser())
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for physician, got %v", err)
	}
}
