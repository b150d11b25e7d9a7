package registration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
)

// fakeRepo is an in-memory Repository. WithTx serializes callers with a
// mutex, which mirrors the row-lock serialization the gorm implementation
// gets from SELECT ... FOR UPDATE.
type fakeRepo struct {
	mu            sync.Mutex
	registrations map[uint]*models.Registration
	events        map[uint]*models.Event
	categories    map[uint]*models.EventCategory
	kits          map[uint]*models.EventKit
	nextID        uint

	// codeCollisions forces ConfirmationCodeExists to report a clash for the
	// first N calls, to exercise the retry loop.
	codeCollisions int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		registrations: make(map[uint]*models.Registration),
		events:        make(map[uint]*models.Event),
		categories:    make(map[uint]*models.EventCategory),
		kits:          make(map[uint]*models.EventKit),
	}
}

func (f *fakeRepo) WithTx(fn func(Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f)
}

func (f *fakeRepo) GetRegistration(id uint) (*models.Registration, error) {
	reg, ok := f.registrations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRepo) GetRegistrationForUpdate(id uint) (*models.Registration, error) {
	return f.GetRegistration(id)
}

func (f *fakeRepo) GetRegistrationByCode(code string) (*models.Registration, error) {
	for _, reg := range f.registrations {
		if reg.ConfirmationCode == code {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateRegistration(reg *models.Registration) error {
	f.nextID++
	reg.ID = f.nextID
	cp := *reg
	f.registrations[reg.ID] = &cp
	return nil
}

func (f *fakeRepo) SaveRegistration(reg *models.Registration) error {
	cp := *reg
	f.registrations[reg.ID] = &cp
	return nil
}

func (f *fakeRepo) ConfirmationCodeExists(code string) (bool, error) {
	if f.codeCollisions > 0 {
		f.codeCollisions--
		return true, nil
	}
	_, err := f.GetRegistrationByCode(code)
	return err == nil, nil
}

func (f *fakeRepo) CountActiveByCategory(categoryID uint) (int64, error) {
	var n int64
	for _, reg := range f.registrations {
		if reg.CategoryID == categoryID && !reg.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) GetEvent(id uint) (*models.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return ev, nil
}

func (f *fakeRepo) GetCategoryForUpdate(id uint) (*models.EventCategory, error) {
	cat, ok := f.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cat, nil
}

func (f *fakeRepo) GetKit(id uint) (*models.EventKit, error) {
	kit, ok := f.kits[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return kit, nil
}

type fakeLedger struct {
	reversed []uint
}

func (l *fakeLedger) ReverseOnCancellation(ctx context.Context, registrationID uint) error {
	l.reversed = append(l.reversed, registrationID)
	return nil
}

func seedEvent(f *fakeRepo) {
	f.events[1] = &models.Event{
		ID:          1,
		OrganizerID: 50,
		Name:        "Corrida da Primavera",
		Status:      models.EventStatusPublished,
		EventDate:   time.Now().Add(30 * 24 * time.Hour),
	}
	f.categories[1] = &models.EventCategory{ID: 1, EventID: 1, Name: "10K", PriceCents: 10000, MaxSlots: 2}
	f.kits[1] = &models.EventKit{ID: 1, EventID: 1, Name: "Kit Camiseta", PriceCents: 3500}
	f.kits[2] = &models.EventKit{ID: 2, EventID: 9, Name: "Other Event Kit", PriceCents: 1000}
}

func TestCreateRegistration(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	svc := NewService(repo, nil)

	kitID := uint(1)
	reg, err := svc.Create(context.Background(), CreateInput{
		EventID:       1,
		CategoryID:    1,
		KitID:         &kitID,
		HolderID:      7,
		RegisteredBy:  7,
		PaymentMethod: models.BillingTypePix,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationStatusPending, reg.Status)
	assert.Equal(t, models.RegistrationPaymentPending, reg.PaymentStatus)
	assert.Equal(t, int64(13500), reg.TotalAmountCents)
	assert.True(t, strings.HasPrefix(reg.ConfirmationCode, "CP-"))
}

func TestCreateRegistrationCodeCollisionRetry(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	repo.codeCollisions = 2
	svc := NewService(repo, nil)

	reg, err := svc.Create(context.Background(), CreateInput{
		EventID: 1, CategoryID: 1, HolderID: 7, RegisteredBy: 7,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ConfirmationCode)
}

func TestCreateRegistrationCapacity(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	svc := NewService(repo, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(context.Background(), CreateInput{
			EventID: 1, CategoryID: 1, HolderID: uint(10 + i), RegisteredBy: uint(10 + i),
		})
		require.NoError(t, err)
	}

	_, err := svc.Create(context.Background(), CreateInput{
		EventID: 1, CategoryID: 1, HolderID: 30, RegisteredBy: 30,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "capacity")
}

func TestCreateRegistrationKitMismatch(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	svc := NewService(repo, nil)

	kitID := uint(2) // belongs to event 9
	_, err := svc.Create(context.Background(), CreateInput{
		EventID: 1, CategoryID: 1, KitID: &kitID, HolderID: 7, RegisteredBy: 7,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestApplyPaymentConfirmedIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	svc := NewService(repo, nil)

	reg, err := svc.Create(context.Background(), CreateInput{
		EventID: 1, CategoryID: 1, HolderID: 7, RegisteredBy: 7,
	})
	require.NoError(t, err)

	changed, err := svc.ApplyPaymentConfirmed(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.ApplyPaymentConfirmed(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.False(t, changed, "second confirmation must be a no-op")

	stored, err := svc.Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusConfirmed, stored.Status)
	assert.Equal(t, models.RegistrationPaymentPaid, stored.PaymentStatus)
}

func TestCancelReversesCommissionAndIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	ledger := &fakeLedger{}
	svc := NewService(repo, ledger)

	reg, err := svc.Create(context.Background(), CreateInput{
		EventID: 1, CategoryID: 1, HolderID: 7, RegisteredBy: 7,
	})
	require.NoError(t, err)
	_, err = svc.ApplyPaymentConfirmed(context.Background(), reg.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), reg.ID, 99))
	assert.Equal(t, []uint{reg.ID}, ledger.reversed)

	// Terminal: further mutations are conflicts.
	err = svc.Cancel(context.Background(), reg.ID, 99)
	assert.True(t, apperr.IsConflict(err))
	_, err = svc.ApplyPaymentConfirmed(context.Background(), reg.ID)
	assert.True(t, apperr.IsConflict(err))
	err = svc.TransferHolder(context.Background(), reg.ID, 42)
	assert.True(t, apperr.IsConflict(err))

	stored, err := svc.Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusCancelled, stored.Status)
}

func TestTransferHolder(t *testing.T) {
	repo := newFakeRepo()
	seedEvent(repo)
	svc := NewService(repo, nil)

	reg, err := svc.Create(context.Background(), CreateInput{
		EventID: 1, CategoryID: 1, HolderID: 7, RegisteredBy: 7,
	})
	require.NoError(t, err)
	_, err = svc.ApplyPaymentConfirmed(context.Background(), reg.ID)
	require.NoError(t, err)

	require.NoError(t, svc.TransferHolder(context.Background(), reg.ID, 42))

	stored, err := svc.Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(42), stored.HolderID)
	assert.Equal(t, models.RegistrationStatusTransferred, stored.Status)
	assert.Equal(t, models.RegistrationPaymentPaid, stored.PaymentStatus, "transfer must not touch payment status")
}
