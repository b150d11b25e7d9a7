package transfer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
)

// fakeRepo is an in-memory Repository. WithTx serializes callers with a
// mutex, mirroring the row-lock serialization the gorm implementation gets
// from SELECT ... FOR UPDATE.
type fakeRepo struct {
	mu            sync.Mutex
	transfers     map[uint]*models.TransferRequest
	registrations map[uint]*models.Registration
	usersByCPF    map[string]*models.User
	usersByEmail  map[string]*models.User
	nextID        uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		transfers:     make(map[uint]*models.TransferRequest),
		registrations: make(map[uint]*models.Registration),
		usersByCPF:    make(map[string]*models.User),
		usersByEmail:  make(map[string]*models.User),
	}
}

func (f *fakeRepo) WithTx(fn func(Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f)
}

func (f *fakeRepo) GetTransfer(id uint) (*models.TransferRequest, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) GetTransferForUpdate(id uint) (*models.TransferRequest, error) {
	return f.GetTransfer(id)
}

func (f *fakeRepo) GetActiveTransferByRegistration(registrationID uint) (*models.TransferRequest, error) {
	for _, t := range f.transfers {
		if t.RegistrationID != registrationID {
			continue
		}
		if t.Status == models.TransferStatusPending || t.Status == models.TransferStatusApproved {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListTransfersByRegistration(registrationID uint) ([]models.TransferRequest, error) {
	var out []models.TransferRequest
	for _, t := range f.transfers {
		if t.RegistrationID == registrationID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTransfer(t *models.TransferRequest) error {
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeRepo) SaveTransfer(t *models.TransferRequest) error {
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeRepo) GetRegistrationForUpdate(id uint) (*models.Registration, error) {
	reg, ok := f.registrations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRepo) SaveRegistration(reg *models.Registration) error {
	cp := *reg
	f.registrations[reg.ID] = &cp
	return nil
}

func (f *fakeRepo) FindUserByCPF(cpf string) (*models.User, error) {
	if u, ok := f.usersByCPF[cpf]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindUserByEmail(email string) (*models.User, error) {
	if u, ok := f.usersByEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) addUser(u *models.User) {
	if u.CPF != "" {
		f.usersByCPF[u.CPF] = u
	}
	if u.Email != "" {
		f.usersByEmail[u.Email] = u
	}
}

func confirmedRegistration(repo *fakeRepo, holderID uint) *models.Registration {
	reg := &models.Registration{
		ID:             1,
		EventID:        1,
		CategoryID:     1,
		HolderID:       holderID,
		RegisteredByID: holderID,
		Status:         models.RegistrationStatusConfirmed,
		PaymentStatus:  models.RegistrationPaymentPaid,
	}
	repo.registrations[reg.ID] = reg
	return reg
}

func TestRequestResolvesByCPF(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)
	repo.addUser(&models.User{ID: 20, CPF: "123.456.789-00", Email: "nova@example.com"})

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderCPF:   "123.456.789-00",
		FeeCents:       1500,
	})
	require.NoError(t, err)
	require.True(t, req.IsResolved())
	assert.Equal(t, uint(20), *req.NewHolderID)
	assert.Equal(t, models.TransferStatusPending, req.Status)
	assert.Equal(t, models.TransferPaymentPending, req.PaymentStatus)
}

func TestRequestFallsBackToEmail(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)
	repo.addUser(&models.User{ID: 21, Email: "nova@example.com"})

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderCPF:   "999.999.999-99",
		NewHolderEmail: "Nova@Example.com",
	})
	require.NoError(t, err)
	require.True(t, req.IsResolved())
	assert.Equal(t, uint(21), *req.NewHolderID)
}

func TestRequestStaysUnresolvedUntilSignup(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderEmail: "futura@example.com",
	})
	require.NoError(t, err)
	assert.False(t, req.IsResolved())

	resolved, err := svc.ResolveNewHolder(context.Background(), req.ID)
	require.NoError(t, err)
	assert.False(t, resolved)

	repo.addUser(&models.User{ID: 30, Email: "futura@example.com"})
	resolved, err = svc.ResolveNewHolder(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, resolved)

	stored, _ := repo.GetTransfer(req.ID)
	assert.Equal(t, uint(30), *stored.NewHolderID)
}

func TestRequestRejectsNonConfirmedRegistration(t *testing.T) {
	repo := newFakeRepo()
	reg := confirmedRegistration(repo, 10)
	reg.Status = models.RegistrationStatusPending

	svc := NewService(repo)
	_, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderEmail: "nova@example.com",
	})
	assert.True(t, apperr.IsConflict(err))
}

func TestRequestRejectsSecondOpenTransfer(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)

	svc := NewService(repo)
	in := RequestInput{RegistrationID: 1, RequesterID: 10, NewHolderEmail: "nova@example.com"}
	_, err := svc.Request(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), in)
	assert.True(t, apperr.IsConflict(err))
}

func TestApproveThenFeePaidCompletes(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)
	repo.addUser(&models.User{ID: 20, CPF: "123.456.789-00"})

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderCPF:   "123.456.789-00",
		FeeCents:       1500,
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusApproved, approved.Status)

	changed, err := svc.CompleteOnFeePaid(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, _ := repo.GetTransfer(req.ID)
	assert.Equal(t, models.TransferStatusCompleted, stored.Status)
	assert.Equal(t, models.TransferPaymentPaid, stored.PaymentStatus)

	reg, _ := repo.GetRegistrationForUpdate(1)
	assert.Equal(t, uint(20), reg.HolderID)
	assert.Equal(t, models.RegistrationStatusTransferred, reg.Status)
	assert.Equal(t, models.RegistrationPaymentPaid, reg.PaymentStatus)
}

func TestFeePaidWhilePendingWaitsForApproval(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)
	repo.addUser(&models.User{ID: 20, CPF: "123.456.789-00"})

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderCPF:   "123.456.789-00",
	})
	require.NoError(t, err)

	changed, err := svc.CompleteOnFeePaid(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, _ := repo.GetTransfer(req.ID)
	assert.Equal(t, models.TransferStatusPending, stored.Status)
	assert.Equal(t, models.TransferPaymentPaid, stored.PaymentStatus)

	// Approval now finds a paid fee and a resolved holder, so it completes.
	approved, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, approved.Status)

	reg, _ := repo.GetRegistrationForUpdate(1)
	assert.Equal(t, uint(20), reg.HolderID)
}

func TestCompleteOnFeePaidIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)
	repo.addUser(&models.User{ID: 20, CPF: "123.456.789-00"})

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderCPF:   "123.456.789-00",
	})
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)

	changed, err := svc.CompleteOnFeePaid(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	// Redelivered webhook. Holder must not move again and no error surfaces.
	changed, err = svc.CompleteOnFeePaid(context.Background(), req.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	reg, _ := repo.GetRegistrationForUpdate(1)
	assert.Equal(t, uint(20), reg.HolderID)
	assert.Equal(t, models.RegistrationStatusTransferred, reg.Status)
}

func TestFeePaidAfterRejectionConflicts(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderEmail: "nova@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), req.ID, "documento invalido")
	require.NoError(t, err)

	_, err = svc.CompleteOnFeePaid(context.Background(), req.ID)
	assert.True(t, apperr.IsConflict(err))
}

func TestRejectAndCancelAreTerminal(t *testing.T) {
	repo := newFakeRepo()
	confirmedRegistration(repo, 10)

	svc := NewService(repo)
	req, err := svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderEmail: "nova@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), req.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), req.ID)
	assert.True(t, apperr.IsConflict(err))

	_, err = svc.Cancel(context.Background(), req.ID)
	assert.True(t, apperr.IsConflict(err))

	// A closed request frees the registration for a new attempt.
	_, err = svc.Request(context.Background(), RequestInput{
		RegistrationID: 1,
		RequesterID:    10,
		NewHolderEmail: "outra@example.com",
	})
	assert.NoError(t, err)
}
