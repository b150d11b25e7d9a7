package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
)

type fakeRepo struct {
	mu            sync.Mutex
	payments      map[uint]*models.Payment
	registrations map[uint]*models.Registration
	transfers     map[uint]*models.TransferRequest
	users         map[uint]*models.User
	nextID        uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments:      make(map[uint]*models.Payment),
		registrations: make(map[uint]*models.Registration),
		transfers:     make(map[uint]*models.TransferRequest),
		users:         make(map[uint]*models.User),
	}
}

func (f *fakeRepo) WithTx(fn func(Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f)
}

func (f *fakeRepo) GetPayment(id uint) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetPaymentForUpdate(id uint) (*models.Payment, error) {
	return f.GetPayment(id)
}

func (f *fakeRepo) CreatePayment(p *models.Payment) error {
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeRepo) SavePayment(p *models.Payment) error {
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeRepo) ListPaymentsByRegistrationForUpdate(registrationID uint) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.RegistrationID != nil && *p.RegistrationID == registrationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPaymentsByRegistration(registrationID uint) ([]models.Payment, error) {
	return f.ListPaymentsByRegistrationForUpdate(registrationID)
}

func (f *fakeRepo) ListPaymentsByTransferForUpdate(transferID uint) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.TransferRequestID != nil && *p.TransferRequestID == transferID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetRegistration(id uint) (*models.Registration, error) {
	reg, ok := f.registrations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRepo) GetTransfer(id uint) (*models.TransferRequest, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) GetUser(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeGateway struct {
	calls  int
	err    error
	status string
}

func (f *fakeGateway) CreateCharge(_ context.Context, in asaas.CreateChargeInput) (*asaas.Charge, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == "" {
		status = "PENDING"
	}
	return &asaas.Charge{
		ID:                "pay_abc",
		Status:            status,
		ValueCents:        in.ValueCents,
		ExternalReference: in.ExternalReference,
		PixQRCode:         "qrcode-data",
		InvoiceURL:        "https://gateway.example/i/pay_abc",
	}, nil
}

type fakeLinker struct {
	linked map[uint]uint
}

func (f *fakeLinker) AttachFeePayment(_ context.Context, transferID, paymentID uint) error {
	if f.linked == nil {
		f.linked = make(map[uint]uint)
	}
	f.linked[transferID] = paymentID
	return nil
}

func setup() (*Service, *fakeRepo, *fakeGateway, *fakeLinker) {
	repo := newFakeRepo()
	repo.users[10] = &models.User{ID: 10, Name: "Ana Souza", Email: "ana@example.com", CPF: "123.456.789-00"}
	repo.registrations[1] = &models.Registration{
		ID:               1,
		HolderID:         10,
		RegisteredByID:   10,
		Status:           models.RegistrationStatusPending,
		PaymentStatus:    models.RegistrationPaymentPending,
		TotalAmountCents: 15000,
		ConfirmationCode: "CP-ABCD2345",
	}
	gw := &fakeGateway{}
	linker := &fakeLinker{}
	return NewService(repo, gw, linker), repo, gw, linker
}

func TestGenerateForRegistration(t *testing.T) {
	svc, repo, gw, _ := setup()

	p, err := svc.GenerateForRegistration(context.Background(), 1, models.BillingTypePix)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, "pay_abc", p.GatewayChargeID)
	assert.Equal(t, int64(15000), p.ValueCents)
	assert.Equal(t, models.ChargeStatusPending, p.Status)
	assert.Equal(t, "qrcode-data", p.PixQRCode)
	assert.True(t, p.DueDate.After(time.Now()))

	stored, _ := repo.GetPayment(p.ID)
	assert.Equal(t, "pay_abc", stored.GatewayChargeID)
}

func TestGenerateSupersedesPreviousActiveCharge(t *testing.T) {
	svc, repo, _, _ := setup()

	first, err := svc.GenerateForRegistration(context.Background(), 1, models.BillingTypeBoleto)
	require.NoError(t, err)
	second, err := svc.GenerateForRegistration(context.Background(), 1, models.BillingTypePix)
	require.NoError(t, err)

	old, _ := repo.GetPayment(first.ID)
	assert.Equal(t, models.ChargeStatusExpired, old.Status)
	assert.False(t, old.IsActive())

	active, _ := repo.GetPayment(second.ID)
	assert.True(t, active.IsActive())

	// History keeps both attempts.
	history, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestGenerateRejectsSettledRegistration(t *testing.T) {
	svc, repo, _, _ := setup()

	p, err := svc.GenerateForRegistration(context.Background(), 1, models.BillingTypePix)
	require.NoError(t, err)
	p.Status = models.ChargeStatusReceived
	require.NoError(t, repo.SavePayment(p))

	_, err = svc.GenerateForRegistration(context.Background(), 1, models.BillingTypePix)
	assert.True(t, apperr.IsConflict(err))
}

func TestGenerateGatewayFailureLeavesIntentPending(t *testing.T) {
	svc, _, gw, _ := setup()
	gw.err = apperr.Gateway("gateway unavailable", nil)

	_, err := svc.GenerateForRegistration(context.Background(), 1, models.BillingTypePix)
	assert.True(t, apperr.IsGateway(err))

	// The intent row exists without a charge id, for the sweep to pick up.
	history, _ := svc.History(context.Background(), 1)
	require.Len(t, history, 1)
	assert.Equal(t, models.ChargeStatusPending, history[0].Status)
	assert.Empty(t, history[0].GatewayChargeID)
}

func TestGenerateRejectsTerminalRegistration(t *testing.T) {
	svc, repo, _, _ := setup()
	repo.registrations[1].Status = models.RegistrationStatusCancelled

	_, err := svc.GenerateForRegistration(context.Background(), 1, models.BillingTypePix)
	assert.True(t, apperr.IsConflict(err))
}

func TestGenerateRejectsUnknownBillingType(t *testing.T) {
	svc, _, _, _ := setup()
	_, err := svc.GenerateForRegistration(context.Background(), 1, "CASH")
	assert.True(t, apperr.IsValidation(err))
}

func TestGenerateForTransferFee(t *testing.T) {
	svc, repo, _, linker := setup()
	repo.transfers[5] = &models.TransferRequest{
		ID:               5,
		RegistrationID:   1,
		RequesterID:      10,
		Status:           models.TransferStatusPending,
		PaymentStatus:    models.TransferPaymentPending,
		TransferFeeCents: 2500,
	}

	p, err := svc.GenerateForTransferFee(context.Background(), 5, models.BillingTypePix)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.ValueCents)
	require.NotNil(t, p.TransferRequestID)
	assert.Equal(t, uint(5), *p.TransferRequestID)
	assert.Nil(t, p.RegistrationID)
	assert.Equal(t, p.ID, linker.linked[5])
}

func TestGenerateForTransferFeeRejectsFreeTransfer(t *testing.T) {
	svc, repo, _, _ := setup()
	repo.transfers[5] = &models.TransferRequest{
		ID:            5,
		RequesterID:   10,
		Status:        models.TransferStatusPending,
		PaymentStatus: models.TransferPaymentPending,
	}

	_, err := svc.GenerateForTransferFee(context.Background(), 5, models.BillingTypePix)
	assert.True(t, apperr.IsBusinessRule(err))
}

func TestGenerateForTransferFeeRejectsPaidFee(t *testing.T) {
	svc, repo, _, _ := setup()
	repo.transfers[5] = &models.TransferRequest{
		ID:               5,
		RequesterID:      10,
		Status:           models.TransferStatusApproved,
		PaymentStatus:    models.TransferPaymentPaid,
		TransferFeeCents: 2500,
	}

	_, err := svc.GenerateForTransferFee(context.Background(), 5, models.BillingTypePix)
	assert.True(t, apperr.IsConflict(err))
}
