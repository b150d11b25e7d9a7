package commission

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

type fakeRepo struct {
	mu          sync.Mutex
	users       map[uint]*models.User
	leaders     map[uint]*models.GroupLeader
	commissions map[uint]*models.LeaderCommission
	nextID      uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[uint]*models.User),
		leaders:     make(map[uint]*models.GroupLeader),
		commissions: make(map[uint]*models.LeaderCommission),
	}
}

func (f *fakeRepo) WithTx(fn func(Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f)
}

func (f *fakeRepo) GetUser(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetLeader(id uint) (*models.GroupLeader, error) {
	l, ok := f.leaders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return l, nil
}

func (f *fakeRepo) GetLeaderForUpdate(id uint) (*models.GroupLeader, error) {
	return f.GetLeader(id)
}

func (f *fakeRepo) GetLeaderByUserID(userID uint) (*models.GroupLeader, error) {
	for _, l := range f.leaders {
		if l.UserID == userID {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetLeaderByReferralCode(code string) (*models.GroupLeader, error) {
	for _, l := range f.leaders {
		if l.ReferralCode == code {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveLeader(leader *models.GroupLeader) error {
	f.leaders[leader.ID] = leader
	return nil
}

func (f *fakeRepo) CreateCommissionIfNotExists(c *models.LeaderCommission) (bool, error) {
	for _, existing := range f.commissions {
		if existing.LeaderID == c.LeaderID && existing.RegistrationID == c.RegistrationID {
			return false, nil
		}
	}
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.commissions[c.ID] = &cp
	return true, nil
}

func (f *fakeRepo) GetCommissionByRegistrationForUpdate(registrationID uint) (*models.LeaderCommission, error) {
	for _, c := range f.commissions {
		if c.RegistrationID == registrationID {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetCommissionForUpdate(id uint) (*models.LeaderCommission, error) {
	c, ok := f.commissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeRepo) SaveCommission(c *models.LeaderCommission) error {
	f.commissions[c.ID] = c
	return nil
}

func (f *fakeRepo) ListCommissions(filter ListFilter) ([]models.LeaderCommission, error) {
	var out []models.LeaderCommission
	for _, c := range f.commissions {
		if c.LeaderID != filter.LeaderID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.EventID != 0 && c.EventID != filter.EventID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRepo) AddToLeaderEarnings(leaderID uint, deltaCents int64) error {
	l, ok := f.leaders[leaderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.TotalEarningsCents += deltaCents
	return nil
}

func (f *fakeRepo) SumCountedEarnings(leaderID uint) (int64, error) {
	var total int64
	for _, c := range f.commissions {
		if c.LeaderID == leaderID && c.CountsTowardEarnings() {
			total += c.CommissionAmountCents
		}
	}
	return total, nil
}

func seedReferral(f *fakeRepo) (*models.GroupLeader, *models.Registration) {
	leaderID := uint(1)
	f.leaders[1] = &models.GroupLeader{ID: 1, UserID: 100, ReferralCode: "L1", Status: models.LeaderStatusActive}
	f.users[7] = &models.User{ID: 7, ReferredByLeaderID: &leaderID}
	return f.leaders[1], &models.Registration{
		ID:               42,
		EventID:          1,
		RegisteredByID:   7,
		TotalAmountCents: 10000,
	}
}

func TestAmountRounding(t *testing.T) {
	tests := []struct {
		total int64
		pct   float64
		want  int64
	}{
		{10000, 10, 1000},
		{9999, 10, 1000},
		{100, 10, 10},
		{1, 10, 0},
		{3333, 7.5, 250},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Amount(tt.total, tt.pct), "total=%d pct=%v", tt.total, tt.pct)
	}
}

func TestEvaluateCreatesCommissionOnce(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	svc := NewService(repo, Config{DefaultPercentage: 10})

	// Back-to-back evaluation, as with a duplicated webhook.
	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))

	require.Len(t, repo.commissions, 1)
	var c *models.LeaderCommission
	for _, v := range repo.commissions {
		c = v
	}
	assert.Equal(t, int64(1000), c.CommissionAmountCents)
	assert.Equal(t, 10.0, c.CommissionPercentage)
	assert.Equal(t, models.CommissionStatusPending, c.Status)
	assert.Equal(t, int64(1000), leader.TotalEarningsCents, "earnings incremented exactly once")
}

func TestEvaluateUsesLeaderOverride(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	override := 15.0
	leader.CommissionPercentage = &override
	svc := NewService(repo, Config{DefaultPercentage: 10})

	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	assert.Equal(t, int64(1500), leader.TotalEarningsCents)
}

func TestEvaluateSkipsNonReferred(t *testing.T) {
	repo := newFakeRepo()
	repo.users[8] = &models.User{ID: 8}
	svc := NewService(repo, Config{DefaultPercentage: 10})

	err := svc.EvaluateOnPaymentConfirmed(context.Background(), &models.Registration{ID: 1, RegisteredByID: 8, TotalAmountCents: 10000})
	require.NoError(t, err)
	assert.Empty(t, repo.commissions)
}

func TestEvaluateInactiveLeader(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	leader.Status = models.LeaderStatusInactive
	svc := NewService(repo, Config{DefaultPercentage: 10})

	err := svc.EvaluateOnPaymentConfirmed(context.Background(), reg)
	require.Error(t, err)
	assert.True(t, apperr.IsBusinessRule(err))
	assert.Empty(t, repo.commissions)
	assert.Zero(t, leader.TotalEarningsCents)
}

func TestEvaluateNonPositiveAmount(t *testing.T) {
	repo := newFakeRepo()
	_, reg := seedReferral(repo)
	reg.TotalAmountCents = 1 // 10% of 1 centavo rounds to 0
	svc := NewService(repo, Config{DefaultPercentage: 10})

	err := svc.EvaluateOnPaymentConfirmed(context.Background(), reg)
	require.Error(t, err)
	assert.True(t, apperr.IsBusinessRule(err))
	assert.Empty(t, repo.commissions)
}

func TestReverseOnCancellation(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	svc := NewService(repo, Config{DefaultPercentage: 10})

	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	require.Equal(t, int64(1000), leader.TotalEarningsCents)

	require.NoError(t, svc.ReverseOnCancellation(context.Background(), reg.ID))
	assert.Equal(t, int64(0), leader.TotalEarningsCents)

	c, err := repo.GetCommissionByRegistrationForUpdate(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusCancelled, c.Status)

	// Reversing again must not double-decrement.
	require.NoError(t, svc.ReverseOnCancellation(context.Background(), reg.ID))
	assert.Equal(t, int64(0), leader.TotalEarningsCents)
}

func TestReverseKeepsPaidCommission(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	svc := NewService(repo, Config{DefaultPercentage: 10})

	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	c, err := repo.GetCommissionByRegistrationForUpdate(reg.ID)
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(context.Background(), c.ID))

	require.NoError(t, svc.ReverseOnCancellation(context.Background(), reg.ID))
	assert.Equal(t, models.CommissionStatusPaid, c.Status, "paid commission is immutable by default")
	assert.Equal(t, int64(1000), leader.TotalEarningsCents)
}

func TestReversePaidWhenPolicyEnabled(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	svc := NewService(repo, Config{DefaultPercentage: 10, ReversePaid: true})

	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	c, err := repo.GetCommissionByRegistrationForUpdate(reg.ID)
	require.NoError(t, err)
	require.NoError(t, svc.MarkPaid(context.Background(), c.ID))

	require.NoError(t, svc.ReverseOnCancellation(context.Background(), reg.ID))
	assert.Equal(t, models.CommissionStatusCancelled, c.Status)
	assert.Equal(t, int64(0), leader.TotalEarningsCents)
}

// Conservation: stored earnings always equal the sum of counted commissions.
func TestEarningsConservation(t *testing.T) {
	repo := newFakeRepo()
	leader, _ := seedReferral(repo)
	svc := NewService(repo, Config{DefaultPercentage: 10})

	for i := uint(0); i < 5; i++ {
		reg := &models.Registration{ID: 100 + i, EventID: 1, RegisteredByID: 7, TotalAmountCents: 20000}
		require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	}
	require.NoError(t, svc.ReverseOnCancellation(context.Background(), 101))
	require.NoError(t, svc.ReverseOnCancellation(context.Background(), 103))

	report, err := svc.AuditEarnings(context.Background(), leader.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.DriftCents)
	assert.Equal(t, int64(6000), report.StoredCents)
}

func TestReconcileEarningsRepairsDrift(t *testing.T) {
	repo := newFakeRepo()
	leader, reg := seedReferral(repo)
	svc := NewService(repo, Config{DefaultPercentage: 10})

	require.NoError(t, svc.EvaluateOnPaymentConfirmed(context.Background(), reg))
	leader.TotalEarningsCents = 9999 // inject drift

	report, err := svc.ReconcileEarnings(context.Background(), leader.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8999), report.DriftCents)
	assert.Equal(t, int64(1000), leader.TotalEarningsCents)
}
