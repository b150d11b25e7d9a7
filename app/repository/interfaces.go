package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByCPF(cpf string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// EventRepository defines the interface for event-related database operations
type EventRepository interface {
	Create(event *models.Event) error
	GetByID(id uint) (*models.Event, error)
	GetByOrganizer(organizerID uint) ([]models.Event, error)
	ListOpen(offset, limit int) ([]models.Event, error)
	Update(event *models.Event) error
	GetCategories(eventID uint) ([]models.EventCategory, error)
	GetKits(eventID uint) ([]models.EventKit, error)
	CreateCategory(category *models.EventCategory) error
	CreateKit(kit *models.EventKit) error
}

// RegistrationRepository is the read surface for registrations. Lifecycle
// writes go through the registration service, never through here.
type RegistrationRepository interface {
	GetByID(id uint) (*models.Registration, error)
	GetByConfirmationCode(code string) (*models.Registration, error)
	GetByEvent(eventID uint, offset, limit int) ([]models.Registration, error)
	GetByRunner(userID uint) ([]models.Registration, error)
	GetByOrganizer(organizerID uint, offset, limit int) ([]models.Registration, error)
	CountByEvent(eventID uint) (int64, error)
	CountActiveByCategory(categoryID uint) (int64, error)
}

// TransferRepository is the read surface for transfer requests.
type TransferRepository interface {
	GetByID(id uint) (*models.TransferRequest, error)
	GetByRegistration(registrationID uint) ([]models.TransferRequest, error)
	GetByRequester(userID uint) ([]models.TransferRequest, error)
	ListPending(offset, limit int) ([]models.TransferRequest, error)
}

// LeaderRepository defines the interface for group leader operations
type LeaderRepository interface {
	Create(leader *models.GroupLeader) error
	GetByID(id uint) (*models.GroupLeader, error)
	GetByUserID(userID uint) (*models.GroupLeader, error)
	GetByReferralCode(code string) (*models.GroupLeader, error)
	Update(leader *models.GroupLeader) error
	List(offset, limit int) ([]models.GroupLeader, error)
	GetCommissions(leaderID uint, status string, from, to *time.Time) ([]models.LeaderCommission, error)
}

// WebhookEventRepository is the operator inspection surface over the webhook
// event log.
type WebhookEventRepository interface {
	GetByID(id uint) (*models.WebhookEvent, error)
	ListFailed(offset, limit int) ([]models.WebhookEvent, error)
	ListRecent(offset, limit int) ([]models.WebhookEvent, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Event        EventRepository
	Registration RegistrationRepository
	Transfer     TransferRepository
	Leader       LeaderRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Event:        NewEventRepository(db),
		Registration: NewRegistrationRepository(db),
		Transfer:     NewTransferRepository(db),
		Leader:       NewLeaderRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
