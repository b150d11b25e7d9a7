package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create creates a new event in the database
func (r *eventRepository) Create(event *models.Event) error {
	return r.db.Create(event).Error
}

// GetByID retrieves an event by its ID
func (r *eventRepository) GetByID(id uint) (*models.Event, error) {
	var event models.Event
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetByOrganizer retrieves all events owned by an organizer
func (r *eventRepository) GetByOrganizer(organizerID uint) ([]models.Event, error) {
	var events []models.Event
	err := r.db.Where("organizer_id = ?", organizerID).Order("event_date DESC").Find(&events).Error
	return events, err
}

// ListOpen retrieves published events that have not happened yet
func (r *eventRepository) ListOpen(offset, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.
		Where("status = ? AND event_date > ?", models.EventStatusPublished, time.Now()).
		Order("event_date ASC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}

// Update updates an existing event
func (r *eventRepository) Update(event *models.Event) error {
	return r.db.Save(event).Error
}

// GetCategories retrieves all categories of an event
func (r *eventRepository) GetCategories(eventID uint) ([]models.EventCategory, error) {
	var categories []models.EventCategory
	err := r.db.Where("event_id = ?", eventID).Order("price_cents ASC").Find(&categories).Error
	return categories, err
}

// GetKits retrieves all kits of an event
func (r *eventRepository) GetKits(eventID uint) ([]models.EventKit, error) {
	var kits []models.EventKit
	err := r.db.Where("event_id = ?", eventID).Order("price_cents ASC").Find(&kits).Error
	return kits, err
}

// CreateCategory adds a category to an event
func (r *eventRepository) CreateCategory(category *models.EventCategory) error {
	return r.db.Create(category).Error
}

// CreateKit adds a kit to an event
func (r *eventRepository) CreateKit(kit *models.EventKit) error {
	return r.db.Create(kit).Error
}
