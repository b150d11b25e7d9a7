package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/usercontext"
)

type createEventRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Location    string `json:"location"`
	EventDate   string `json:"event_date"`
	Status      string `json:"status"`
}

// HandleCreateEvent creates an event owned by the authenticated organizer.
func HandleCreateEvent(c *fiber.Ctx) error {
	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	date, err := parseEventDate(req.EventDate)
	if err != nil {
		return respondError(c, err)
	}
	status := req.Status
	if status == "" {
		status = models.EventStatusDraft
	}

	event := &models.Event{
		OrganizerID: usercontext.GetUserID(c),
		Name:        strings.TrimSpace(req.Name),
		Slug:        strings.TrimSpace(strings.ToLower(req.Slug)),
		Description: req.Description,
		Location:    req.Location,
		EventDate:   date,
		Status:      status,
	}
	if err := event.Validate(); err != nil {
		return respondError(c, apperr.Validation("invalid event: %v", err))
	}
	if err := repository.GetGlobalRepositories().Event.Create(event); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// HandleListOpenEvents lists published upcoming events.
func HandleListOpenEvents(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	events, err := repository.GetGlobalRepositories().Event.ListOpen(offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

// HandleGetEvent returns one event with its categories and kits.
func HandleGetEvent(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	repos := repository.GetGlobalRepositories()
	event, err := repos.Event.GetByID(id)
	if err != nil {
		return respondError(c, err)
	}
	categories, err := repos.Event.GetCategories(id)
	if err != nil {
		return respondError(c, err)
	}
	kits, err := repos.Event.GetKits(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"event":      event,
		"categories": categories,
		"kits":       kits,
	})
}

type createCategoryRequest struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distance_km"`
	PriceCents int64   `json:"price_cents"`
	MaxSlots   int     `json:"max_slots"`
}

// HandleAddCategory adds a category to an event the organizer owns.
func HandleAddCategory(c *fiber.Ctx) error {
	eventID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	event, err := requireEventOwnership(c, eventID)
	if err != nil {
		return respondError(c, err)
	}

	var req createCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if strings.TrimSpace(req.Name) == "" || req.PriceCents < 0 {
		return respondError(c, apperr.Validation("category needs a name and a non-negative price"))
	}

	category := &models.EventCategory{
		EventID:    event.ID,
		Name:       strings.TrimSpace(req.Name),
		DistanceKM: req.DistanceKM,
		PriceCents: req.PriceCents,
		MaxSlots:   req.MaxSlots,
	}
	if err := repository.GetGlobalRepositories().Event.CreateCategory(category); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

type createKitRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

// HandleAddKit adds a merchandise kit to an event the organizer owns.
func HandleAddKit(c *fiber.Ctx) error {
	eventID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	event, err := requireEventOwnership(c, eventID)
	if err != nil {
		return respondError(c, err)
	}

	var req createKitRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if strings.TrimSpace(req.Name) == "" || req.PriceCents < 0 {
		return respondError(c, apperr.Validation("kit needs a name and a non-negative price"))
	}

	kit := &models.EventKit{
		EventID:    event.ID,
		Name:       strings.TrimSpace(req.Name),
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	}
	if err := repository.GetGlobalRepositories().Event.CreateKit(kit); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(kit)
}

// HandleMyEvents lists the organizer's own events.
func HandleMyEvents(c *fiber.Ctx) error {
	events, err := repository.GetGlobalRepositories().Event.GetByOrganizer(usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

// parseEventDate accepts date-only or RFC 3339 timestamps.
func parseEventDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.Validation("event_date is required")
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validation("invalid event_date %q", raw)
}

// requireEventOwnership loads the event and checks the caller owns it. Admins
// pass regardless.
func requireEventOwnership(c *fiber.Ctx, eventID uint) (*models.Event, error) {
	event, err := repository.GetGlobalRepositories().Event.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	userCtx := usercontext.GetUserContext(c)
	if userCtx.Role != models.ROLE_ADMIN && event.OrganizerID != userCtx.UserID {
		return nil, apperr.BusinessRule("event %d belongs to another organizer", eventID)
	}
	return event, nil
}
