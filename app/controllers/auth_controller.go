package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/session"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/usercontext"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	CPF          string `json:"cpf"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

// HandleRegister creates an account. A valid referral code links the account
// to the leader, which later makes its registrations commission-bearing.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	user, err := models.CreateUser(req.Name, strings.TrimSpace(strings.ToLower(req.Email)), strings.TrimSpace(req.CPF), req.Password)
	if err != nil {
		return respondError(c, apperr.Validation("invalid user data: %v", err))
	}

	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		leader, err := GetServices().Commission.GetLeaderByReferralCode(c.Context(), code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return respondError(c, apperr.Validation("unknown referral code %q", code))
			}
			return respondError(c, err)
		}
		user.ReferredByLeaderID = &leader.ID
	}

	users := repository.GetGlobalRepositories().User
	if _, err := users.GetByEmail(user.Email); err == nil {
		return respondError(c, apperr.Conflict("email %s is already registered", user.Email))
	}
	if err := users.Create(user); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and opens a session.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	user, err := repository.GetGlobalRepositories().User.GetByEmail(req.Email)
	if err != nil || !models.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}
	if user.Status != models.STATUS_ACTIVE {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "account is " + user.Status,
		})
	}

	if err := session.SetSessionValue(c, usercontext.KeyUserID, user.ID); err != nil {
		return respondError(c, err)
	}
	_ = session.SetSessionValue(c, usercontext.KeyUsername, user.Name)
	_ = session.SetSessionValue(c, usercontext.KeyRole, user.Role)

	now := time.Now()
	user.LastLoginAt = &now
	_ = repository.GetGlobalRepositories().User.Update(user)

	return c.JSON(fiber.Map{
		"id":   user.ID,
		"name": user.Name,
		"role": user.Role,
	})
}

// HandleLogout destroys the session.
func HandleLogout(c *fiber.Ctx) error {
	if err := session.Destroy(c); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

// HandleMe returns the authenticated user.
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
