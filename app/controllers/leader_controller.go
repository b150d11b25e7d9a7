package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/cache"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/commission"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/usercontext"
)

// HandleBecomeLeader creates a group leader record with a fresh referral
// code for the authenticated user.
func HandleBecomeLeader(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	leaders := repository.GetGlobalRepositories().Leader

	if _, err := leaders.GetByUserID(userID); err == nil {
		return respondError(c, apperr.Conflict("user %d is already a leader", userID))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, err)
	}

	code, err := models.NewReferralCode()
	if err != nil {
		return respondError(c, err)
	}
	leader := &models.GroupLeader{
		UserID:       userID,
		ReferralCode: code,
		Status:       models.LeaderStatusActive,
	}
	if err := leaders.Create(leader); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(leader)
}

const leaderProfileCacheTTL = 60 * time.Second

// HandleMyLeaderProfile returns the caller's leader record with earnings.
// Earnings move on every confirmed referred payment, so the cache is short.
func HandleMyLeaderProfile(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	cacheKey := "leader:profile:" + strconv.FormatUint(uint64(userID), 10)

	if raw, err := cache.Get(cacheKey); err == nil && raw != "" {
		var leader models.GroupLeader
		if json.Unmarshal([]byte(raw), &leader) == nil {
			return c.JSON(leader)
		}
	}

	leader, err := GetServices().Commission.GetLeaderByUserID(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if raw, err := json.Marshal(leader); err == nil {
		_ = cache.Set(cacheKey, string(raw), leaderProfileCacheTTL)
	}
	return c.JSON(leader)
}

// HandleMyCommissions lists the caller's commissions with optional status,
// event and date filters.
func HandleMyCommissions(c *fiber.Ctx) error {
	leader, err := GetServices().Commission.GetLeaderByUserID(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	filter, err := commissionFilterFromQuery(c, leader.ID)
	if err != nil {
		return respondError(c, err)
	}
	commissions, err := GetServices().Commission.ListCommissions(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(commissions)
}

// HandleLeaderCommissions lists any leader's commissions. Admin only.
func HandleLeaderCommissions(c *fiber.Ctx) error {
	leaderID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	filter, err := commissionFilterFromQuery(c, leaderID)
	if err != nil {
		return respondError(c, err)
	}
	commissions, err := GetServices().Commission.ListCommissions(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(commissions)
}

// HandleAuditLeaderEarnings recomputes a leader's earnings from the ledger
// and reports drift against the stored counter. Admin only.
func HandleAuditLeaderEarnings(c *fiber.Ctx) error {
	leaderID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	report, err := GetServices().Commission.AuditEarnings(c.Context(), leaderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// HandleReconcileLeaderEarnings repairs a drifted earnings counter from the
// ledger. Admin only.
func HandleReconcileLeaderEarnings(c *fiber.Ctx) error {
	leaderID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	report, err := GetServices().Commission.ReconcileEarnings(c.Context(), leaderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// HandleMarkCommissionPaid marks one commission as paid out. Admin only.
func HandleMarkCommissionPaid(c *fiber.Ctx) error {
	commissionID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := GetServices().Commission.MarkPaid(c.Context(), commissionID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": models.CommissionStatusPaid})
}

func commissionFilterFromQuery(c *fiber.Ctx, leaderID uint) (commission.ListFilter, error) {
	filter := commission.ListFilter{
		LeaderID: leaderID,
		Status:   c.Query("status"),
		EventID:  uint(c.QueryInt("event_id", 0)),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, apperr.Validation("invalid from date %q", raw)
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, apperr.Validation("invalid to date %q", raw)
		}
		filter.To = &t
	}
	return filter, nil
}
