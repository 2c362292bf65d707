package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/musichub/api/internal/middleware"
	"github.com/musichub/api/internal/model"
	"github.com/musichub/api/internal/service"
	"github.com/musichub/api/pkg/response"
)

type WalletHandler struct {
	service   *service.WalletService
	validator *validator.Validate
}

func NewWalletHandler(svc *service.WalletService, v *validator.Validate) *WalletHandler {
	return &WalletHandler{
		service:   svc,
		validator: v,
	}
}

// GetWallet handles GET /wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Missing user identity")
	}

	w, err := h.service.GetWallet(c.Context(), userID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.WalletView{
		UserID:    w.UserID,
		Points:    w.Points,
		UpdatedAt: w.UpdatedAt,
		Ledger:    w.TailLedger(20),
	})
}

// Earn handles POST /wallet/earn
func (h *WalletHandler) Earn(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Missing user identity")
	}

	var req model.EarnRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Earn(c.Context(), userID, req.Action, req.ClientEventID, req.Meta)
	if err != nil {
		return walletError(c, err)
	}

	return response.OK(c, result)
}

// Spend handles POST /wallet/spend
func (h *WalletHandler) Spend(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Missing user identity")
	}

	var req model.SpendRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Spend(c.Context(), userID, req.ItemID, req.ClientEventID, req.Meta)
	if err != nil {
		return walletError(c, err)
	}

	return response.OK(c, result)
}

// walletError maps ledger engine errors to the HTTP error taxonomy.
func walletError(c *fiber.Ctx, err error) error {
	var cooldown *service.CooldownActiveError
	var insufficient *service.InsufficientPointsError

	switch {
	case errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrInvalidEventID):
		return response.ValidationError(c, err.Error(), nil)

	case errors.Is(err, service.ErrAlreadyClaimed):
		return response.Conflict(c, response.CodeAlreadyClaimed, "Already claimed", nil)

	case errors.As(err, &cooldown):
		return response.Conflict(c, response.CodeCooldownActive, "Cooldown active", fiber.Map{
			"remainingMs": cooldown.Remaining.Milliseconds(),
		})

	case errors.As(err, &insufficient):
		return response.Conflict(c, response.CodeInsufficientPoints, "Insufficient points", fiber.Map{
			"required": insufficient.Required,
			"have":     insufficient.Have,
		})

	default:
		return response.ServiceError(c, err.Error())
	}
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
