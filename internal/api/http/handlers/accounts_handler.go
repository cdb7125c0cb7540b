package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/paralympics-auth/internal/api/dto"
	"github.com/spec-kit/paralympics-auth/internal/auth"
	"github.com/spec-kit/paralympics-auth/internal/service"
)

// AccountsHandler exposes registration, login and the current account.
type AccountsHandler struct {
	auth *service.AuthService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(authService *service.AuthService) *AccountsHandler {
	return &AccountsHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	account, token, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:       req.Name,
		University: req.University,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"account": dto.NewAccountResponse(account),
			"auth":    dto.NewAuthResponse(token),
		},
	})
}

// Login handles POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAuthResponse(token))
}

// Me handles GET /accounts/me behind the auth gate.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	account, ok := auth.AccountFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, auth.MessageUnknownSubject)
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}
