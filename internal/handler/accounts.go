package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/service"
)

// AccountHandler exposes account-management endpoints.  These sit outside
// the token lifecycle and talk to the account repository directly; password
// and token changes go through the auth endpoints.
type AccountHandler struct {
	Accounts *repository.AccountRepo
}

func NewAccountHandler(accounts *repository.AccountRepo) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

type accountResp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type updateAccountReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toAccountResp(a model.Account) accountResp {
	// PasswordHash never leaves the service.
	return accountResp{ID: a.ID, Name: a.Name, Email: a.Email, CreatedAt: a.CreatedAt}
}

// List returns all accounts.
func (h *AccountHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accounts, err := h.Accounts.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list accounts failed"})
	}
	out := make([]accountResp, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResp(a))
	}
	return c.JSON(http.StatusOK, out)
}

// GetByID returns one account.
func (h *AccountHandler) GetByID(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	return c.JSON(http.StatusOK, toAccountResp(a))
}

// Update changes an account's name and email.
func (h *AccountHandler) Update(c echo.Context) error {
	var req updateAccountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || !service.ValidEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.Update(ctx, c.Param("id"), req.Name, req.Email); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already in use"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update account failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes an account.
func (h *AccountHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete account failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "account deleted"})
}
