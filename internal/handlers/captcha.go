package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mrbooking/backend/internal/logging"
	"github.com/mrbooking/backend/internal/models"
	"github.com/mrbooking/backend/internal/response"
)

const captchaTTL = 5 * time.Minute

// sendCaptcha issues a fresh code under the purpose-namespaced key and
// mails it to the address. Re-issuing overwrites the previous code.
func (h *UserHandler) sendCaptcha(c echo.Context, keyPrefix, subject, action string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "captcha", "action", action)

	address := c.QueryParam("address")
	if address == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email address required")
	}

	code, err := h.Codes.Set(ctx, keyPrefix+address, captchaTTL)
	if err != nil {
		l.Error("captcha_failed", "reason", "cache_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.Mail.SendCode(address, subject, action, code); err != nil {
		l.Error("captcha_failed", "reason", "mail_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send email")
	}

	l.Info("captcha_sent")
	return response.OK(c, "send successful")
}

// requireKnownEmail rejects captcha requests for addresses no account
// owns. Registration is exempt: the address is new by definition.
func (h *UserHandler) requireKnownEmail(c echo.Context) error {
	address := c.QueryParam("address")
	if address == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email address required")
	}
	var user models.User
	err := h.DB.WithContext(c.Request().Context()).Where("email = ?", address).First(&user).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user does not exist")
	}
	return nil
}

func (h *UserHandler) RegisterCaptcha(c echo.Context) error {
	return h.sendCaptcha(c, "register_captcha_", "Registration verification code", "registration")
}

func (h *UserHandler) UpdatePasswordCaptcha(c echo.Context) error {
	if err := h.requireKnownEmail(c); err != nil {
		return err
	}
	return h.sendCaptcha(c, "update_password_captcha_", "Password change verification code", "password change")
}

func (h *UserHandler) UpdateEmailCaptcha(c echo.Context) error {
	if err := h.requireKnownEmail(c); err != nil {
		return err
	}
	return h.sendCaptcha(c, "update_email_captcha_", "Email change verification code", "email change")
}

func (h *UserHandler) UpdateProfileCaptcha(c echo.Context) error {
	return h.sendCaptcha(c, "update_user_captcha_", "Profile update verification code", "profile update")
}
