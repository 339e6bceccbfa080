package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mrbooking/backend/internal/cache"
	"github.com/mrbooking/backend/internal/events"
	"github.com/mrbooking/backend/internal/guard"
	"github.com/mrbooking/backend/internal/hash"
	"github.com/mrbooking/backend/internal/logging"
	"github.com/mrbooking/backend/internal/models"
	"github.com/mrbooking/backend/internal/response"
	"github.com/mrbooking/backend/internal/tokens"
	"github.com/mrbooking/backend/internal/util"
)

// Mailer delivers verification codes out-of-band.
type Mailer interface {
	SendCode(to, subject, action, code string) error
}

type UserHandler struct {
	DB       *gorm.DB
	Codes    *cache.Codes
	Tokens   *tokens.Service
	Mail     Mailer
	Producer *events.Producer
}

// UserInfo is the sanitized projection returned to clients: no password
// hash, permission codes flattened from the role join.
type UserInfo struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	NickName    string   `json:"nickName"`
	Email       string   `json:"email"`
	Avatar      string   `json:"avatar"`
	PhoneNumber string   `json:"phoneNumber"`
	IsFrozen    bool     `json:"isFrozen"`
	IsAdmin     bool     `json:"isAdmin"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type LoginResult struct {
	UserInfo     UserInfo `json:"userInfo"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

func userInfoOf(user *models.User) UserInfo {
	return UserInfo{
		ID:          user.ID,
		Name:        user.Name,
		NickName:    user.NickName,
		Email:       user.Email,
		Avatar:      user.Avatar,
		PhoneNumber: user.PhoneNumber,
		IsFrozen:    user.IsFrozen,
		IsAdmin:     user.IsAdmin,
		Role:        user.Role.Name,
		Permissions: user.PermissionCodes(),
	}
}

func (h *UserHandler) findUser(ctx context.Context, condition string, value any) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(ctx).
		Preload("Role.Permissions").
		Where(condition, value).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// consumeCode enforces the single-use policy: absent means expired,
// mismatch leaves the code valid until its TTL, match deletes it before
// the caller proceeds.
func (h *UserHandler) consumeCode(ctx context.Context, key, submitted string) error {
	stored, err := h.Codes.Get(ctx, key)
	if errors.Is(err, cache.ErrCodeNotFound) {
		return echo.NewHTTPError(http.StatusBadRequest, "verification code expired")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if stored != submitted {
		return echo.NewHTTPError(http.StatusBadRequest, "verification code incorrect")
	}
	if err := h.Codes.Delete(ctx, key); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return nil
}

func (h *UserHandler) issuePair(user *models.User) (string, string, error) {
	access, err := h.Tokens.SignAccessToken(user.ID, user.Name, user.Role.Name, user.PermissionCodes())
	if err != nil {
		return "", "", err
	}
	refresh, err := h.Tokens.SignRefreshToken(user.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (h *UserHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req struct {
		UserName string `json:"userName"`
		NickName string `json:"nickName"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Captcha  string `json:"captcha"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.UserName == "" || req.Password == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userName, password and email are required")
	}

	if err := h.consumeCode(ctx, "register_captcha_"+req.Email, req.Captcha); err != nil {
		l.Warn("register_failed", "reason", "captcha")
		return err
	}

	var existing models.User
	err := h.DB.WithContext(ctx).Where("name = ?", req.UserName).First(&existing).Error
	if err == nil {
		l.Warn("register_failed", "reason", "user_exists")
		return echo.NewHTTPError(http.StatusBadRequest, "user already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	var role models.Role
	if err := h.DB.WithContext(ctx).Where("name = ?", "user").First(&role).Error; err != nil {
		l.Error("register_failed", "reason", "default role missing", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	user := models.User{
		Name:         req.UserName,
		NickName:     req.NickName,
		PasswordHash: pwHash,
		Email:        req.Email,
		RoleID:       role.ID,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// Storage failures in write paths are reduced to a generic
		// failure message, not propagated raw.
		l.Error("register_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	h.publish(c, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"name":   user.Name,
	})

	l.Info("register_success", "userID", user.ID)
	return response.OK(c, "registration successful")
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.findUser(ctx, "name = ?", req.UserName)
	if err != nil {
		l.Warn("login_failed", "reason", "user_not_found")
		return echo.NewHTTPError(http.StatusBadRequest, "user does not exist")
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "reason", "wrong_password", "userID", user.ID)
		return echo.NewHTTPError(http.StatusBadRequest, "incorrect password")
	}

	// Frozen users can still log in; freezing only surfaces in the
	// projection and in admin-side handling.
	access, refresh, err := h.issuePair(user)
	if err != nil {
		l.Error("login_failed", "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	l.Info("login_success", "userID", user.ID)
	return response.OK(c, LoginResult{
		UserInfo:     userInfoOf(user),
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// Refresh re-reads the user so the new access token carries the current
// role and permission set, not the snapshot from issue time.
func (h *UserHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_refresh")

	claims, err := h.Tokens.ParseRefresh(c.QueryParam("refreshToken"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "token expired, please log in again")
	}
	id, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "token expired, please log in again")
	}

	user, err := h.findUser(ctx, "id = ?", id)
	if err != nil {
		l.Warn("refresh_failed", "reason", "user_not_found", "userID", id)
		return echo.NewHTTPError(http.StatusUnauthorized, "token expired, please log in again")
	}

	access, refresh, err := h.issuePair(user)
	if err != nil {
		l.Error("refresh_failed", "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return response.OK(c, echo.Map{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *UserHandler) Info(c echo.Context) error {
	ctx := c.Request().Context()

	identity, ok := guard.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not logged in")
	}

	user, err := h.findUser(ctx, "id = ?", identity.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user does not exist")
	}

	return response.OK(c, userInfoOf(user))
}

func (h *UserHandler) UpdatePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_password")

	var req struct {
		Email    string `json:"email"`
		Captcha  string `json:"captcha"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID, err := h.resolveUserID(c, req.Email)
	if err != nil {
		return err
	}

	if err := h.consumeCode(ctx, "update_password_captcha_"+req.Email, req.Captcha); err != nil {
		return err
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("update_password_failed", "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	err = h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", pwHash).Error
	if err != nil {
		l.Error("update_password_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	l.Info("update_password_success", "userID", userID)
	return response.OK(c, "update successful")
}

func (h *UserHandler) UpdateEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_email")

	var req struct {
		Email    string `json:"email"`
		NewEmail string `json:"newEmail"`
		Captcha  string `json:"captcha"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID, err := h.resolveUserID(c, req.Email)
	if err != nil {
		return err
	}

	if err := h.consumeCode(ctx, "update_email_captcha_"+req.Email, req.Captcha); err != nil {
		return err
	}

	err = h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("email", req.NewEmail).Error
	if err != nil {
		l.Error("update_email_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	l.Info("update_email_success", "userID", userID)
	return response.OK(c, "update successful")
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_profile")

	identity, ok := guard.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not logged in")
	}

	var req struct {
		Email       string `json:"email"`
		NickName    string `json:"nickName"`
		Avatar      string `json:"avatar"`
		PhoneNumber string `json:"phoneNumber"`
		Captcha     string `json:"captcha"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.consumeCode(ctx, "update_user_captcha_"+req.Email, req.Captcha); err != nil {
		return err
	}

	err := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", identity.ID).
		Updates(map[string]any{
			"nick_name":    req.NickName,
			"avatar":       req.Avatar,
			"phone_number": req.PhoneNumber,
		}).Error
	if err != nil {
		l.Error("update_profile_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	l.Info("update_profile_success", "userID", identity.ID)
	return response.OK(c, "update successful")
}

func (h *UserHandler) Freeze(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_freeze")

	userID := util.ParseIntDefault(c.QueryParam("id"), 0)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	isFreeze := c.QueryParam("isFreeze") == "1"

	action := "unfreeze"
	if isFreeze {
		action = "freeze"
	}

	result := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_frozen", isFreeze)
	if result.Error != nil {
		l.Error("freeze_failed", "reason", "db_error", "error", result.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, action+" failed")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user does not exist")
	}

	h.publish(c, map[string]any{
		"type":     "user_frozen",
		"userID":   userID,
		"isFrozen": isFreeze,
	})

	l.Info("freeze_success", "userID", userID, "isFrozen", isFreeze)
	return response.OK(c, action+" successful")
}

func (h *UserHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	pageNum := util.ParseIntDefault(c.QueryParam("pageNum"), 1)
	pageSize := util.ParseIntDefault(c.QueryParam("pageSize"), util.DefaultPageSize)
	offset, limit := util.Page(pageNum, pageSize)

	query := func(tx *gorm.DB) *gorm.DB {
		q := tx.Model(&models.User{})
		if name := c.QueryParam("name"); name != "" {
			q = q.Where("name LIKE ?", "%"+name+"%")
		}
		if nickName := c.QueryParam("nickName"); nickName != "" {
			q = q.Where("nick_name LIKE ?", "%"+nickName+"%")
		}
		if email := c.QueryParam("email"); email != "" {
			q = q.Where("email LIKE ?", "%"+email+"%")
		}
		return q
	}

	var total int64
	var users []models.User
	// Count and fetch run in one transaction so total stays consistent
	// with the page.
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := query(tx).Count(&total).Error; err != nil {
			return err
		}
		return query(tx).Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return response.OK(c, echo.Map{
		"total": total,
		"list":  users,
	})
}

// resolveUserID prefers the authenticated identity and falls back to an
// email lookup for the pre-login password reset path.
func (h *UserHandler) resolveUserID(c echo.Context, email string) (uint, error) {
	if identity, ok := guard.IdentityFrom(c); ok {
		return identity.ID, nil
	}

	var user models.User
	err := h.DB.WithContext(c.Request().Context()).Where("email = ?", email).First(&user).Error
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "user does not exist")
	}
	return user.ID, nil
}
