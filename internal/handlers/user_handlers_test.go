package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrbooking/backend/internal/guard"
	"github.com/mrbooking/backend/internal/models"
)

func TestRegisterWithoutCodeFailsBeforeAnyWrite(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"userName": "zhangsan",
		"password": "123456",
		"email":    "zhangsan@example.com",
		"captcha":  "000000",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/api/user/register", payload)

	he := requireHTTPError(t, env.U.Register(c), http.StatusBadRequest)
	require.Equal(t, "verification code expired", he.Message)

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRegisterCodeMismatchKeepsCodeValid(t *testing.T) {
	env := newTestEnv(t)
	code := env.issueCode("register_captcha_zhangsan@example.com")

	payload := map[string]string{
		"userName": "zhangsan",
		"password": "123456",
		"email":    "zhangsan@example.com",
		"captcha":  "wrong",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/api/user/register", payload)

	he := requireHTTPError(t, env.U.Register(c), http.StatusBadRequest)
	require.Equal(t, "verification code incorrect", he.Message)

	// a mismatch leaves the code in place until its TTL
	payload["captcha"] = code
	rec, c2 := env.doJSONRequest(http.MethodPost, "/api/user/register", payload)
	require.NoError(t, env.U.Register(c2))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	code := env.issueCode("register_captcha_zhangsan@example.com")

	payload := map[string]string{
		"userName": "zhangsan",
		"password": "123456",
		"email":    "zhangsan@example.com",
		"captcha":  code,
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/user/register", payload)
	require.NoError(t, env.U.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c2 := env.doJSONRequest(http.MethodPost, "/api/user/register", map[string]string{
		"userName": "other",
		"password": "123456",
		"email":    "zhangsan@example.com",
		"captcha":  code,
	})
	he := requireHTTPError(t, env.U.Register(c2), http.StatusBadRequest)
	require.Equal(t, "verification code expired", he.Message)
}

func TestRegisterDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("zhangsan", "zhangsan@example.com", "123456", "user")

	code := env.issueCode("register_captcha_new@example.com")
	payload := map[string]string{
		"userName": "zhangsan",
		"password": "123456",
		"email":    "new@example.com",
		"captcha":  code,
	}
	_, c := env.doJSONRequest(http.MethodPost, "/api/user/register", payload)

	he := requireHTTPError(t, env.U.Register(c), http.StatusBadRequest)
	require.Equal(t, "user already exists", he.Message)
}

func TestLoginWrongPasswordIssuesNoToken(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("zhangsan", "zhangsan@example.com", "123456", "user")

	_, c := env.doJSONRequest(http.MethodPost, "/api/user/login", map[string]string{
		"userName": "zhangsan",
		"password": "nope",
	})
	he := requireHTTPError(t, env.U.Login(c), http.StatusBadRequest)
	require.Equal(t, "incorrect password", he.Message)

	_, c2 := env.doJSONRequest(http.MethodPost, "/api/user/login", map[string]string{
		"userName": "nobody",
		"password": "123456",
	})
	he2 := requireHTTPError(t, env.U.Login(c2), http.StatusBadRequest)
	require.Equal(t, "user does not exist", he2.Message)
}

func TestLoginReturnsTokenPairAndSanitizedInfo(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("zhangsan", "zhangsan@example.com", "123456", "admin")

	rec, c := env.doJSONRequest(http.MethodPost, "/api/user/login", map[string]string{
		"userName": "zhangsan",
		"password": "123456",
	})
	require.NoError(t, env.U.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var result LoginResult
	e := env.decodeEnvelope(rec)
	require.Equal(t, "success", e.Message)
	require.NoError(t, json.Unmarshal(e.Data, &result))

	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	require.Equal(t, "zhangsan", result.UserInfo.Name)
	require.Equal(t, "admin", result.UserInfo.Role)
	require.Contains(t, result.UserInfo.Permissions, "admin:manage_users")
	require.NotContains(t, rec.Body.String(), "password")

	claims, err := env.Tokens.ParseAccess(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "zhangsan", claims.Name)
	require.Contains(t, claims.Permissions, "admin:manage_meeting_rooms")
}

func TestRefreshPicksUpCurrentRole(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "123456", "user")

	refresh, err := env.Tokens.SignRefreshToken(user.ID)
	require.NoError(t, err)

	var adminRole models.Role
	require.NoError(t, env.DB.Where("name = ?", "admin").First(&adminRole).Error)
	require.NoError(t, env.DB.Model(user).Update("role_id", adminRole.ID).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/user/refresh?refreshToken="+refresh, nil)
	require.NoError(t, env.U.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	e := env.decodeEnvelope(rec)
	require.NoError(t, json.Unmarshal(e.Data, &pair))

	claims, err := env.Tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)
	require.Contains(t, claims.Permissions, "admin:manage_users")
	require.NotContains(t, claims.Permissions, "user:book_meeting_room")
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "123456", "user")

	access, err := env.Tokens.SignAccessToken(user.ID, user.Name, "user", nil)
	require.NoError(t, err)

	_, c := env.doJSONRequest(http.MethodGet, "/api/user/refresh?refreshToken="+access, nil)
	requireHTTPError(t, env.U.Refresh(c), http.StatusUnauthorized)
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "123456", "user")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/user/info", nil)
	guard.SetIdentity(c, guard.Identity{ID: user.ID, Name: user.Name})
	require.NoError(t, env.U.Info(c))

	var info UserInfo
	e := env.decodeEnvelope(rec)
	require.NoError(t, json.Unmarshal(e.Data, &info))
	require.Equal(t, "lisi@example.com", info.Email)
	require.Equal(t, "user", info.Role)
	require.Contains(t, info.Permissions, "user:book_meeting_room")
}

func TestUpdatePasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "old-pass", "user")

	code := env.issueCode("update_password_captcha_lisi@example.com")

	payload := map[string]string{
		"email":    "lisi@example.com",
		"captcha":  code,
		"password": "new-pass",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/user/update_password", payload)
	guard.SetIdentity(c, guard.Identity{ID: user.ID, Name: user.Name})
	require.NoError(t, env.U.UpdatePassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	recLogin, cLogin := env.doJSONRequest(http.MethodPost, "/api/user/login", map[string]string{
		"userName": "lisi",
		"password": "new-pass",
	})
	require.NoError(t, env.U.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)

	// consumed code cannot gate a second change
	_, c2 := env.doJSONRequest(http.MethodPost, "/api/user/update_password", payload)
	guard.SetIdentity(c2, guard.Identity{ID: user.ID, Name: user.Name})
	he := requireHTTPError(t, env.U.UpdatePassword(c2), http.StatusBadRequest)
	require.Equal(t, "verification code expired", he.Message)
}

func TestUpdatePasswordWithoutLoginResolvesByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("lisi", "lisi@example.com", "old-pass", "user")

	code := env.issueCode("update_password_captcha_lisi@example.com")
	rec, c := env.doJSONRequest(http.MethodPost, "/api/user/update_password", map[string]string{
		"email":    "lisi@example.com",
		"captcha":  code,
		"password": "new-pass",
	})
	require.NoError(t, env.U.UpdatePassword(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateEmailFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "123456", "user")

	code := env.issueCode("update_email_captcha_lisi@example.com")
	rec, c := env.doJSONRequest(http.MethodPost, "/api/user/update_email", map[string]string{
		"email":    "lisi@example.com",
		"newEmail": "lisi-new@example.com",
		"captcha":  code,
	})
	guard.SetIdentity(c, guard.Identity{ID: user.ID, Name: user.Name})
	require.NoError(t, env.U.UpdateEmail(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, env.DB.First(&updated, user.ID).Error)
	require.Equal(t, "lisi-new@example.com", updated.Email)
}

func TestUpdateProfileFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "123456", "user")

	code := env.issueCode("update_user_captcha_lisi@example.com")
	rec, c := env.doJSONRequest(http.MethodPost, "/api/user/update", map[string]string{
		"email":       "lisi@example.com",
		"nickName":    "Li Si",
		"avatar":      "https://files.example.com/avatars/lisi.png",
		"phoneNumber": "13800000000",
		"captcha":     code,
	})
	guard.SetIdentity(c, guard.Identity{ID: user.ID, Name: user.Name})
	require.NoError(t, env.U.UpdateProfile(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, env.DB.First(&updated, user.ID).Error)
	require.Equal(t, "Li Si", updated.NickName)
	require.Equal(t, "13800000000", updated.PhoneNumber)
}

func TestFrozenUserCanStillLogIn(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("lisi", "lisi@example.com", "123456", "user")

	rec, c := env.doJSONRequest(http.MethodGet, fmt.Sprintf("/api/user/freeze?id=%d&isFreeze=1", user.ID), nil)
	require.NoError(t, env.U.Freeze(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var frozen models.User
	require.NoError(t, env.DB.First(&frozen, user.ID).Error)
	require.True(t, frozen.IsFrozen)

	// freezing does not gate the login path
	recLogin, cLogin := env.doJSONRequest(http.MethodPost, "/api/user/login", map[string]string{
		"userName": "lisi",
		"password": "123456",
	})
	require.NoError(t, env.U.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)

	var result LoginResult
	e := env.decodeEnvelope(recLogin)
	require.NoError(t, json.Unmarshal(e.Data, &result))
	require.True(t, result.UserInfo.IsFrozen)
}

func TestFreezeUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/api/user/freeze?id=999&isFreeze=1", nil)
	he := requireHTTPError(t, env.U.Freeze(c), http.StatusBadRequest)
	require.Equal(t, "user does not exist", he.Message)
}

func TestUserListPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 15; i++ {
		env.createUser(fmt.Sprintf("user%02d", i), fmt.Sprintf("user%02d@example.com", i), "123456", "user")
	}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/user/list?pageNum=2&pageSize=10", nil)
	require.NoError(t, env.U.List(c))

	var page struct {
		Total int64         `json:"total"`
		List  []models.User `json:"list"`
	}
	e := env.decodeEnvelope(rec)
	require.NoError(t, json.Unmarshal(e.Data, &page))
	require.Equal(t, int64(15), page.Total)
	require.Len(t, page.List, 5)
	require.Equal(t, "user10", page.List[0].Name)

	recF, cF := env.doJSONRequest(http.MethodGet, "/api/user/list?pageNum=1&pageSize=10&email=user03", nil)
	require.NoError(t, env.U.List(cF))
	eF := env.decodeEnvelope(recF)
	require.NoError(t, json.Unmarshal(eF.Data, &page))
	require.Equal(t, int64(1), page.Total)
	require.Len(t, page.List, 1)
	require.Equal(t, "user03", page.List[0].Name)
}

func TestRegisterCaptchaSendsMail(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/user/register-captcha?address=zhangsan@example.com", nil)
	require.NoError(t, env.U.RegisterCaptcha(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.Mail.sent, 1)
	require.Equal(t, "zhangsan@example.com", env.Mail.sent[0].To)
	require.Len(t, env.Mail.sent[0].Code, 6)

	stored, err := env.Codes.Get(context.Background(), "register_captcha_zhangsan@example.com")
	require.NoError(t, err)
	require.Equal(t, env.Mail.sent[0].Code, stored)
}

func TestUpdatePasswordCaptchaRequiresKnownEmail(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/api/user/update_password/captcha?address=nobody@example.com", nil)
	he := requireHTTPError(t, env.U.UpdatePasswordCaptcha(c), http.StatusBadRequest)
	require.Equal(t, "user does not exist", he.Message)
	require.Empty(t, env.Mail.sent)
}
