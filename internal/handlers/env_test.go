package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrbooking/backend/internal/cache"
	"github.com/mrbooking/backend/internal/config"
	"github.com/mrbooking/backend/internal/hash"
	"github.com/mrbooking/backend/internal/models"
	"github.com/mrbooking/backend/internal/tokens"
)

type fakeMailer struct {
	sent []sentMail
}

type sentMail struct {
	To   string
	Code string
}

func (m *fakeMailer) SendCode(to, subject, action, code string) error {
	m.sent = append(m.sent, sentMail{To: to, Code: code})
	return nil
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Redis  *miniredis.Miniredis
	Codes  *cache.Codes
	Tokens *tokens.Service
	Mail   *fakeMailer
	U      *UserHandler
	R      *RoomHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Permission{}, &models.Role{}, &models.User{}, &models.MeetingRoom{}))
	require.NoError(t, config.SeedRBAC(db))

	mr := miniredis.RunT(t)
	codes := cache.NewCodesFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	ts := &tokens.Service{
		Secret:     []byte("test-secret"),
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	mailer := &fakeMailer{}

	env := &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Redis:  mr,
		Codes:  codes,
		Tokens: ts,
		Mail:   mailer,
		U: &UserHandler{
			DB:     db,
			Codes:  codes,
			Tokens: ts,
			Mail:   mailer,
		},
		R: &RoomHandler{DB: db},
	}
	return env
}

func (env *testEnv) doJSONRequest(method, target string, payload any) (*httptest.ResponseRecorder, echo.Context) {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(env.T, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env *testEnv) decodeEnvelope(rec *httptest.ResponseRecorder) envelope {
	var e envelope
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func (env *testEnv) createUser(name, email, password, roleName string) *models.User {
	env.T.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	var role models.Role
	require.NoError(env.T, env.DB.Preload("Permissions").Where("name = ?", roleName).First(&role).Error)

	user := models.User{
		Name:         name,
		NickName:     name,
		PasswordHash: pwHash,
		Email:        email,
		IsAdmin:      roleName == "admin",
		RoleID:       role.ID,
	}
	require.NoError(env.T, env.DB.Create(&user).Error)
	user.Role = role
	return &user
}

func (env *testEnv) issueCode(key string) string {
	env.T.Helper()
	code, err := env.Codes.Set(context.Background(), key, 5*time.Minute)
	require.NoError(env.T, err)
	return code
}

func requireHTTPError(t *testing.T, err error, wantCode int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, wantCode, he.Code)
	return he
}
