package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/mrbooking/backend/internal/guard"
	"github.com/mrbooking/backend/internal/handlers"
)

type Deps struct {
	Guard         *guard.Guard
	UserHandler   *handlers.UserHandler
	RoomHandler   *handlers.RoomHandler
	UploadHandler *handlers.UploadHandler
}

// Register declares every route and its gates. The login and permission
// requirements are attached here, at registration time.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	api := e.Group("/api")

	user := api.Group("/user")

	user.POST("/register", d.UserHandler.Register)
	user.GET("/register-captcha", d.UserHandler.RegisterCaptcha)
	user.POST("/login", d.UserHandler.Login)
	user.GET("/refresh", d.UserHandler.Refresh)
	user.GET("/list", d.UserHandler.List)

	// Password reset works both logged-in and logged-out; the code sent
	// to the account email is the gate.
	user.GET("/update_password/captcha", d.UserHandler.UpdatePasswordCaptcha)
	user.POST("/update_password", d.UserHandler.UpdatePassword)

	loggedIn := api.Group("/user", d.Guard.RequireLogin())

	loggedIn.GET("/info", d.UserHandler.Info)
	loggedIn.GET("/update_email/captcha", d.UserHandler.UpdateEmailCaptcha)
	loggedIn.POST("/update_email", d.UserHandler.UpdateEmail)
	loggedIn.GET("/update/captcha", d.UserHandler.UpdateProfileCaptcha)
	loggedIn.POST("/update", d.UserHandler.UpdateProfile)
	loggedIn.POST("/upload", d.UploadHandler.Upload)
	loggedIn.GET("/freeze", d.UserHandler.Freeze, guard.RequirePermission("admin:manage_users"))

	room := api.Group("/meeting-room")

	room.GET("/list", d.RoomHandler.List)
	room.GET("/search", d.RoomHandler.Search)
	room.GET("/:id", d.RoomHandler.Info)

	roomAdmin := api.Group("/meeting-room", d.Guard.RequireLogin(),
		guard.RequirePermission("admin:manage_meeting_rooms", "admin:add_edit_meeting_rooms"))

	roomAdmin.POST("/create", d.RoomHandler.Create)
	roomAdmin.PUT("/update", d.RoomHandler.Update)
	roomAdmin.DELETE("/delete/:id", d.RoomHandler.Delete)
}
