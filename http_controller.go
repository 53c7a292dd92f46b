package accounts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ControllerRoutes holds the relative paths the controller mounts
type ControllerRoutes struct {
	Register string
	Login    string
	Logout   string
	Current  string
	Avatars  string
	Verify   string
}

// Controller exposes the account lifecycle as a JSON API
type Controller struct {
	Debug      bool
	Logger     Logger
	Manager    Manager
	Avatars    *AvatarStore
	Routes     *ControllerRoutes
	ContextKey string
}

type ControllerOption func(*Controller) *Controller

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

// WithControllerDebug toggles payload dumps on registration and login
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// WithControllerContextKey sets the locals key the guard stores the user under
func WithControllerContextKey(key string) ControllerOption {
	return func(c *Controller) *Controller {
		c.ContextKey = key
		return c
	}
}

// NewController creates the JSON controller for the given manager and
// avatar store
func NewController(manager Manager, avatars *AvatarStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:     defLogger{},
		Manager:    manager,
		Avatars:    avatars,
		ContextKey: "user",
		Routes: &ControllerRoutes{
			Register: "/register",
			Login:    "/login",
			Logout:   "/logout",
			Current:  "/current",
			Avatars:  "/avatars",
			Verify:   "/verify",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Manager == nil {
		panic("Missing Manager in accounts controller...")
	}

	if c.Avatars == nil {
		panic("Missing AvatarStore in accounts controller...")
	}

	return c
}

// RegisterRoutes mounts the account routes on the given router, usually
// a group at /api/users. The guard protects logout, current, and avatars.
func RegisterRoutes(app fiber.Router, guard fiber.Handler, manager Manager, avatars *AvatarStore, opts ...ControllerOption) *Controller {
	controller := NewController(manager, avatars, opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost)
	app.Post(controller.Routes.Login, controller.LoginPost)

	app.Post(controller.Routes.Logout, guard, controller.LogoutPost)
	app.Get(controller.Routes.Current, guard, controller.CurrentGet)
	app.Patch(controller.Routes.Avatars, guard, controller.AvatarsPatch)

	app.Get(fmt.Sprintf("%s/:verificationToken", controller.Routes.Verify), controller.VerifyGet)
	app.Post(controller.Routes.Verify, controller.VerifyResendPost)

	return controller
}

// RegisterRequest payload
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *Controller) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return jsonMessage(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, err.Error())
	}

	if a.Debug {
		fmt.Println("======= ACCOUNTS REGISTER =======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=================================")
	}

	user, err := a.Manager.Register(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": user.Public(),
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *Controller) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return jsonMessage(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, err.Error())
	}

	token, user, err := a.Manager.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user.Public(),
	})
}

func (a *Controller) LogoutPost(c *fiber.Ctx) error {
	user, ok := UserFromLocals(c, a.ContextKey)
	if !ok {
		return jsonMessage(c, fiber.StatusUnauthorized, "Not authorized")
	}

	if err := a.Manager.Logout(c.UserContext(), user); err != nil {
		return a.renderError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Controller) CurrentGet(c *fiber.Ctx) error {
	user, ok := UserFromLocals(c, a.ContextKey)
	if !ok {
		return jsonMessage(c, fiber.StatusUnauthorized, "Not authorized")
	}

	return c.JSON(user.Public())
}

func (a *Controller) AvatarsPatch(c *fiber.Ctx) error {
	user, ok := UserFromLocals(c, a.ContextKey)
	if !ok {
		return jsonMessage(c, fiber.StatusUnauthorized, "Not authorized")
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, "missing avatar file")
	}

	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("avatar-%d-%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
	if err := c.SaveFile(file, tmp); err != nil {
		a.Logger.Error("avatar save upload: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "internal server error")
	}
	defer os.Remove(tmp)

	avatarURL, err := a.Avatars.Save(user.ID.String(), tmp, file.Filename)
	if err != nil {
		return a.renderError(c, err)
	}

	if err := a.Manager.UpdateAvatar(c.UserContext(), user, avatarURL); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"avatarURL": avatarURL,
	})
}

func (a *Controller) VerifyGet(c *fiber.Ctx) error {
	token := c.Params("verificationToken")

	if _, err := a.Manager.VerifyByToken(c.UserContext(), token); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification successful",
	})
}

// ResendRequest payload
type ResendRequest struct {
	Email string `json:"email" form:"email"`
}

// Validate will run validation rules
func (r ResendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *Controller) VerifyResendPost(c *fiber.Ctx) error {
	payload := new(ResendRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("verify resend parse payload: %v", err)
		return jsonMessage(c, fiber.StatusBadRequest, "invalid request body")
	}

	if payload.Email == "" {
		return jsonMessage(c, fiber.StatusBadRequest, "missing required field email")
	}

	if err := payload.Validate(); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, err.Error())
	}

	if err := a.Manager.RequestVerification(c.UserContext(), payload.Email); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification email sent",
	})
}

// renderError maps lifecycle errors onto the wire contract. Known
// sentinels carry a fixed public message, everything else falls back to
// its category status, unknowns become an opaque 500.
func (a *Controller) renderError(c *fiber.Ctx, err error) error {
	switch {
	case goerrors.Is(err, ErrEmailInUse):
		return jsonMessage(c, fiber.StatusConflict, "Email in use")
	case goerrors.Is(err, ErrInvalidCredentials):
		return jsonMessage(c, fiber.StatusUnauthorized, "Email or password is wrong")
	case goerrors.Is(err, ErrNotAuthorized):
		return jsonMessage(c, fiber.StatusUnauthorized, "Not authorized")
	case goerrors.Is(err, ErrUserNotFound):
		return jsonMessage(c, fiber.StatusNotFound, "User not found")
	case goerrors.Is(err, ErrAlreadyVerified):
		return jsonMessage(c, fiber.StatusBadRequest, "Verification has already been passed")
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.Category {
		case goerrors.CategoryAuth:
			return jsonMessage(c, fiber.StatusUnauthorized, "Not authorized")
		case goerrors.CategoryNotFound:
			return jsonMessage(c, fiber.StatusNotFound, rich.Message)
		case goerrors.CategoryConflict:
			return jsonMessage(c, fiber.StatusConflict, rich.Message)
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			return jsonMessage(c, fiber.StatusBadRequest, rich.Message)
		}
	}

	a.Logger.Error("request failed: %v", err)

	return jsonMessage(c, fiber.StatusInternalServerError, "internal server error")
}

func jsonMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
	})
}
