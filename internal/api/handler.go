package api

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"careerlink-auth/internal/model"
	"careerlink-auth/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
	validate    *validator.Validate
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

type SignupRequest struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
	Role            string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Token              string `json:"token" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required"`
}

type AuthResponse struct {
	Status string           `json:"status"`
	Token  string           `json:"token"`
	User   model.PublicUser `json:"user"`
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var request SignupRequest
	if msg, ok := h.bind(c, &request, service.MsgAllFieldsRequired); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msg})
	}

	res, err := h.authService.Signup(c.UserContext(), service.SignupInput{
		FirstName:       request.FirstName,
		LastName:        request.LastName,
		Email:           request.Email,
		Password:        request.Password,
		PasswordConfirm: request.PasswordConfirm,
		Role:            model.Role(request.Role),
	})
	if err != nil {
		return writeError(c, err)
	}

	slog.InfoContext(c.UserContext(), "user signed up", "user_id", res.User.ID, "role", res.User.Role)

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Status: "success", Token: res.Token, User: res.User})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var request LoginRequest
	if msg, ok := h.bind(c, &request, service.MsgCredentialsRequired); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msg})
	}

	res, err := h.authService.Login(c.UserContext(), request.Email, request.Password)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(AuthResponse{Status: "success", Token: res.Token, User: res.User})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Not authenticated"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success", "user": user})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Not authenticated"})
	}

	var request ChangePasswordRequest
	if msg, ok := h.bind(c, &request, service.MsgAllFieldsRequired); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msg})
	}

	err := h.authService.ChangePassword(c.UserContext(), user.ID, service.ChangePasswordInput{
		CurrentPassword:    request.CurrentPassword,
		NewPassword:        request.NewPassword,
		NewPasswordConfirm: request.NewPasswordConfirm,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success", "message": "Password updated successfully"})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var request ForgotPasswordRequest
	if msg, ok := h.bind(c, &request, service.MsgEmailRequired); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msg})
	}

	if err := h.authService.ForgotPassword(c.UserContext(), request.Email); err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success", "message": "Password reset link sent to email"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var request ResetPasswordRequest
	if msg, ok := h.bind(c, &request, service.MsgAllFieldsRequired); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": msg})
	}

	err := h.authService.ResetPassword(c.UserContext(), service.ResetPasswordInput{
		Token:              request.Token,
		NewPassword:        request.NewPassword,
		NewPasswordConfirm: request.NewPasswordConfirm,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success", "message": "Password reset successful"})
}

// bind parses the JSON body into out and checks its required fields. An
// empty body counts as an empty object, so it fails on the missing fields.
// When it reports false, the returned string is the message for the 400
// response.
func (h *AuthHandler) bind(c *fiber.Ctx, out any, missingMsg string) (string, bool) {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return "Cannot parse JSON", false
		}
	}

	if err := h.validate.Struct(out); err != nil {
		return missingMsg, false
	}

	return "", true
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindBadRequest:
		return fiber.StatusBadRequest
	case service.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case service.KindForbidden:
		return fiber.StatusForbidden
	case service.KindNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		slog.ErrorContext(c.UserContext(), "unhandled error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": service.MsgServerError, "error": err.Error()})
	}

	status := statusFor(svcErr.Kind)
	if status != fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"message": svcErr.Message})
	}

	slog.ErrorContext(c.UserContext(), svcErr.Message, "path", c.Path(), "error", svcErr.Err)

	body := fiber.Map{"message": svcErr.Message}
	if svcErr.Err != nil {
		body["error"] = svcErr.Err.Error()
	}
	return c.Status(status).JSON(body)
}
