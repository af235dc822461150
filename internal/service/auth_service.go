package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"careerlink-auth/internal/jwt"
	"careerlink-auth/internal/mailer"
	"careerlink-auth/internal/model"
	"careerlink-auth/internal/repository"
)

const (
	DefaultBcryptCost = 12
	ResetTokenTTL     = 10 * time.Minute
	resetTokenBytes   = 32
)

type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	PasswordConfirm string
	Role            model.Role
}

type ChangePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	NewPasswordConfirm string
}

type ResetPasswordInput struct {
	Token              string
	NewPassword        string
	NewPasswordConfirm string
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Token string
	User  model.PublicUser
}

type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate verifies a bearer token and loads the user it names.
	Authenticate(ctx context.Context, token string) (*model.PublicUser, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.PublicUser, error)
	ListUsers(ctx context.Context) ([]model.PublicUser, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
}

type authService struct {
	userRepo   repository.UserRepository
	issuer     *jwt.Issuer
	mail       mailer.Sender
	clientURL  string
	bcryptCost int
	now        func() time.Time
}

type Option func(*authService)

func WithBcryptCost(cost int) Option {
	return func(s *authService) { s.bcryptCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *authService) { s.now = now }
}

func NewAuthService(userRepo repository.UserRepository, issuer *jwt.Issuer, mail mailer.Sender, clientURL string, opts ...Option) AuthService {
	s := &authService{
		userRepo:   userRepo,
		issuer:     issuer,
		mail:       mail,
		clientURL:  strings.TrimRight(clientURL, "/"),
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" || in.PasswordConfirm == "" {
		return nil, badRequest(MsgAllFieldsRequired)
	}
	if in.Password != in.PasswordConfirm {
		return nil, badRequest(MsgPasswordsMismatch)
	}

	role := in.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, badRequest(MsgInvalidRole)
	}

	_, err := s.userRepo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, badRequest(MsgEmailRegistered)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, internal(MsgServerError, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, internal(MsgServerError, err)
	}

	user := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}

	newID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// a concurrent signup won the unique index
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, badRequest(MsgEmailRegistered)
		}
		return nil, internal(MsgServerError, err)
	}
	user.ID = newID

	return s.session(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, badRequest(MsgCredentialsRequired)
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, unauthenticated(MsgInvalidCredentials)
	}

	return s.session(user)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.PublicUser, error) {
	claims, err := s.issuer.ParseToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrMissingSecret) {
			return nil, internal(MsgServerError, err)
		}
		return nil, &Error{Kind: KindUnauthenticated, Message: MsgTokenFailed, Err: err}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: MsgTokenFailed, Err: err}
	}

	return s.GetUser(ctx, userID)
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*model.PublicUser, error) {
	user, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

func (s *authService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, internal(MsgServerError, err)
	}

	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" || in.NewPasswordConfirm == "" {
		return badRequest(MsgAllFieldsRequired)
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return badRequest(MsgPasswordsMismatch)
	}

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return unauthenticated(MsgCurrentPasswordBad)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return internal(MsgServerError, err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return s.storeError(err)
	}

	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return badRequest(MsgEmailRequired)
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return internal(MsgServerError, err)
	}

	expiresAt := s.now().Add(ResetTokenTTL).UTC()
	if err := s.userRepo.SetResetToken(ctx, user.ID, hashResetToken(token), expiresAt); err != nil {
		return s.storeError(err)
	}

	resetURL := s.clientURL + "/reset-password/" + token
	msg := mailer.PasswordResetMessage(user.Email, user.FirstName, resetURL, ResetTokenTTL)

	if err := s.mail.Send(ctx, msg); err != nil {
		if clearErr := s.userRepo.ClearResetToken(ctx, user.ID); clearErr != nil {
			slog.ErrorContext(ctx, "failed to clear undelivered reset token", "user_id", user.ID, "error", clearErr)
		}
		return internal(MsgEmailNotSent, err)
	}

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if in.Token == "" || in.NewPassword == "" || in.NewPasswordConfirm == "" {
		return badRequest(MsgAllFieldsRequired)
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return badRequest(MsgPasswordsMismatch)
	}

	tokenHash := hashResetToken(in.Token)
	user, err := s.userRepo.FindByResetTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return badRequest(MsgInvalidResetToken)
		}
		return internal(MsgServerError, err)
	}

	if user.PasswordResetExpiresAt == nil || !user.PasswordResetExpiresAt.After(s.now()) {
		return badRequest(MsgResetTokenExpired)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return internal(MsgServerError, err)
	}

	// A concurrent reset or a newer forgot-password may have replaced the
	// token since the lookup.
	if err := s.userRepo.ResetPassword(ctx, user.ID, tokenHash, string(hash)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return badRequest(MsgInvalidResetToken)
		}
		return internal(MsgServerError, err)
	}

	return nil
}

func (s *authService) session(user *model.User) (*AuthResult, error) {
	token, err := s.issuer.IssueToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, internal(MsgServerError, err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}

func (s *authService) findByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError(err)
	}
	return user, nil
}

func (s *authService) findByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}
	return user, nil
}

func (s *authService) storeError(err error) *Error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(MsgUserNotFound)
	}
	return internal(MsgServerError, err)
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
