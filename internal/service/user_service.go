package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaidashi/delivery-orders/internal/auth"
	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/models"
	"github.com/vaidashi/delivery-orders/internal/repository"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

// NewUserInput carries the fields of an account to provision
type NewUserInput struct {
	Username string
	Password string
	FullName string
	Role     models.Role
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type userStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// UserService provisions staff accounts and logs them in
type UserService struct {
	users  userStore
	hasher *auth.Hasher
	cfg    config.AuthConfig
	now    func() time.Time
	logger logger.Logger
}

// NewUserService creates a new UserService
func NewUserService(users *repository.UserRepository, hasher *auth.Hasher, cfg config.AuthConfig, logger logger.Logger) *UserService {
	return newUserService(users, hasher, cfg, logger)
}

func newUserService(users userStore, hasher *auth.Hasher, cfg config.AuthConfig, logger logger.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// CreateUser provisions an account. A username without "@" logs in as
// <username>@ordini.local.
func (s *UserService) CreateUser(ctx context.Context, in NewUserInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	fullName := strings.TrimSpace(in.FullName)
	if username == "" || in.Password == "" || fullName == "" {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}
	if !in.Role.IsValid() {
		return nil, apperrors.NewInvalidInputError(MsgInvalidRole)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("hash password failed")
	}

	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        models.LoginEmail(username),
		PasswordHash: hash,
		FullName:     fullName,
		Role:         in.Role,
		CreatedAt:    models.GetCurrentTime(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, translate(err, "utente")
	}

	s.logger.Info("User created", "userID", u.ID, "username", u.Username, "role", u.Role)
	return u, nil
}

// Login checks credentials and issues an access token. The login may be a
// username or its e-mail form.
func (s *UserService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperrors.NewInvalidInputError(MsgMissingFields)
	}

	u, err := s.users.GetByLogin(ctx, models.LoginEmail(login))
	if errors.Is(err, repository.ErrNotFound) {
		u, err = s.users.GetByLogin(ctx, login)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError(MsgBadCredentials)
		}
		return nil, err
	}

	if !s.hasher.Compare(u.PasswordHash, password) {
		s.logger.Warn("Login rejected", "login", login)
		return nil, apperrors.NewUnauthorizedError(MsgBadCredentials)
	}

	now := s.now()
	token, err := auth.MintToken(s.cfg, now, u)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: now.Add(s.cfg.TokenTTL), User: u}, nil
}

// EnsureBootstrapAdmin creates the configured admin account when no user
// exists yet. It does nothing without configured credentials.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context) error {
	if s.cfg.BootstrapAdminUsername == "" || s.cfg.BootstrapAdminPassword == "" {
		return nil
	}

	n, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	_, err = s.CreateUser(ctx, NewUserInput{
		Username: s.cfg.BootstrapAdminUsername,
		Password: s.cfg.BootstrapAdminPassword,
		FullName: "Amministratore",
		Role:     models.RoleAdmin,
	})
	return err
}
