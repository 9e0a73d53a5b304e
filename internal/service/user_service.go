package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"connectmeet/internal/domain"
	"connectmeet/internal/repository"
	"connectmeet/lib/logger/sl"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const minPasswordLength = 6
const maxDisplayNameLength = 255

type UserService struct {
	users     repository.UserRepository
	log       *slog.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewUserService(users repository.UserRepository, log *slog.Logger, jwtSecret string, tokenTTL time.Duration) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{
		users:     users,
		log:       log,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates an account and returns it with a signed session token.
func (s *UserService) Register(ctx context.Context, name string, email string, password string) (*domain.User, string, error) {
	const op = "service.user.register"
	log := s.log.With(slog.String("op", op))

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, "", errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, "", errors.New("name is too long")
	}
	if email == "" {
		return nil, "", errors.New("email is required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, "", err
	}

	user := domain.NewUser(name, email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserEmailExists) {
			return nil, "", ErrEmailTaken
		}
		log.Error("failed to create user", sl.Err(err))
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		log.Error("failed to sign token", sl.Err(err))
		return nil, "", err
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

// Login verifies credentials and returns the account with a fresh token.
// A missing account and a wrong password report the same error.
func (s *UserService) Login(ctx context.Context, email string, password string) (*domain.User, string, error) {
	const op = "service.user.login"
	log := s.log.With(slog.String("op", op))

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		log.Error("failed to fetch user", sl.Err(err))
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		log.Error("failed to sign token", sl.Err(err))
		return nil, "", err
	}

	log.Info("user logged in", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// EnsureGuest creates a throwaway account so an unregistered visitor can
// still join a meeting under a display name.
func (s *UserService) EnsureGuest(ctx context.Context, name string) (*domain.User, string, error) {
	const op = "service.user.guest"
	log := s.log.With(slog.String("op", op))

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Guest"
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, "", errors.New("name is too long")
	}

	user := domain.NewGuestUser(name)
	if err := s.users.Create(ctx, user); err != nil {
		log.Error("failed to create guest", sl.Err(err))
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	log.Info("guest created", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

// TokenClaims is the claim set carried by session tokens.
type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *UserService) issueToken(user *domain.User) (string, error) {
	claims := TokenClaims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
