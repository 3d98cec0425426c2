package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/trustbites/backend/internal/storage/models"
	"github.com/trustbites/backend/internal/storage/sqlite"
	"github.com/trustbites/backend/pkg/logger"
)

const bcryptCost = 12

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InputError is a registration or login request that fails validation.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

type OwnerStore interface {
	CreateBusinessOwner(ctx context.Context, o *models.BusinessOwner) error
	GetBusinessOwnerByEmail(ctx context.Context, email string) (*models.BusinessOwner, error)
	GetBusinessOwner(ctx context.Context, id string) (*models.BusinessOwner, error)
}

type Claims struct {
	OwnerID      string `json:"ownerId"`
	Email        string `json:"email"`
	OwnerName    string `json:"ownerName"`
	BusinessName string `json:"businessName"`
	jwt.RegisteredClaims
}

type Service struct {
	store    OwnerStore
	secret   []byte
	tokenTTL time.Duration
	bcrypt   int
}

func NewService(store OwnerStore, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Service{store: store, secret: []byte(secret), tokenTTL: tokenTTL, bcrypt: bcryptCost}
}

func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

type RegisterInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	OwnerName       string `json:"ownerName"`
	BusinessName    string `json:"businessName"`
	RestaurantID    string `json:"restaurantId"`
}

func (in RegisterInput) validate() error {
	if in.Email == "" || in.Password == "" || strings.TrimSpace(in.OwnerName) == "" || strings.TrimSpace(in.BusinessName) == "" {
		return &InputError{Message: "All fields are required"}
	}
	if in.Password != in.ConfirmPassword {
		return &InputError{Message: "Passwords do not match"}
	}
	if len(in.Password) < 8 {
		return &InputError{Message: "Password must be at least 8 characters long"}
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		return &InputError{Message: "Please enter a valid email address"}
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.BusinessOwner, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcrypt)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	owner := &models.BusinessOwner{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		OwnerName:    strings.TrimSpace(in.OwnerName),
		BusinessName: strings.TrimSpace(in.BusinessName),
		RestaurantID: strings.TrimSpace(in.RestaurantID),
	}
	if err := s.store.CreateBusinessOwner(ctx, owner); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateEmail) {
			return nil, &InputError{Message: "An account with this email already exists"}
		}
		return nil, err
	}

	return owner, nil
}

// Login checks credentials and returns the owner with a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.BusinessOwner, string, error) {
	if email == "" || password == "" {
		return nil, "", &InputError{Message: "Email and password are required"}
	}

	owner, err := s.store.GetBusinessOwnerByEmail(ctx, email)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(password)); err != nil {
		logger.Debug("Password mismatch", zap.String("owner_id", owner.ID))
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(owner)
	if err != nil {
		return nil, "", err
	}
	return owner, token, nil
}

func (s *Service) IssueToken(owner *models.BusinessOwner) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID:      owner.ID,
		Email:        owner.Email,
		OwnerName:    owner.OwnerName,
		BusinessName: owner.BusinessName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Owner loads the owner a token was issued for.
func (s *Service) Owner(ctx context.Context, claims *Claims) (*models.BusinessOwner, error) {
	return s.store.GetBusinessOwner(ctx, claims.OwnerID)
}
