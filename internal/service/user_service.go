package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"taxaudit/internal/middleware"
	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/pkg/pagination"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultTokenTTL is used when NewUserService gets a non-positive ttl.
const DefaultTokenTTL = 12 * time.Hour

const minPasswordLength = 8

// --- DTOs ---

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Interface ---

type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest, userID string) (UserResponse, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest, userID string) (UserResponse, error)
	DeleteUser(ctx context.Context, id string, userID string) error
	GetUser(ctx context.Context, id string) (UserResponse, error)
	ListUsers(ctx context.Context, role string, page, limit int) ([]UserResponse, int64, error)
	Login(ctx context.Context, req LoginUserRequest) (TokenResponse, error)
	// EnsureAdmin creates an admin account when none exists. It reports
	// whether an account was created.
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

// --- Implementation ---

type userService struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	tokenTTL  time.Duration
}

func NewUserService(userRepo repository.UserRepository, auditRepo repository.AuditRepository, tokenTTL time.Duration) UserService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &userService{userRepo: userRepo, auditRepo: auditRepo, tokenTTL: tokenTTL}
}

var validRoles = map[string]bool{
	middleware.RoleAdmin:   true,
	middleware.RoleAuditor: true,
	middleware.RoleViewer:  true,
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest, userID string) (UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" {
		return UserResponse{}, validationError("username is required")
	}
	if !validRoles[req.Role] {
		return UserResponse{}, validationError("invalid role %q: must be admin, auditor or viewer", req.Role)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return UserResponse{}, validationError("invalid email %q", req.Email)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return UserResponse{}, err
	}

	if err := s.checkLogin(ctx, username, email, nil); err != nil {
		return UserResponse{}, err
	}

	user := model.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     req.Role,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, &user); err != nil {
		return UserResponse{}, fmt.Errorf("failed to create user: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreateUser, user.ID.String(), user.Username,
		map[string]interface{}{"email": user.Email, "role": user.Role})

	return toUserResponse(user), nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest, userID string) (UserResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return UserResponse{}, validationError("invalid user id")
	}

	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		return UserResponse{}, notFound("user", err)
	}

	username, email := user.Username, user.Email
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if username == "" {
			return UserResponse{}, validationError("username cannot be empty")
		}
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return UserResponse{}, validationError("invalid email %q", *req.Email)
		}
	}
	if username != user.Username || email != user.Email {
		if err := s.checkLogin(ctx, username, email, &uid); err != nil {
			return UserResponse{}, err
		}
	}
	user.Username, user.Email = username, email

	if req.Role != nil {
		if !validRoles[*req.Role] {
			return UserResponse{}, validationError("invalid role %q: must be admin, auditor or viewer", *req.Role)
		}
		user.Role = *req.Role
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return UserResponse{}, err
		}
		user.Password = hash
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return UserResponse{}, fmt.Errorf("failed to update user: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionUpdateUser, user.ID.String(), user.Username,
		map[string]interface{}{"role": user.Role, "is_active": user.IsActive, "password_changed": req.Password != nil})

	return toUserResponse(*user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string, userID string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return validationError("invalid user id")
	}
	if id == userID {
		return validationError("users cannot delete themselves")
	}

	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		return notFound("user", err)
	}

	if err := s.userRepo.Delete(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionDeleteUser, user.ID.String(), user.Username, nil)
	return nil
}

func (s *userService) GetUser(ctx context.Context, id string) (UserResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return UserResponse{}, validationError("invalid user id")
	}
	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		return UserResponse{}, notFound("user", err)
	}
	return toUserResponse(*user), nil
}

func (s *userService) ListUsers(ctx context.Context, role string, page, limit int) ([]UserResponse, int64, error) {
	pg := pagination.Normalize(page, limit)
	users, total, err := s.userRepo.List(ctx, role, pg.Page, pg.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out, total, nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (TokenResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenResponse{}, ErrInvalidCredentials
		}
		return TokenResponse{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	if !user.IsActive {
		return TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return TokenResponse{}, ErrInvalidCredentials
	}

	secret := middleware.GetJWTSecret()
	if len(secret) == 0 {
		return TokenResponse{}, errors.New("token signing is not configured")
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"name": user.Username,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, user.ID.String(), model.ActionLogin, user.ID.String(), user.Username, nil)

	return TokenResponse{Token: signed, ExpiresAt: expiresAt, Role: user.Role}, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	count, err := s.userRepo.CountByRole(ctx, middleware.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	username := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = email[:at]
	}

	_, err = s.CreateUser(ctx, CreateUserRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     middleware.RoleAdmin,
	}, "system")
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Helpers ---

func (s *userService) checkLogin(ctx context.Context, username, email string, excludeID *uuid.UUID) error {
	count, err := s.userRepo.CountByLogin(ctx, username, email, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: username or email already in use", ErrConflict)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", validationError("password must have at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func toUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
