package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore persists live sessions with a time to live. Implemented by
// redisclient.Client; unknown sessions yield redisclient.ErrSessionNotFound.
type SessionStore interface {
	SaveSession(ctx context.Context, session *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// RegisterInput is the body of a registration request
type RegisterInput struct {
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Email     string `json:"email" form:"email"`
	Age       int    `json:"age" form:"age"`
	Password  string `json:"password" form:"password"`
}

// LoginResult is a freshly opened session
type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  *models.Identity `json:"user"`
}

// SessionService registers users and manages their sessions
type SessionService struct {
	store       store.Store
	sessions    SessionStore
	tokens      *auth.TokenService
	carts       *CartService
	adminEmails map[string]bool
	logger      *zap.Logger
}

// NewSessionService creates a new session service. Users registering with one
// of adminEmails get the admin role.
func NewSessionService(
	store store.Store,
	sessions SessionStore,
	tokens *auth.TokenService,
	carts *CartService,
	adminEmails []string,
) *SessionService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		admins[normalizeEmail(email)] = true
	}
	return &SessionService{
		store:       store,
		sessions:    sessions,
		tokens:      tokens,
		carts:       carts,
		adminEmails: admins,
		logger:      util.GetLogger(),
	}
}

// Register creates a user with a fresh cart of their own
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.Register")
	defer span.End()

	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, validationf("email %q is not valid", in.Email)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, validationf("first_name is required")
	}
	if in.Age < 0 {
		return nil, validationf("age must not be negative")
	}

	hash, err := auth.HashPassword(in.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, validationf("%s", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, validationf("email %s is already registered", email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	cart, err := s.carts.CreateCart(ctx)
	if err != nil {
		return nil, err
	}

	role := models.RoleUser
	if s.adminEmails[email] {
		role = models.RoleAdmin
	}

	user := &models.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     email,
		Age:       in.Age,
		Password:  hash,
		Role:      role,
		CartID:    cart.ID,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if delErr := s.store.DeleteCart(ctx, cart.ID); delErr != nil {
			s.logger.Error("Failed to remove cart of failed registration",
				zap.String("cart_id", cart.ID),
				zap.Error(delErr))
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, validationf("email %s is already registered", email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
		zap.String("cart_id", user.CartID))
	return user, nil
}

// Login verifies credentials and opens a session
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.Login")
	defer span.End()

	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !auth.CheckPassword(password, user.Password) {
		return nil, newError(ErrUnauthorized, "invalid email or password")
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CartID:    user.CartID,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.SaveSession(ctx, session, s.tokens.Expiry()); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, expiresAt, err := s.tokens.Generate(session.ID, user.ID, user.Email, user.Role, user.CartID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("Session opened", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  identityOf(session),
	}, nil
}

// Authenticate resolves a token to the identity of a live session
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, newError(ErrUnauthorized, "%s", err)
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if errors.Is(err, redisclient.ErrSessionNotFound) {
		return nil, newError(ErrUnauthorized, "session has ended")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return identityOf(session), nil
}

// Logout ends a session. Ending an already ended session is not an error.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("Session closed", zap.String("session_id", sessionID))
	return nil
}

// Current returns the user behind an identity
func (s *SessionService) Current(ctx context.Context, identity *models.Identity) (*models.User, error) {
	if identity == nil {
		return nil, newError(ErrUnauthorized, "not authenticated")
	}
	user, err := s.store.GetUserByID(ctx, identity.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "user no longer exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// TTL is how long a session and its token stay valid
func (s *SessionService) TTL() time.Duration {
	return s.tokens.Expiry()
}

func identityOf(session *models.Session) *models.Identity {
	return &models.Identity{
		SessionID: session.ID,
		UserID:    session.UserID,
		Email:     session.Email,
		Role:      session.Role,
		CartID:    session.CartID,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
