package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/infrastructure"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// New accounts start with email reminders one day ahead
var (
	defaultChannels  = []string{string(domain.ChannelEmail)}
	defaultReminders = []string{string(domain.ReminderOneDay)}
)

// UserService handles accounts, authentication and reminder preferences
type UserService struct {
	userRepo  domain.UserRepository
	jwtConfig *infrastructure.JWTConfig
	hashCost  int
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo domain.UserRepository,
	jwtConfig *infrastructure.JWTConfig,
	tracer trace.Tracer,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		jwtConfig: jwtConfig,
		hashCost:  bcrypt.DefaultCost,
		tracer:    tracer,
		logger:    logger,
	}
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type tokenClaims struct {
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Register creates a new user account
func (s *UserService) Register(ctx context.Context, req *domain.UserCreateRequest) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	email := normalizeEmail(req.Email)
	span.SetAttributes(attribute.String("user.email", email))

	existing, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Error("Failed to check existing user", zap.Error(err))
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, domain.ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, nil, domain.ErrInternalServer
	}

	user := &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hashedPassword),
		Channels:     append([]string(nil), defaultChannels...),
		Reminders:    append([]string(nil), defaultReminders...),
	}

	if err := s.userRepo.Create(user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, nil, err
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, tokens, nil
}

// Login authenticates a user and returns tokens
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer span.End()

	email = normalizeEmail(email)
	span.SetAttributes(attribute.String("user.email", email))

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()))

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, tokens, nil
}

// RefreshToken exchanges a valid refresh token for a new pair
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	_, span := s.tracer.Start(ctx, "UserService.RefreshToken")
	defer span.End()

	userID, err := s.subjectOf(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	return s.generateTokenPair(user)
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	_, span := s.tracer.Start(ctx, "UserService.GetUserByID")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", id.String()))
	return s.userRepo.FindByID(id)
}

// UpdatePreferences validates and stores channels, reminder kinds, phone and
// platform handles. Fields absent from the request keep their value.
func (s *UserService) UpdatePreferences(ctx context.Context, userID uuid.UUID, req *domain.PreferencesRequest) (*domain.User, error) {
	_, span := s.tracer.Start(ctx, "UserService.UpdatePreferences")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if req.Channels != nil {
		channels, err := normalizeChannels(req.Channels)
		if err != nil {
			return nil, err
		}
		user.Channels = channels
	}
	if req.Reminders != nil {
		reminders, err := normalizeReminders(req.Reminders)
		if err != nil {
			return nil, err
		}
		user.Reminders = reminders
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	for name, handle := range req.Handles {
		platform, err := domain.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		setHandle(user, platform, strings.TrimSpace(handle))
	}

	if err := s.userRepo.Update(user); err != nil {
		s.logger.Error("Failed to update preferences",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Preferences updated",
		zap.String("user_id", userID.String()),
		zap.Strings("channels", user.Channels),
		zap.Strings("reminders", user.Reminders),
	)
	return user, nil
}

// GetNotifications returns the user's latest notification history
func (s *UserService) GetNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.NotificationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetNotifications")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	records, err := s.userRepo.FindNotifications(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.NotificationRecord{}
	}
	return records, nil
}

// ValidateAccessToken validates an access token and returns the user ID
func (s *UserService) ValidateAccessToken(tokenString string) (uuid.UUID, error) {
	return s.subjectOf(tokenString, tokenTypeAccess)
}

// generateTokenPair creates access and refresh tokens for a user
func (s *UserService) generateTokenPair(user *domain.User) (*TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.jwtConfig.AccessTokenExpiry)

	access, err := s.sign(tokenClaims{
		Type:             tokenTypeAccess,
		Email:            user.Email,
		RegisteredClaims: s.registered(user.ID, now, accessExpiry),
	})
	if err != nil {
		return nil, err
	}

	refresh, err := s.sign(tokenClaims{
		Type:             tokenTypeRefresh,
		RegisteredClaims: s.registered(user.ID, now, now.Add(s.jwtConfig.RefreshTokenExpiry)),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *UserService) registered(userID uuid.UUID, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.jwtConfig.Issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
}

func (s *UserService) sign(claims tokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.SecretKey))
}

// subjectOf validates a token of the expected type and returns its subject
func (s *UserService) subjectOf(tokenString, tokenType string) (uuid.UUID, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.jwtConfig.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Type != tokenType {
		return uuid.Nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return userID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeChannels(names []string) ([]string, error) {
	out := []string{}
	seen := map[domain.Channel]bool{}
	for _, name := range names {
		ch, err := domain.ParseChannel(name)
		if err != nil {
			return nil, err
		}
		if !seen[ch] {
			seen[ch] = true
			out = append(out, string(ch))
		}
	}
	return out, nil
}

func normalizeReminders(names []string) ([]string, error) {
	out := []string{}
	seen := map[domain.ReminderKind]bool{}
	for _, name := range names {
		kind, err := domain.ParseReminderKind(name)
		if err != nil {
			return nil, err
		}
		if !seen[kind] {
			seen[kind] = true
			out = append(out, string(kind))
		}
	}
	return out, nil
}

func setHandle(user *domain.User, platform domain.Platform, handle string) {
	switch platform {
	case domain.PlatformCodeforces:
		user.CodeforcesHandle = handle
	case domain.PlatformAtCoder:
		user.AtCoderHandle = handle
	case domain.PlatformLeetCode:
		user.LeetCodeHandle = handle
	case domain.PlatformCodeChef:
		user.CodeChefHandle = handle
	}
}
