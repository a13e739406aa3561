package data

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contest-radar/backend/internal/domain"
)

//go:embed dev_users.json
var devUsersData []byte

// userJSON represents the JSON structure for development users
type userJSON struct {
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Password  string            `json:"password"`
	Phone     string            `json:"phone"`
	Channels  []string          `json:"channels"`
	Reminders []string          `json:"reminders"`
	Handles   map[string]string `json:"handles"`
}

// Seeder handles database seeding operations
type Seeder struct {
	users    domain.UserRepository
	hashCost int
	logger   *zap.Logger
}

// NewSeeder creates a new database seeder
func NewSeeder(users domain.UserRepository, logger *zap.Logger) *Seeder {
	return &Seeder{
		users:    users,
		hashCost: bcrypt.DefaultCost,
		logger:   logger,
	}
}

// SeedDevUsers creates the embedded development accounts. Existing emails
// are left untouched, so it is safe to run on every start.
func (s *Seeder) SeedDevUsers() error {
	var seeds []userJSON
	if err := json.Unmarshal(devUsersData, &seeds); err != nil {
		return fmt.Errorf("failed to parse dev users: %w", err)
	}

	created := 0
	for _, seed := range seeds {
		user, err := s.build(seed)
		if err != nil {
			return fmt.Errorf("dev user %s: %w", seed.Email, err)
		}

		if err := s.users.Create(user); err != nil {
			if errors.Is(err, domain.ErrUserAlreadyExists) {
				s.logger.Debug("Dev user already exists", zap.String("email", seed.Email))
				continue
			}
			return err
		}
		created++
	}

	s.logger.Info("Dev users seeded",
		zap.Int("created", created),
		zap.Int("total", len(seeds)),
	)
	return nil
}

func (s *Seeder) build(seed userJSON) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        seed.Email,
		Name:         seed.Name,
		PasswordHash: string(hash),
		Phone:        seed.Phone,
	}
	for _, name := range seed.Channels {
		ch, err := domain.ParseChannel(name)
		if err != nil {
			return nil, err
		}
		user.Channels = append(user.Channels, string(ch))
	}
	for _, name := range seed.Reminders {
		kind, err := domain.ParseReminderKind(name)
		if err != nil {
			return nil, err
		}
		user.Reminders = append(user.Reminders, string(kind))
	}
	for name, handle := range seed.Handles {
		platform, err := domain.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
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
	return user, nil
}
