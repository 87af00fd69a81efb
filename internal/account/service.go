package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/royale-relay/backend/internal/models"
	"github.com/royale-relay/backend/internal/store"
)

// Store defines the interface for account persistence. Lookups report a
// missing account as store.ErrNotFound and inserts report a taken
// username as store.ErrDuplicate.
type Store interface {
	Insert(ctx context.Context, acc *models.Account) error
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Update(ctx context.Context, username string, fields map[string]any) (*models.Account, error)
}

// TokenIssuer signs session tokens for an account id.
type TokenIssuer interface {
	Issue(accountID string) (string, error)
}

// Service implements registration, login and profile operations.
type Service struct {
	store    Store
	tokens   TokenIssuer
	hashCost int
	now      func() time.Time
	regLocks *keyedMutex
}

func NewService(st Store, tokens TokenIssuer) *Service {
	return &Service{
		store:    st,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		regLocks: newKeyedMutex(),
	}
}

// Register creates an account. The existence check and insert run under
// a per-username lock; the store's unique index covers other processes.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	unlock := s.regLocks.lock(req.Username)
	defer unlock()

	_, err := s.store.FindByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return nil, ErrDuplicateUsername
	case !errors.Is(err, store.ErrNotFound):
		return nil, persistenceErr("find account", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := models.NewAccount(req.Username, string(hashed), req.Email, s.now())
	if err := s.store.Insert(ctx, acc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, persistenceErr("insert account", err)
	}

	token, err := s.tokens.Issue(acc.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &models.RegisterResponse{Token: token, User: acc.PublicProfile()}, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	acc, err := s.find(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := s.tokens.Issue(acc.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, User: acc.SessionProfile()}, nil
}

// GetProfile returns the readable projection of an account.
func (s *Service) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	acc, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	return acc.Profile(), nil
}

// Me returns the profile of the authenticated account.
func (s *Service) Me(ctx context.Context, accountID string) (*models.Profile, error) {
	acc, err := s.store.FindByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("find account", err)
	}
	return acc.Profile(), nil
}

// UpdateProfile merges the allow-listed fields of upd into the account
// owned by callerID. It returns nil, nil when the username does not exist.
func (s *Service) UpdateProfile(ctx context.Context, callerID, username string, upd models.ProfileUpdate) (*models.Profile, error) {
	if err := upd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	acc, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("find account", err)
	}
	if acc.ID.Hex() != callerID {
		return nil, ErrForbidden
	}

	updated, err := s.store.Update(ctx, username, upd.Fields())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("update account", err)
	}
	return updated.Profile(), nil
}

func (s *Service) find(ctx context.Context, username string) (*models.Account, error) {
	acc, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("find account", err)
	}
	return acc, nil
}
