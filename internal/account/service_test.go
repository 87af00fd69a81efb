package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/royale-relay/backend/internal/auth"
	"github.com/royale-relay/backend/internal/models"
	"github.com/royale-relay/backend/internal/store"
)

// memStore is an in-memory Store. Insert deliberately does not enforce
// username uniqueness so tests exercise the service's own guarantee.
type memStore struct {
	mu       sync.Mutex
	accounts []*models.Account
	findErr  error
	delay    time.Duration
}

func (m *memStore) Insert(_ context.Context, acc *models.Account) error {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *acc
	m.accounts = append(m.accounts, &cp)
	return nil
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID.Hex() == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) Update(_ context.Context, username string, fields map[string]any) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username != username {
			continue
		}
		for k, v := range fields {
			switch k {
			case "email":
				a.Email = v.(string)
			case "level":
				a.Level = v.(int)
			case "xp":
				a.XP = v.(int)
			case "vbucks":
				a.VBucks = v.(int)
			case "inventory":
				a.Inventory = v.([]any)
			case "friends":
				a.Friends = v.([]string)
			case "stats.kills":
				a.Stats.Kills = v.(int)
			case "stats.deaths":
				a.Stats.Deaths = v.(int)
			case "stats.wins":
				a.Stats.Wins = v.(int)
			case "stats.matches":
				a.Stats.Matches = v.(int)
			case "settings":
				a.Settings = v.(map[string]any)
			}
		}
		cp := *a
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) count(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.accounts {
		if a.Username == username {
			n++
		}
	}
	return n
}

func newTestService(st Store) (*Service, *auth.Tokens) {
	tokens := auth.NewTokens("test-secret")
	svc := NewService(st, tokens)
	svc.hashCost = bcrypt.MinCost
	return svc, tokens
}

func register(t *testing.T, svc *Service, username, password string) *models.RegisterResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), models.RegisterRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return resp
}

func TestRegisterDefaultsAndHashesPassword(t *testing.T) {
	st := &memStore{}
	svc, _ := newTestService(st)

	resp := register(t, svc, "ana", "hunter2")
	if resp.Token == "" {
		t.Fatal("expected token")
	}
	want := models.PublicProfile{Username: "ana", Level: 1, VBucks: 1000}
	if resp.User != want {
		t.Fatalf("user = %+v, want %+v", resp.User, want)
	}

	stored, _ := st.FindByUsername(context.Background(), "ana")
	if stored.Password == "hunter2" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("hunter2")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	st := &memStore{}
	svc, _ := newTestService(st)
	register(t, svc, "ana", "pw")

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "ana", Password: "other"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("err = %v, want ErrDuplicateUsername", err)
	}
	if n := st.count("ana"); n != 1 {
		t.Fatalf("stored accounts = %d, want 1", n)
	}
}

func TestRegisterRequiresCredentials(t *testing.T) {
	svc, _ := newTestService(&memStore{})
	for _, req := range []models.RegisterRequest{
		{Username: "", Password: "pw"},
		{Username: "  ", Password: "pw"},
		{Username: "ana", Password: ""},
	} {
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("register %+v err = %v, want ErrInvalidInput", req, err)
		}
	}
}

func TestConcurrentRegistrationAdmitsOne(t *testing.T) {
	st := &memStore{delay: 5 * time.Millisecond}
	svc, _ := newTestService(st)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "racer", Password: "pw"})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateUsername):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful registrations = %d, want 1", succeeded)
	}
	if n := st.count("racer"); n != 1 {
		t.Fatalf("stored accounts = %d, want 1", n)
	}
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	st := &memStore{}
	svc, tokens := newTestService(st)
	reg := register(t, svc, "ana", "pw")

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	regClaims, err := tokens.Verify(reg.Token)
	if err != nil {
		t.Fatalf("verify register token: %v", err)
	}
	loginClaims, err := tokens.Verify(login.Token)
	if err != nil {
		t.Fatalf("verify login token: %v", err)
	}
	stored, _ := st.FindByUsername(context.Background(), "ana")
	if regClaims.AccountID != stored.ID.Hex() || loginClaims.AccountID != stored.ID.Hex() {
		t.Fatalf("token account ids = %q/%q, want %q", regClaims.AccountID, loginClaims.AccountID, stored.ID.Hex())
	}
	if login.User.Username != "ana" || login.User.VBucks != 1000 || login.User.Inventory == nil || login.User.Friends == nil {
		t.Fatalf("login user = %+v", login.User)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newTestService(&memStore{})
	register(t, svc, "ana", "pw")

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if resp != nil {
		t.Fatal("expected no token on failed login")
	}

	if _, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "pw"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPersistenceFailureSurfacesMessage(t *testing.T) {
	svc, _ := newTestService(&memStore{findErr: errors.New("connection refused")})

	_, err := svc.GetProfile(context.Background(), "ana")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if got := err.Error(); got != "persistence failure: find account: connection refused" {
		t.Fatalf("message = %q", got)
	}
}

func TestUpdateProfileMergesOnlyProvidedFields(t *testing.T) {
	st := &memStore{}
	svc, _ := newTestService(st)
	register(t, svc, "ana", "pw")
	acc, _ := st.FindByUsername(context.Background(), "ana")

	upd, err := models.DecodeProfileUpdate([]byte(`{"xp":50}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	profile, err := svc.UpdateProfile(context.Background(), acc.ID.Hex(), "ana", upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if profile.XP != 50 {
		t.Fatalf("xp = %d, want 50", profile.XP)
	}
	if profile.Level != 1 || profile.VBucks != 1000 || profile.Stats != (models.Stats{}) {
		t.Fatalf("unrelated fields changed: %+v", profile)
	}
}

func TestUpdateProfileOwnership(t *testing.T) {
	st := &memStore{}
	svc, _ := newTestService(st)
	register(t, svc, "ana", "pw")
	register(t, svc, "bob", "pw")
	bob, _ := st.FindByUsername(context.Background(), "bob")

	upd, _ := models.DecodeProfileUpdate([]byte(`{"vbucks":999999}`))
	if _, err := svc.UpdateProfile(context.Background(), bob.ID.Hex(), "ana", upd); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	ana, _ := st.FindByUsername(context.Background(), "ana")
	if ana.VBucks != 1000 {
		t.Fatalf("vbucks = %d, want unchanged 1000", ana.VBucks)
	}
}

func TestUpdateProfileMissingUserReturnsNil(t *testing.T) {
	svc, _ := newTestService(&memStore{})

	upd, _ := models.DecodeProfileUpdate([]byte(`{"xp":1}`))
	profile, err := svc.UpdateProfile(context.Background(), "anyone", "ghost", upd)
	if err != nil || profile != nil {
		t.Fatalf("update = %v, %v; want nil, nil", profile, err)
	}
}

func TestUpdateProfileRejectsInvalidValues(t *testing.T) {
	svc, _ := newTestService(&memStore{})

	upd, _ := models.DecodeProfileUpdate([]byte(`{"level":0}`))
	if _, err := svc.UpdateProfile(context.Background(), "x", "ana", upd); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("err = %v, want ErrInvalidUpdate", err)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.lock("a")
	unlock()
	if len(k.locks) != 0 {
		t.Fatalf("locks = %d, want 0", len(k.locks))
	}
}
