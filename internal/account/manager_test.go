// ABOUTME: Tests for the account manager and keyring store
// ABOUTME: Uses an in-memory keyring so no OS credential store is touched

package account

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

func newTestManager(t *testing.T) (*Manager, *KeyringStore) {
	t.Helper()
	store := NewKeyringStore(keyring.NewArrayKeyring(nil))
	return NewManager(store), store
}

func testAccount(userID string) *Account {
	return &Account{
		UserID:       userID,
		OrgID:        "00Dxx0000001",
		Username:     userID + "@acme.example",
		LoginURL:     "https://login.salesforce.com",
		InstanceURL:  "https://acme.my.salesforce.com",
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestManager_CurrentEmpty(t *testing.T) {
	m, _ := newTestManager(t)

	if m.Current() != nil {
		t.Error("expected no current account on an empty store")
	}
}

func TestManager_SetCurrentPersists(t *testing.T) {
	m, store := newTestManager(t)

	if err := m.SetCurrent(testAccount("005A")); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.UserID != "005A" || loaded.AccessToken != "access-005A" {
		t.Errorf("unexpected stored account %+v", loaded)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}

	// A fresh manager over the same store sees the account
	m2 := NewManager(store)
	if cur := m2.Current(); cur == nil || cur.UserID != "005A" {
		t.Errorf("expected reloaded account 005A, got %+v", cur)
	}
}

func TestManager_CurrentReturnsCopy(t *testing.T) {
	m, _ := newTestManager(t)
	m.SetCurrent(testAccount("005A"))

	cur := m.Current()
	cur.Username = "mutated"

	if m.Current().Username == "mutated" {
		t.Error("expected Current to return a copy")
	}
}

func TestManager_NotifiesOnUserChange(t *testing.T) {
	m, _ := newTestManager(t)

	var events [][2]string
	m.Subscribe(func(prev, next *Account) {
		var p, n string
		if prev != nil {
			p = prev.UserID
		}
		if next != nil {
			n = next.UserID
		}
		events = append(events, [2]string{p, n})
	})

	m.SetCurrent(testAccount("005A"))
	m.SetCurrent(testAccount("005A")) // same user, new tokens: no event
	m.SetCurrent(testAccount("005B"))
	m.Logout()
	m.Logout() // already logged out: no event

	want := [][2]string{{"", "005A"}, {"005A", "005B"}, {"005B", ""}}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestManager_Unsubscribe(t *testing.T) {
	m, _ := newTestManager(t)

	calls := 0
	unsubscribe := m.Subscribe(func(prev, next *Account) { calls++ })
	unsubscribe()
	unsubscribe() // idempotent

	m.SetCurrent(testAccount("005A"))
	if calls != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestManager_UpdateTokenKeepsRefreshToken(t *testing.T) {
	m, store := newTestManager(t)
	m.SetCurrent(testAccount("005A"))

	notified := false
	m.Subscribe(func(prev, next *Account) { notified = true })

	expiry := time.Now().Add(2 * time.Hour)
	if err := m.UpdateToken(&oauth2.Token{AccessToken: "new-access", Expiry: expiry}); err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}

	loaded, _ := store.Load()
	if loaded.AccessToken != "new-access" {
		t.Errorf("expected new access token, got %s", loaded.AccessToken)
	}
	if loaded.RefreshToken != "refresh-005A" {
		t.Errorf("expected refresh token to be kept, got %s", loaded.RefreshToken)
	}
	if notified {
		t.Error("expected token refresh not to notify subscribers")
	}
}

func TestManager_UpdateTokenWithoutAccount(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.UpdateToken(&oauth2.Token{AccessToken: "x"})
	if !errors.Is(err, ErrNoAccount) {
		t.Errorf("expected ErrNoAccount, got %v", err)
	}
}

func TestManager_LogoutClearsStore(t *testing.T) {
	m, store := newTestManager(t)
	m.SetCurrent(testAccount("005A"))

	if err := m.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if m.Current() != nil {
		t.Error("expected no current account after logout")
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoAccount) {
		t.Errorf("expected ErrNoAccount from store, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m, _ := newTestManager(t)
	m.SetCurrent(testAccount("005A"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Current()
		}()
		go func() {
			defer wg.Done()
			_ = m.UpdateToken(&oauth2.Token{AccessToken: "t"})
		}()
	}
	wg.Wait()
}

func TestKeyringStore_DeviceIDStable(t *testing.T) {
	_, store := newTestManager(t)

	first, err := store.DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if first == "" {
		t.Fatal("expected non-empty device id")
	}
	second, _ := store.DeviceID()
	if first != second {
		t.Errorf("expected stable device id, got %s then %s", first, second)
	}
}

func TestSameUser(t *testing.T) {
	a := testAccount("005A")
	b := testAccount("005A")
	c := testAccount("005B")

	if !SameUser(nil, nil) {
		t.Error("expected nil accounts to be the same")
	}
	if SameUser(a, nil) || SameUser(nil, a) {
		t.Error("expected nil and non-nil to differ")
	}
	if !SameUser(a, b) {
		t.Error("expected same org and user id to match")
	}
	if SameUser(a, c) {
		t.Error("expected different user ids to differ")
	}
}

func TestParseBackend(t *testing.T) {
	if b, err := parseBackend("file"); err != nil || b != keyring.FileBackend {
		t.Errorf("expected file backend, got %v %v", b, err)
	}
	if _, err := parseBackend("floppy"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenKeyring_FileBackend(t *testing.T) {
	store, err := OpenKeyring(KeyringConfig{Backend: "file", Dir: t.TempDir(), Password: "test"})
	if err != nil {
		t.Fatalf("OpenKeyring failed: %v", err)
	}

	if err := store.Save(testAccount("005A")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.UserID != "005A" {
		t.Errorf("expected 005A, got %s", loaded.UserID)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("expected clearing an empty keyring to succeed, got %v", err)
	}
}
