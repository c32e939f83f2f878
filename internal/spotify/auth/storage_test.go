package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestFileKV(t *testing.T) {
	tmpDir := t.TempDir()
	tokenPath := filepath.Join(tmpDir, "token.json")

	kv, err := NewFileKV(tokenPath)
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}

	if kv.Exists() {
		t.Error("Exists() = true, want false for new store")
	}
	if _, ok := kv.Get("access_token"); ok {
		t.Error("Get() should report absent for missing file")
	}

	if err := kv.Set(map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !kv.Exists() {
		t.Error("Exists() = false after set, want true")
	}

	if v, ok := kv.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	info, err := os.Stat(tokenPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("File permissions = %o, want 0600", mode)
	}

	// A second handle sees the same data.
	other, _ := NewFileKV(tokenPath)
	if v, ok := other.Get("b"); !ok || v != "2" {
		t.Errorf("Get(b) from second handle = %q, %v", v, ok)
	}

	if err := kv.Clear("a"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok := kv.Get("a"); ok {
		t.Error("Get(a) after clear should be absent")
	}

	if err := kv.Clear("b"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if kv.Exists() {
		t.Error("file should be removed once empty")
	}
}

func TestFileKVCorruptFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenPath, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	kv, _ := NewFileKV(tokenPath)
	if _, ok := kv.Get("access_token"); ok {
		t.Error("corrupt file should read as empty")
	}
	if err := kv.Set(map[string]string{"x": "y"}); err != nil {
		t.Fatalf("Set() over corrupt file error = %v", err)
	}
	if v, _ := kv.Get("x"); v != "y" {
		t.Errorf("Get(x) = %q, want y", v)
	}
}

func TestFileKVNestedDirectory(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "nested", "dir", "token.json")

	kv, err := NewFileKV(tokenPath)
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}
	if err := kv.Set(map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !kv.Exists() {
		t.Error("Token file not created in nested directory")
	}
}

func TestFileKVPath(t *testing.T) {
	path := "/custom/path/token.json"
	kv, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}
	if kv.Path() != path {
		t.Errorf("Path() = %q, want %q", kv.Path(), path)
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	store := NewTokenStore(NewMemoryKV())

	if _, ok := store.Read(); ok {
		t.Fatal("Read() on empty store should report absent")
	}

	expires := time.UnixMilli(1_700_000_123_456)
	if err := store.Save(&TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, ok := store.Read()
	if !ok {
		t.Fatal("Read() after save should succeed")
	}
	if rec.AccessToken != "a" || rec.RefreshToken != "r" || !rec.ExpiresAt.Equal(expires) {
		t.Errorf("unexpected record: %+v", rec)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok := store.Read(); ok {
		t.Error("Read() after clear should report absent")
	}
}

func TestTokenStorePartialRecord(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(map[string]string{"access_token": "a", "expires_at": "123"})

	store := NewTokenStore(kv)
	if _, ok := store.Read(); ok {
		t.Error("record without refresh token should be absent")
	}

	_ = kv.Set(map[string]string{"refresh_token": "r", "expires_at": "soon"})
	if _, ok := store.Read(); ok {
		t.Error("record with unparseable expiry should be absent")
	}
}

func TestTokenStoreIsValid(t *testing.T) {
	expires := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before", expires.Add(-time.Hour), true},
		{"one ms before", expires.Add(-time.Millisecond), true},
		{"at expiry", expires, false},
		{"after", expires.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewTokenStore(NewMemoryKV(), WithStoreClock(clockwork.NewFakeClockAt(tt.now)))
			_ = store.Save(&TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires})
			if got := store.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenStoreIsValidAbsent(t *testing.T) {
	store := NewTokenStore(NewMemoryKV())
	if store.IsValid() {
		t.Error("IsValid() on empty store should be false")
	}
	if !store.IsExpiringSoon() {
		t.Error("IsExpiringSoon() on empty store should be true")
	}
}

func TestTokenStoreIsExpiringSoon(t *testing.T) {
	expires := time.UnixMilli(1_700_000_000_000)
	boundary := expires.Add(-5 * time.Minute)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly at margin", boundary, false},
		{"just past margin", boundary.Add(time.Nanosecond), true},
		{"well before", boundary.Add(-time.Hour), false},
		{"expired", expires.Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewTokenStore(NewMemoryKV(), WithStoreClock(clockwork.NewFakeClockAt(tt.now)))
			_ = store.Save(&TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires})
			if got := store.IsExpiringSoon(); got != tt.want {
				t.Errorf("IsExpiringSoon() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenStoreMargin(t *testing.T) {
	expires := time.UnixMilli(1_700_000_000_000)
	store := NewTokenStore(NewMemoryKV(), WithMargin(time.Minute))
	_ = store.Save(&TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires})

	if store.ExpiringSoonAt(expires.Add(-2 * time.Minute)) {
		t.Error("two minutes out should not be expiring with a one minute margin")
	}
	if !store.ExpiringSoonAt(expires.Add(-30 * time.Second)) {
		t.Error("thirty seconds out should be expiring with a one minute margin")
	}
}

func FuzzTokenStoreValidAt(f *testing.F) {
	f.Add(int64(1_700_000_000_000), int64(1_699_999_999_999))
	f.Add(int64(0), int64(0))
	f.Add(int64(-5), int64(10))

	f.Fuzz(func(t *testing.T, expiresMS, nowMS int64) {
		store := NewTokenStore(NewMemoryKV())
		_ = store.Save(&TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.UnixMilli(expiresMS)})

		got := store.ValidAt(time.UnixMilli(nowMS))
		if want := nowMS < expiresMS; got != want {
			t.Errorf("ValidAt(now=%d, expires=%d) = %v, want %v", nowMS, expiresMS, got, want)
		}
	})
}
