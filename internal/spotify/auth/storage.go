package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTokenFileName is the default name for the token file.
	DefaultTokenFileName = "spotify_token.json"

	// DefaultExpiryMargin is how long before expiry a token counts as
	// expiring soon.
	DefaultExpiryMargin = 5 * time.Minute

	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
)

// KV is a string key-value store. Set writes all entries at once.
type KV interface {
	Get(key string) (string, bool)
	Set(entries map[string]string) error
	Clear(keys ...string) error
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryKV) Set(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryKV) Clear(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// FileKV persists entries as a JSON object in a single file readable only
// by its owner. Writes go through a temp file and rename.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileKV creates a FileKV at path.
// If path is empty, uses the default location (~/.config/sheetplayer/spotify_token.json).
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "sheetplayer", DefaultTokenFileName)
	}

	return &FileKV{path: path}, nil
}

// Path returns the path to the backing file.
func (f *FileKV) Path() string {
	return f.path
}

// Exists returns true if the backing file exists.
func (f *FileKV) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// load reads the file. A missing or unreadable file is an empty store.
func (f *FileKV) load() map[string]string {
	data := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return make(map[string]string)
	}
	return data
}

func (f *FileKV) write(data map[string]string) error {
	if len(data) == 0 {
		err := os.Remove(f.path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete token file: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

func (f *FileKV) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.load()[key]
	return v, ok
}

func (f *FileKV) Set(entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := f.load()
	for k, v := range entries {
		data[k] = v
	}
	return f.write(data)
}

func (f *FileKV) Clear(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := f.load()
	for _, k := range keys {
		delete(data, k)
	}
	return f.write(data)
}

// TokenStore keeps the current token record in a KV.
type TokenStore struct {
	kv     KV
	clock  clockwork.Clock
	margin time.Duration
}

// StoreOption configures a TokenStore.
type StoreOption func(*TokenStore)

// WithStoreClock sets the clock used by IsValid and IsExpiringSoon.
func WithStoreClock(c clockwork.Clock) StoreOption {
	return func(s *TokenStore) { s.clock = c }
}

// WithMargin sets the expiring-soon window.
func WithMargin(d time.Duration) StoreOption {
	return func(s *TokenStore) { s.margin = d }
}

// NewTokenStore creates a TokenStore over kv.
func NewTokenStore(kv KV, opts ...StoreOption) *TokenStore {
	s := &TokenStore{
		kv:     kv,
		clock:  clockwork.NewRealClock(),
		margin: DefaultExpiryMargin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the access token, refresh token and expiry in one update.
func (s *TokenStore) Save(rec *TokenRecord) error {
	return s.kv.Set(map[string]string{
		keyAccessToken:  rec.AccessToken,
		keyRefreshToken: rec.RefreshToken,
		keyExpiresAt:    strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
	})
}

// Read returns the stored record. It reports false if any entry is missing
// or the expiry does not parse.
func (s *TokenStore) Read() (*TokenRecord, bool) {
	access, ok := s.kv.Get(keyAccessToken)
	if !ok {
		return nil, false
	}
	refresh, ok := s.kv.Get(keyRefreshToken)
	if !ok {
		return nil, false
	}
	raw, ok := s.kv.Get(keyExpiresAt)
	if !ok {
		return nil, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}

	return &TokenRecord{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.UnixMilli(ms),
	}, true
}

// ValidAt reports whether a record is stored and unexpired at now.
func (s *TokenStore) ValidAt(now time.Time) bool {
	rec, ok := s.Read()
	return ok && now.Before(rec.ExpiresAt)
}

// ExpiringSoonAt reports whether now is past expiry minus the margin. An
// absent record counts as expiring.
func (s *TokenStore) ExpiringSoonAt(now time.Time) bool {
	rec, ok := s.Read()
	if !ok {
		return true
	}
	return now.After(rec.ExpiresAt.Add(-s.margin))
}

// IsValid is ValidAt for the store's clock.
func (s *TokenStore) IsValid() bool {
	return s.ValidAt(s.clock.Now())
}

// IsExpiringSoon is ExpiringSoonAt for the store's clock.
func (s *TokenStore) IsExpiringSoon() bool {
	return s.ExpiringSoonAt(s.clock.Now())
}

// Clear removes the stored record.
func (s *TokenStore) Clear() error {
	return s.kv.Clear(keyAccessToken, keyRefreshToken, keyExpiresAt)
}
