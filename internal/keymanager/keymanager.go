// Package keymanager stores provider credentials (Anthropic, Scrapybara,
// memory API) encrypted at rest. Keys are encrypted with AES-GCM under a key
// derived from the master password via PBKDF2.
package keymanager

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Well-known credential ids used by the service wiring.
const (
	KeyAnthropic  = "anthropic"
	KeyScrapybara = "scrapybara"
	KeyMemoryAPI  = "memory-api"
)

// ErrLocked is returned when the store has not been unlocked.
var ErrLocked = errors.New("key store is locked")

// Entry is one encrypted credential.
type Entry struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	EncryptedData string    `json:"encrypted_data"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type store struct {
	Version        string            `json:"version"`
	PasswordSalt   string            `json:"password_salt"`
	PasswordVerify string            `json:"password_verify"`
	Keys           map[string]*Entry `json:"keys"`
}

// KeyManager manages the encrypted credential store on disk.
type KeyManager struct {
	storePath string
	password  []byte
	store     *store
	mu        sync.RWMutex
	unlocked  bool
}

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// New creates a key manager over the given store path.
func New(storePath string) *KeyManager {
	return &KeyManager{
		storePath: storePath,
		store: &store{
			Keys: make(map[string]*Entry),
		},
	}
}

// Unlock opens the store with the master password, creating an empty store on
// first use.
func (km *KeyManager) Unlock(password string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	km.password = []byte(password)

	if err := km.loadStore(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load key store: %w", err)
		}
		km.store = &store{
			Version: "1",
			Keys:    make(map[string]*Entry),
		}
		if err := km.initializePassword(); err != nil {
			return fmt.Errorf("failed to initialize password: %w", err)
		}
		if err := km.saveStore(); err != nil {
			return fmt.Errorf("failed to initialize key store: %w", err)
		}
	}

	if km.store.PasswordVerify != "" {
		if err := km.verifyPassword(password); err != nil {
			km.password = nil
			return err
		}
	}

	km.unlocked = true
	return nil
}

// IsUnlocked reports whether credentials can be read.
func (km *KeyManager) IsUnlocked() bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.unlocked
}

// Store encrypts and persists a credential.
func (km *KeyManager) Store(id, name, secret string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if !km.unlocked {
		return ErrLocked
	}

	encrypted, err := km.encrypt([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	now := time.Now()
	entry, exists := km.store.Keys[id]
	if exists {
		entry.Name = name
		entry.EncryptedData = base64.StdEncoding.EncodeToString(encrypted)
		entry.UpdatedAt = now
	} else {
		km.store.Keys[id] = &Entry{
			ID:            id,
			Name:          name,
			EncryptedData: base64.StdEncoding.EncodeToString(encrypted),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	return km.saveStore()
}

// Get decrypts and returns a credential.
func (km *KeyManager) Get(id string) (string, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if !km.unlocked {
		return "", ErrLocked
	}

	entry, exists := km.store.Keys[id]
	if !exists {
		return "", fmt.Errorf("credential not found: %s", id)
	}

	encrypted, err := base64.StdEncoding.DecodeString(entry.EncryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode credential: %w", err)
	}

	decrypted, err := km.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return string(decrypted), nil
}

// GetOrEnv returns the stored credential, falling back to an environment
// variable when the store has no entry or is locked.
func (km *KeyManager) GetOrEnv(id, envVar string) string {
	if secret, err := km.Get(id); err == nil && secret != "" {
		return secret
	}
	return os.Getenv(envVar)
}

// Delete removes a credential.
func (km *KeyManager) Delete(id string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if !km.unlocked {
		return ErrLocked
	}

	delete(km.store.Keys, id)
	return km.saveStore()
}

// List returns entries without decrypted data.
func (km *KeyManager) List() ([]*Entry, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if !km.unlocked {
		return nil, ErrLocked
	}

	keys := make([]*Entry, 0, len(km.store.Keys))
	for _, entry := range km.store.Keys {
		keys = append(keys, &Entry{
			ID:        entry.ID,
			Name:      entry.Name,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return keys, nil
}

func (km *KeyManager) initializePassword() error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}

	km.store.PasswordSalt = base64.StdEncoding.EncodeToString(salt)
	verify := pbkdf2.Key(km.password, salt, iterations, keySize, sha256.New)
	km.store.PasswordVerify = base64.StdEncoding.EncodeToString(verify)
	return nil
}

func (km *KeyManager) verifyPassword(password string) error {
	if km.store.PasswordSalt == "" || km.store.PasswordVerify == "" {
		return errors.New("key store missing password verification")
	}

	salt, err := base64.StdEncoding.DecodeString(km.store.PasswordSalt)
	if err != nil {
		return fmt.Errorf("failed to decode password salt: %w", err)
	}

	derived := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
	if base64.StdEncoding.EncodeToString(derived) != km.store.PasswordVerify {
		return errors.New("invalid password")
	}
	return nil
}

func (km *KeyManager) derivedKey() ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(km.store.PasswordSalt)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key(km.password, salt, iterations, keySize, sha256.New), nil
}

func (km *KeyManager) encrypt(plaintext []byte) ([]byte, error) {
	key, err := km.derivedKey()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (km *KeyManager) decrypt(ciphertext []byte) ([]byte, error) {
	key, err := km.derivedKey()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func (km *KeyManager) loadStore() error {
	data, err := os.ReadFile(km.storePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, km.store)
}

func (km *KeyManager) saveStore() error {
	data, err := json.MarshalIndent(km.store, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(km.storePath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(km.storePath, data, 0600)
}
