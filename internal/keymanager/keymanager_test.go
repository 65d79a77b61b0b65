package keymanager

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestStoreGetRoundTrip(t *testing.T) {
	km := New(filepath.Join(t.TempDir(), "keys.json"))
	if err := km.Unlock("master"); err != nil {
		t.Fatal(err)
	}

	if err := km.Store(KeyAnthropic, "Anthropic API Key", "sk-ant-123"); err != nil {
		t.Fatal(err)
	}

	got, err := km.Get(KeyAnthropic)
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-ant-123" {
		t.Errorf("unexpected secret: %s", got)
	}
}

func TestLockedOperationsFail(t *testing.T) {
	km := New(filepath.Join(t.TempDir(), "keys.json"))

	if err := km.Store("x", "X", "y"); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked from Store, got %v", err)
	}
	if _, err := km.Get("x"); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked from Get, got %v", err)
	}
	if _, err := km.List(); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked from List, got %v", err)
	}
	if km.IsUnlocked() {
		t.Error("expected locked state")
	}
}

func TestWrongPasswordRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	km := New(path)
	if err := km.Unlock("correct"); err != nil {
		t.Fatal(err)
	}
	if err := km.Store(KeyScrapybara, "Scrapybara", "scrapy-key"); err != nil {
		t.Fatal(err)
	}

	reopened := New(path)
	if err := reopened.Unlock("wrong"); err == nil {
		t.Fatal("expected wrong password to be rejected")
	}
	if reopened.IsUnlocked() {
		t.Error("store should remain locked after failed unlock")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	km := New(path)
	if err := km.Unlock("master"); err != nil {
		t.Fatal(err)
	}
	if err := km.Store(KeyMemoryAPI, "Memory API", "mem-key"); err != nil {
		t.Fatal(err)
	}

	reopened := New(path)
	if err := reopened.Unlock("master"); err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Get(KeyMemoryAPI)
	if err != nil {
		t.Fatal(err)
	}
	if got != "mem-key" {
		t.Errorf("unexpected secret after reopen: %s", got)
	}
}

func TestDelete(t *testing.T) {
	km := New(filepath.Join(t.TempDir(), "keys.json"))
	if err := km.Unlock("master"); err != nil {
		t.Fatal(err)
	}
	if err := km.Store("temp", "Temp", "v"); err != nil {
		t.Fatal(err)
	}
	if err := km.Delete("temp"); err != nil {
		t.Fatal(err)
	}
	if _, err := km.Get("temp"); err == nil {
		t.Error("expected error for deleted credential")
	}
}

func TestListOmitsSecrets(t *testing.T) {
	km := New(filepath.Join(t.TempDir(), "keys.json"))
	if err := km.Unlock("master"); err != nil {
		t.Fatal(err)
	}
	if err := km.Store(KeyAnthropic, "Anthropic", "secret"); err != nil {
		t.Fatal(err)
	}

	entries, err := km.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].EncryptedData != "" {
		t.Error("List must not expose encrypted data")
	}
	if entries[0].Name != "Anthropic" {
		t.Errorf("unexpected name: %s", entries[0].Name)
	}
}

func TestGetOrEnv(t *testing.T) {
	km := New(filepath.Join(t.TempDir(), "keys.json"))
	if err := km.Unlock("master"); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PODPLAY_TEST_KEY", "from-env")
	if got := km.GetOrEnv("missing", "PODPLAY_TEST_KEY"); got != "from-env" {
		t.Errorf("expected env fallback, got %s", got)
	}

	if err := km.Store("present", "Present", "from-store"); err != nil {
		t.Fatal(err)
	}
	if got := km.GetOrEnv("present", "PODPLAY_TEST_KEY"); got != "from-store" {
		t.Errorf("expected stored value to win, got %s", got)
	}
}
