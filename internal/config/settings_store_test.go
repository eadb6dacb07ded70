package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsStore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.json")

		store := NewSettingsStore(path, nil)
		if store.Enabled("stops") {
			t.Error("a fresh store should report layers disabled")
		}
		if err := store.SetEnabled("stops", true); err != nil {
			t.Fatalf("SetEnabled failed: %v", err)
		}

		// A second store over the same file sees the persisted state.
		reopened := NewSettingsStore(path, nil)
		if !reopened.Enabled("stops") {
			t.Error("persisted visibility was lost across reopen")
		}
	})

	t.Run("MissingFileIsEmpty", func(t *testing.T) {
		store := NewSettingsStore(filepath.Join(t.TempDir(), "absent.json"), nil)
		if store.Enabled("anything") {
			t.Error("a missing file must behave as an empty store")
		}
	})

	t.Run("CorruptFileIsTolerated", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.json")
		if err := os.WriteFile(path, []byte("{ nope"), 0o644); err != nil {
			t.Fatal(err)
		}

		store := NewSettingsStore(path, nil)
		if store.Enabled("stops") {
			t.Error("a corrupt file must behave as an empty store")
		}
		// Writing repairs the file.
		if err := store.SetEnabled("stops", true); err != nil {
			t.Fatalf("SetEnabled after corruption failed: %v", err)
		}
		if !NewSettingsStore(path, nil).Enabled("stops") {
			t.Error("the store should recover by rewriting the file")
		}
	})
}
