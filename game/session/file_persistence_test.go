package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/idanshlomo1/memorygame-app/game/config"
	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/game/service"
)

func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager) {
	t.Helper()

	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(t.TempDir(), configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	return persistence, configManager
}

func newTestSession(t *testing.T, id, configID string, cfg *engine.GameConfig, opts ...engine.Option) *service.Session {
	t.Helper()

	eng, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(eng.Close)

	return &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         cfg,
		ConfigID:       configID,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
}

func TestFilePersistence(t *testing.T) {
	persistence, configManager := newTestPersistence(t)
	sched := engine.NewManualScheduler()

	gameConfig := configManager.GetDefault()
	session := newTestSession(t, "test1", "", gameConfig, engine.WithScheduler(sched))

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		defer loadedSession.Engine.Close()

		if loadedSession.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loadedSession.ID)
		}
		if loadedSession.Config.Name != session.Config.Name {
			t.Errorf("Expected config name %s, got %s", session.Config.Name, loadedSession.Config.Name)
		}
		if loadedSession.ConfigID != "classic" {
			t.Errorf("Expected config id resolved from the name, got %q", loadedSession.ConfigID)
		}

		want := session.Engine.GetState().Cards
		got := loadedSession.Engine.GetState().Cards
		if len(got) != len(want) {
			t.Fatalf("Expected %d cards, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Card %d differs after reload: %+v vs %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("Pending Mismatch Is Rescheduled", func(t *testing.T) {
		flipMismatch(t, session)
		attempts := session.Engine.GetAttempts()

		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save updated session: %v", err)
		}

		loadSched := engine.NewManualScheduler()
		loadedSession, err := persistence.Load("test1", engine.WithScheduler(loadSched))
		if err != nil {
			t.Fatalf("Failed to load updated session: %v", err)
		}
		defer loadedSession.Engine.Close()

		if loadedSession.Engine.GetAttempts() != attempts {
			t.Errorf("Expected %d attempts, got %d", attempts, loadedSession.Engine.GetAttempts())
		}
		if len(loadedSession.Engine.GetFlipHistory()) != len(session.Engine.GetFlipHistory()) {
			t.Errorf("Flip history not persisted correctly")
		}
		if loadSched.Pending() != 1 {
			t.Fatalf("Expected restored mismatch to schedule a timer, got %d", loadSched.Pending())
		}

		loadSched.FireAll()
		if loadedSession.Engine.GetPhase() != engine.PhaseDealt {
			t.Errorf("Expected the restored mismatch to resolve, phase %s", loadedSession.Engine.GetPhase())
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		session2 := newTestSession(t, "test2", "classic", gameConfig)
		if err := persistence.Save(session2); err != nil {
			t.Fatalf("Failed to save second session: %v", err)
		}

		sessionIDs, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}

		found := make(map[string]bool)
		for _, id := range sessionIDs {
			found[id] = true
		}
		if !found["test1"] || !found["test2"] {
			t.Errorf("Expected sessions not found in list: %v", sessionIDs)
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}

		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}

		if _, err := persistence.Load("test2"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if _, err := persistence.Load("nonexistent"); err == nil {
			t.Error("Should get error when loading non-existent session")
		}

		if err := persistence.Delete("nonexistent"); err == nil {
			t.Error("Should get error when deleting non-existent session")
		}

		if err := persistence.Save(nil); err == nil {
			t.Error("Should get error when saving nil session")
		}
	})
}

func TestFilePersistenceConfigIDs(t *testing.T) {
	persistence, configManager := newTestPersistence(t)

	t.Run("named config", func(t *testing.T) {
		letters, err := configManager.LoadConfig("letters")
		if err != nil {
			t.Fatalf("Failed to load letters config: %v", err)
		}
		medium, _ := letters.FindDifficulty("medium")
		session := newTestSession(t, "letters1", "letters", letters, engine.WithDifficulty(medium))
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		loaded, err := persistence.Load("letters1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		defer loaded.Engine.Close()

		if loaded.Config.Name != "letters" || loaded.ConfigID != "letters" {
			t.Errorf("Expected letters config, got %s/%s", loaded.Config.Name, loaded.ConfigID)
		}
		if loaded.Engine.GetState().Difficulty != "medium" {
			t.Errorf("Expected medium difficulty, got %s", loaded.Engine.GetState().Difficulty)
		}
	})

	t.Run("built-in config", func(t *testing.T) {
		builtin := engine.DefaultGameConfig()
		builtin.Name = "built-in"
		session := newTestSession(t, "builtin1", "", builtin)
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		data := readPersisted(t, persistence, "builtin1")
		if data.ConfigName != "built-in" {
			t.Errorf("Expected unknown names to be stored as-is, got %q", data.ConfigName)
		}
	})

	t.Run("default marker", func(t *testing.T) {
		session := newTestSession(t, "default1", defaultConfigID, configManager.GetDefault())
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		loaded, err := persistence.Load("default1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		defer loaded.Engine.Close()

		if loaded.Config.Name != configManager.GetDefault().Name {
			t.Error("Expected the default marker to resolve to the default config")
		}
	})

	t.Run("missing config", func(t *testing.T) {
		cfg := engine.DefaultGameConfig()
		session := newTestSession(t, "gone1", "does-not-exist", cfg)
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if _, err := persistence.Load("gone1"); err == nil {
			t.Error("Expected an error for a session whose config is gone")
		}
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	persistence, configManager := newTestPersistence(t)

	session := newTestSession(t, "File_Test", "classic", configManager.GetDefault())
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	// Check file exists in correct location
	expectedFile := filepath.Join(persistence.sessionsDir, "file_test.json")
	data, err := os.ReadFile(expectedFile)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}

	content := string(data)
	expectedFields := []string{"\"id\"", "\"config_name\"", "\"created_at\"", "\"game_state\"", "\"content\""}
	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Session file should contain field %s", field)
		}
	}

	if !persistence.Exists("FILE_TEST") {
		t.Error("Expected case-insensitive lookup on disk")
	}
}

func TestFilePersistenceSkipsTempFiles(t *testing.T) {
	persistence, configManager := newTestPersistence(t)

	session := newTestSession(t, "real", "classic", configManager.GetDefault())
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	// Leftovers from an interrupted save and unrelated files
	os.WriteFile(filepath.Join(persistence.sessionsDir, ".session-123.json"), []byte("{"), 0644)
	os.WriteFile(filepath.Join(persistence.sessionsDir, "notes.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(persistence.sessionsDir, "sub.json"), 0755)

	ids, err := persistence.ListAll()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(ids) != 1 || ids[0] != "real" {
		t.Errorf("Expected only the real session, got %v", ids)
	}
}

func TestFilePersistencePathTraversal(t *testing.T) {
	persistence, _ := newTestPersistence(t)

	path := persistence.getFilePath("../../etc/passwd")
	if filepath.Dir(path) != persistence.sessionsDir {
		t.Errorf("Expected path inside the sessions dir, got %s", path)
	}
}

func readPersisted(t *testing.T, fp *FilePersistence, id string) PersistedSessionData {
	t.Helper()

	raw, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("Failed to decode session file: %v", err)
	}
	return data
}
