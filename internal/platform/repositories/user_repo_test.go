package repositories

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"monitorflow/internal/platform/models"
)

func TestUserCreateAndGetByAPIKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	user := &models.User{Email: "dev@example.com", DiscordID: "123456789"}
	rawKey, err := repo.Create(user)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if !strings.HasPrefix(rawKey, "mf_live_") {
		t.Errorf("Unexpected key format: %s", rawKey)
	}
	if user.Plan != models.PlanFree {
		t.Errorf("Expected default FREE plan, got %s", user.Plan)
	}
	if user.APIKeyHash == rawKey {
		t.Error("Raw key must not be stored as-is")
	}

	fetched, err := repo.GetByAPIKey(rawKey)
	if err != nil {
		t.Fatalf("Failed to resolve user by API key: %v", err)
	}
	if fetched.ID != user.ID {
		t.Errorf("Expected %s, got %s", user.ID, fetched.ID)
	}
	if fetched.DiscordID != "123456789" {
		t.Errorf("Unexpected discord id: %s", fetched.DiscordID)
	}
}

func TestUserGetByAPIKeyUnknown(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByAPIKey("mf_live_does-not-exist")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestUserRegenerateAPIKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	user := &models.User{Email: "dev@example.com"}
	oldKey, err := repo.Create(user)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	newKey, err := repo.RegenerateAPIKey(user.ID)
	if err != nil {
		t.Fatalf("RegenerateAPIKey failed: %v", err)
	}
	if newKey == oldKey {
		t.Error("Expected a fresh key")
	}

	if _, err := repo.GetByAPIKey(oldKey); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Old key should no longer resolve, got %v", err)
	}
	if _, err := repo.GetByAPIKey(newKey); err != nil {
		t.Errorf("New key should resolve: %v", err)
	}
}
