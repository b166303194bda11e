package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, secret string) *ConfigStore {
	t.Helper()
	store, err := InitStore(filepath.Join(t.TempDir(), "app.db"), secret)
	if err != nil {
		t.Fatalf("InitStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigRoundTrip(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	has, err := store.HasConfigItems(ctx)
	if err != nil {
		t.Fatalf("HasConfigItems failed: %v", err)
	}
	if has {
		t.Fatal("fresh store should have no config items")
	}
	if _, err := store.LoadConfig(ctx); !errors.Is(err, errConfigNotFound) {
		t.Fatalf("expected errConfigNotFound on empty store, got %v", err)
	}

	payload := ConfigPayload{
		Target:    exportTargetNotion,
		BaseURL:   "https://cms.example.com/graphql",
		PageSize:  50,
		Token:     "plain-token",
		DebugRoot: "logs",
	}
	if err := store.SaveConfig(ctx, payload); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := store.LoadConfig(ctx)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Target != exportTargetNotion || loaded.BaseURL != payload.BaseURL || loaded.PageSize != 50 {
		t.Fatalf("config round trip mismatch: %+v", loaded)
	}
	if loaded.Token != "plain-token" {
		t.Fatalf("token mismatch: %q", loaded.Token)
	}
}

func TestTokenEncryptedAtRest(t *testing.T) {
	store := newTestStore(t, "s3cret")
	ctx := context.Background()

	if err := store.SaveConfig(ctx, ConfigPayload{Token: "bearer-token"}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	// 库里的值必须是密文
	var raw []byte
	var encrypted int64
	err := store.db.QueryRowContext(ctx,
		`SELECT value, encrypted FROM config_items WHERE key = 'token'`).Scan(&raw, &encrypted)
	if err != nil {
		t.Fatalf("query token row: %v", err)
	}
	if encrypted != 1 {
		t.Fatalf("token row should be marked encrypted, got %d", encrypted)
	}
	if strings.Contains(string(raw), "bearer-token") {
		t.Fatal("token stored in plaintext")
	}

	loaded, err := store.LoadConfig(ctx)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Token != "bearer-token" {
		t.Fatalf("decrypted token mismatch: %q", loaded.Token)
	}
}

func TestMigratedLedger(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	done, err := store.IsMigrated(ctx, "42", exportTargetLocal)
	if err != nil {
		t.Fatalf("IsMigrated failed: %v", err)
	}
	if done {
		t.Fatal("article should not be migrated yet")
	}

	if err := store.RecordMigrated(ctx, "42", "标题", exportTargetLocal, "output/42.md"); err != nil {
		t.Fatalf("RecordMigrated failed: %v", err)
	}
	done, err = store.IsMigrated(ctx, "42", exportTargetLocal)
	if err != nil {
		t.Fatalf("IsMigrated failed: %v", err)
	}
	if !done {
		t.Fatal("article should be recorded as migrated")
	}

	// 不同目标互不影响
	done, _ = store.IsMigrated(ctx, "42", exportTargetNotion)
	if done {
		t.Fatal("migration record must be scoped to its target")
	}

	// 重复记录应覆盖而非报错
	if err := store.RecordMigrated(ctx, "42", "新标题", exportTargetLocal, "output/42-v2.md"); err != nil {
		t.Fatalf("re-record failed: %v", err)
	}
	count, err := store.CountMigrated(ctx, exportTargetLocal)
	if err != nil {
		t.Fatalf("CountMigrated failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ledger row after overwrite, got %d", count)
	}
}
