package repo

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return db
}

func TestCreateAndGetUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	created, err := CreateUser(ctx, db, "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("CreateUser assigned empty ID")
	}

	got, err := GetUserByUsername(ctx, db, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != created.ID || got.Email != "alice@example.com" {
		t.Errorf("got %+v; want the created row", got)
	}

	if _, err := GetUserByUsername(ctx, db, "nobody"); err == nil {
		t.Errorf("GetUserByUsername(nobody) should fail")
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, db, "alice", "a@example.com", "h1"); err != nil {
		t.Fatalf("first CreateUser: %v", err)
	}
	_, err := CreateUser(ctx, db, "alice", "b@example.com", "h2")
	if !IsDuplicateKey(err) {
		t.Fatalf("second CreateUser err = %v; want duplicate key", err)
	}
}

func TestUserExists(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, db, "bob", "b@example.com", "h"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ok, err := UserExists(ctx, db, "bob")
	if err != nil || !ok {
		t.Fatalf("UserExists(bob) = %v, %v; want true", ok, err)
	}
	ok, err = UserExists(ctx, db, "carol")
	if err != nil || ok {
		t.Fatalf("UserExists(carol) = %v, %v; want false", ok, err)
	}
}

func TestSearchUsers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "alicia", "Albert", "bob", "Özlem"} {
		if _, err := CreateUser(ctx, db, name, name+"@example.com", "h"); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}

	got, err := SearchUsers(ctx, db, "ali", "alicia", 10)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("SearchUsers(ali) = %v; want [alice] (requester excluded)", got)
	}

	got, err = SearchUsers(ctx, db, "AL", "nobody", 10)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("SearchUsers(AL) = %v; want Albert, alice, alicia", got)
	}

	// Matches anywhere in the name, not just the start.
	got, err = SearchUsers(ctx, db, "bert", "nobody", 10)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(got) != 1 || got[0] != "Albert" {
		t.Errorf("SearchUsers(bert) = %v; want [Albert]", got)
	}

	// Case folding is Unicode-aware on both sides; SQLite's ASCII-only
	// LOWER would never match here.
	got, err = SearchUsers(ctx, db, "ÖZ", "nobody", 10)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(got) != 1 || got[0] != "Özlem" {
		t.Errorf("SearchUsers(ÖZ) = %v; want [Özlem]", got)
	}

	got, err = SearchUsers(ctx, db, "  ", "nobody", 10)
	if err != nil || got != nil {
		t.Errorf("SearchUsers(blank) = %v, %v; want nil, nil", got, err)
	}
}
