package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"letter-portal/logic/routing"
)

// setupTestDB opens a migrated SQLite database with a small directory.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(Options{
		Driver:   DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	require.NoError(t, NewDirectoryRepo(db).Upsert(context.Background(), &DirectorySeed{
		Departments: []Department{{ID: 10, Name: "Finance"}, {ID: 11, Name: "Legal"}},
		Divisions:   []Division{{ID: 20, Name: "Procurement"}},
		Deputies:    []Deputy{{ID: 30, Name: "Deputy of Operations"}},
	}))
	return db
}

// createTestLetter stores a letter addressed to units, all rows NOT_ARRIVE.
func createTestLetter(t *testing.T, repo *LetterRepo, id string, units ...routing.Unit) []Signature {
	t.Helper()
	sigs := make([]Signature, 0, len(units))
	for _, u := range units {
		sigs = append(sigs, NewSignature(u))
	}
	err := repo.CreateWithSignatures(context.Background(), &Letter{
		LetterID:   id,
		Sender:     "Head Office",
		Recipient:  "Branch",
		Subject:    "Budget " + id,
		LetterType: routing.LetterInternal,
		Status:     routing.LetterOnProgress,
		CreatedAt:  time.Now(),
	}, sigs)
	require.NoError(t, err)
	return sigs
}

// loadSignatures reads every row of a letter, ordered by signature_id.
func loadSignatures(t *testing.T, repo *LetterRepo, id string) []Signature {
	t.Helper()
	letter, err := repo.LoadLetter(context.Background(), id)
	require.NoError(t, err)
	return letter.Signatures
}
