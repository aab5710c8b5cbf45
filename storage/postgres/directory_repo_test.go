package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letter-portal/logic/routing"
)

func TestResolveAll(t *testing.T) {
	dir := NewDirectoryRepo(setupTestDB(t))
	ctx := context.Background()

	names, err := dir.ResolveAll(ctx, []routing.Unit{routing.Department(10), routing.Division(20), routing.Deputy(30)})
	require.NoError(t, err)
	assert.Equal(t, "Finance", names[routing.Department(10)])
	assert.Equal(t, "Procurement", names[routing.Division(20)])
	assert.Equal(t, "Deputy of Operations", names[routing.Deputy(30)])

	// id 20 exists as a division, not as a department
	_, err = dir.ResolveAll(ctx, []routing.Unit{routing.Department(10), routing.Department(20)})
	assert.True(t, routing.IsNotFound(err))

	name, err := dir.Resolve(ctx, routing.Department(11))
	require.NoError(t, err)
	assert.Equal(t, "Legal", name)
}

func TestUpsert_OverwritesNames(t *testing.T) {
	db := setupTestDB(t)
	dir := NewDirectoryRepo(db)
	ctx := context.Background()

	require.NoError(t, dir.Upsert(ctx, &DirectorySeed{
		Departments: []Department{{ID: 10, Name: "Finance & Tax"}, {ID: 12, Name: "IT"}},
	}))

	name, err := dir.Resolve(ctx, routing.Department(10))
	require.NoError(t, err)
	assert.Equal(t, "Finance & Tax", name)

	var count int64
	require.NoError(t, db.Model(&Department{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestLoadDirectorySeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
departments:
  - {id: 10, name: Finance}
divisions:
  - id: 20
    name: Procurement
deputies:
  - {id: 30, name: Deputy of Operations}
`), 0o644))

	seed, err := LoadDirectorySeed(path)
	require.NoError(t, err)
	assert.Equal(t, []Department{{ID: 10, Name: "Finance"}}, seed.Departments)
	assert.Equal(t, []Division{{ID: 20, Name: "Procurement"}}, seed.Divisions)
	assert.Equal(t, []Deputy{{ID: 30, Name: "Deputy of Operations"}}, seed.Deputies)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("departments:\n  - {id: 0, name: x}\n"), 0o644))
	_, err = LoadDirectorySeed(bad)
	assert.Error(t, err)
}

func TestUpsert_WritesEachKindToItsOwnTable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	count := func(model any) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(2), count(&Department{}))
	assert.Equal(t, int64(1), count(&Division{}))
	assert.Equal(t, int64(1), count(&Deputy{}))

	// the same id under another kind is a different unit
	require.NoError(t, NewDirectoryRepo(db).Upsert(ctx, &DirectorySeed{
		Divisions: []Division{{ID: 10, Name: "Treasury"}},
		Deputies:  []Deputy{{ID: 11, Name: "Deputy of Legal Affairs"}},
	}))

	names, err := NewDirectoryRepo(db).ResolveAll(ctx, []routing.Unit{
		routing.Department(10), routing.Department(11), routing.Division(10), routing.Deputy(11),
	})
	require.NoError(t, err)
	assert.Equal(t, "Finance", names[routing.Department(10)])
	assert.Equal(t, "Legal", names[routing.Department(11)])
	assert.Equal(t, "Treasury", names[routing.Division(10)])
	assert.Equal(t, "Deputy of Legal Affairs", names[routing.Deputy(11)])
	assert.Equal(t, int64(2), count(&Department{}))
}
