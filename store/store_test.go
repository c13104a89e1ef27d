package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db, `create table if not exists kv (k text primary key, v text)`))
	_, err = db.Exec(`insert into kv values (?, ?)`, "a", "b")
	require.NoError(t, err)

	var v string
	require.NoError(t, db.Get(&v, `select v from kv where k=?`, "a"))
	assert.Equal(t, "b", v)
}

func TestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugin")
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, `create table t (n integer)`, `insert into t values (7)`))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, `select n from t`))
	assert.Equal(t, 7, n)
	assert.FileExists(t, filepath.Join(dir, DBName))
}

func TestMigrateRollsBack(t *testing.T) {
	db, err := Open(Memory)
	require.NoError(t, err)
	defer db.Close()
	err = Migrate(db, `create table ok (n integer)`, `not sql`)
	assert.Error(t, err)

	var count int
	require.NoError(t, db.Get(&count, `select count(*) from sqlite_master where name='ok'`))
	assert.Zero(t, count)
}
