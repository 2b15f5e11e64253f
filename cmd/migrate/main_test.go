package main

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bqmigrations "github.com/dvloznov/voice-expense/internal/infra/bigquery/migrations"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_ai_usage.sql", true, "0001", "create_ai_usage"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.version, m[1])
			assert.Equal(t, tt.name, m[2])
		})
	}
}

func TestParseMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")},
		"0001_first.sql":  {Data: []byte("SELECT 1 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")},
		"README.md":       {Data: []byte("ignored")},
	}

	got, err := parseMigrations(fsys, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "SELECT 1 FROM `proj.ds.t`", got[0].SQL)
	assert.Equal(t, 2, got[1].Version)
}

func TestParseMigrations_ChecksumIgnoresTarget(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_first.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64)")},
	}

	a, err := parseMigrations(fsys, "proj-a", "ds")
	require.NoError(t, err)
	b, err := parseMigrations(fsys, "proj-b", "ds")
	require.NoError(t, err)

	assert.NotEqual(t, a[0].SQL, b[0].SQL)
	assert.Equal(t, a[0].Checksum, b[0].Checksum)
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	pending := pendingMigrations(all, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestEmbeddedBigQueryMigrations(t *testing.T) {
	got, err := parseMigrations(bqmigrations.FS, "proj", "ds")
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for _, m := range got {
		assert.NotContains(t, m.SQL, "{{PROJECT_ID}}")
		assert.NotContains(t, m.SQL, "{{DATASET_ID}}")
		assert.Contains(t, m.SQL, "proj.ds.ai_usage")
	}
}
