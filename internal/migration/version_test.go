package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestMigrationVersion(t *testing.T) {
	v, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestMigrationsChecksumStable(t *testing.T) {
	a, err := MigrationsChecksum()
	require.NoError(t, err)
	b, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestParseMigrationVersion(t *testing.T) {
	cases := []struct {
		name string
		want uint
		ok   bool
	}{
		{"0001_init.up.sql", 1, true},
		{"0012_add_index.up.sql", 12, true},
		{"init.up.sql", 0, false},
		{"_init.up.sql", 0, false},
		{"0000_zero.up.sql", 0, false},
		{"v1_init.up.sql", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseMigrationVersion(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}
