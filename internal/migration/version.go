package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

type migrationFile struct {
	version uint
	name    string
}

// upMigrations lists the embedded up migrations ordered by version.
func upMigrations() ([]migrationFile, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var files []migrationFile
	seen := map[uint]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, ok := parseMigrationVersion(name)
		if !ok {
			return nil, fmt.Errorf("invalid migration filename: %s", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name
		files = append(files, migrationFile{version: version, name: name})
	}
	if len(files) == 0 {
		return nil, errors.New("no embedded migrations found")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func LatestMigrationVersion() (uint, error) {
	files, err := upMigrations()
	if err != nil {
		return 0, err
	}
	return files[len(files)-1].version, nil
}

// MigrationsChecksum hashes the up migrations in version order, so any edit
// to an applied file changes it.
func MigrationsChecksum() (string, error) {
	files, err := upMigrations()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, f := range files {
		content, err := embeddedMigrations.ReadFile(path.Join(migrationsDir, f.name))
		if err != nil {
			return "", fmt.Errorf("read migration %s: %w", f.name, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", f.name, len(content))
		h.Write(content)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// parseMigrationVersion reads the numeric prefix of NNNN_name.up.sql.
func parseMigrationVersion(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
