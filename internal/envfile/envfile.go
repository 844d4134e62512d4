// Package envfile converts environment profiles to and from .env files.
package envfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// BackupSuffix is appended to an existing file's name before it is
// overwritten by Write.
const BackupSuffix = ".backup"

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Read parses the .env file at path.
func Read(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	if err := Validate(vars); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return vars, nil
}

// Parse reads .env formatted variables from r.
func Parse(r io.Reader) (map[string]string, error) {
	vars, err := godotenv.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return vars, Validate(vars)
}

// Validate rejects keys a shell could not export.
func Validate(vars map[string]string) error {
	var bad []string
	for k := range vars {
		if !keyPattern.MatchString(k) {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("invalid variable names: %s", strings.Join(bad, ", "))
}

// Marshal renders vars in .env format with keys sorted.
func Marshal(vars map[string]string) (string, error) {
	if err := Validate(vars); err != nil {
		return "", err
	}
	out, err := godotenv.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("marshal env: %w", err)
	}
	return out, nil
}

// Write stores vars at path. An existing file is first copied to
// path+BackupSuffix.
func Write(path string, vars map[string]string) error {
	if err := Validate(vars); err != nil {
		return err
	}
	if err := backup(path); err != nil {
		return err
	}
	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

func backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("backup env file: %w", err)
	}
	if err := os.WriteFile(path+BackupSuffix, data, 0o600); err != nil {
		return fmt.Errorf("backup env file: %w", err)
	}
	return nil
}

// Diff lists the keys added, removed and changed going from old to new,
// each sorted. It backs the import preview.
func Diff(old, new map[string]string) (added, removed, changed []string) {
	for k, v := range new {
		prev, ok := old[k]
		switch {
		case !ok:
			added = append(added, k)
		case prev != v:
			changed = append(changed, k)
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
