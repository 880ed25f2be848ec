// Package pathutil provides secure path handling utilities for lock files.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for lock names that cannot address a file
// directly inside the lock directory.
var ErrInvalidName = errors.New("invalid lock name")

// maxNameLength keeps names within the common NAME_MAX of 255 bytes.
const maxNameLength = 255

// ValidateName checks that name is usable as a single file name.
// It rejects:
// 1. Empty names and the special entries "." and ".."
// 2. Path separators, which would address a file outside the lock directory
// 3. Null bytes and control characters
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, maxNameLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}

	for _, char := range name {
		if char < 32 || char == 127 {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}

	return nil
}

// SafeJoin joins a lock directory with a lock name, ensuring the result
// stays directly inside the directory.
func SafeJoin(dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	cleanDir := filepath.Clean(dir)
	joined := filepath.Join(cleanDir, name)

	// Join cleans the result; a valid name must survive that unchanged
	if filepath.Dir(joined) != cleanDir || filepath.Base(joined) != name {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidName, name, cleanDir)
	}

	return joined, nil
}
