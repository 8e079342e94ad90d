// SPDX-License-Identifier: GPL-3.0-or-later
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

// fileCache persists the msal token cache (accounts, access and refresh
// tokens) across runs so silent acquisition works on the next invocation.
// Single writer is assumed, concurrent runs against the same file are not
// supported.
type fileCache struct {
	path string
}

func newFileCache(path string) *fileCache {
	return &fileCache{path: path}
}

func (c *fileCache) Replace(ctx context.Context, contents cache.Unmarshaler, hints cache.ReplaceHints) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run, nothing cached yet
			return nil
		}
		return fmt.Errorf("could not read token cache: %w", err)
	}

	return contents.Unmarshal(data)
}

func (c *fileCache) Export(ctx context.Context, contents cache.Marshaler, hints cache.ExportHints) error {
	data, err := contents.Marshal()
	if err != nil {
		return fmt.Errorf("could not marshal token cache: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(c.path), 0700)
	if err != nil {
		return fmt.Errorf("could not create token cache directory: %w", err)
	}

	err = os.WriteFile(c.path, data, 0600)
	if err != nil {
		return fmt.Errorf("could not write token cache: %w", err)
	}

	return nil
}

// DefaultCachePath places the token cache under the user cache directory,
// falling back to the working directory when no home is available.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "msal_cache.json"
	}

	return filepath.Join(home, ".cache", "outlook-cleaner", "msal_cache.json")
}
