// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fauxterm/fauxterm/internal/kvstore"
)

// PrefsKeyPrefix prefixes the key-value entry holding an account's Prefs.
const PrefsKeyPrefix = "prefs_"

// PrefsKey returns the key holding username's prefs.
func PrefsKey(username string) string {
	return PrefsKeyPrefix + username
}

// LoadPrefs reads username's prefs, returning fallback when none are stored
// or they cannot be read.
func LoadPrefs(ctx context.Context, kv kvstore.Store, username string, fallback Prefs) (Prefs, error) {
	raw, ok, err := kv.Get(ctx, PrefsKey(username))
	if err != nil {
		return fallback, fmt.Errorf("loading prefs for %s: %w", username, err)
	}
	if !ok {
		return fallback, nil
	}
	var p Prefs
	if err := json.Unmarshal(raw, &p); err != nil {
		return fallback, fmt.Errorf("decoding prefs for %s: %w", username, err)
	}
	return p.clone(), nil
}

// SavePrefs stores username's prefs.
func SavePrefs(ctx context.Context, kv kvstore.Store, username string, p Prefs) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding prefs for %s: %w", username, err)
	}
	if err := kv.Put(ctx, PrefsKey(username), data); err != nil {
		return fmt.Errorf("saving prefs for %s: %w", username, err)
	}
	return nil
}
