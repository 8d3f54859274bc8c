package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// legacyPath is where the previous release kept its settings:
// user_data/settings.json beside the executable.
func legacyPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "user_data", settingsFileName)
}

// migrateLegacy imports legacy settings into path when path does not exist
// yet. The legacy file uses the same keys; the merge-write in SaveTo strips
// any stored "enabled" value. Environment overrides are not written.
func migrateLegacy(path, legacy string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat settings: %w", err)
	}

	if _, err := os.Stat(legacy); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat legacy settings: %w", err)
	}

	s, err := loadFile(legacy)
	if err != nil {
		return fmt.Errorf("load legacy settings: %w", err)
	}
	if err := SaveTo(path, s); err != nil {
		return fmt.Errorf("write migrated settings: %w", err)
	}
	return nil
}
