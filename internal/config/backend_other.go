//go:build !darwin

package config

import (
	"fmt"
	"os"
)

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", ".local/share", "mavkus")
}

func configFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "mavkus", "config.json")
}

func secretHint(account string) string {
	return fmt.Sprintf(" or %s (service: %s, account: %s)", secretsFilePath(), keychainService, account)
}

// newPlatformBackend opens $XDG_CONFIG_HOME/mavkus/config.json. A broken
// file is reported and replaced by defaults on the next write.
func newPlatformBackend() Backend {
	f, err := openJSONFile(configFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using default values.\n", err)
	}
	return f
}
