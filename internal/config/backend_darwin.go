//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.mavkus.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mavkus-data"
	}
	return filepath.Join(home, "Library", "Application Support", "mavkus")
}

func secretHint(account string) string {
	return fmt.Sprintf(" or macOS Keychain (service: %s, account: %s)", keychainService, account)
}

// defaultsBackend keeps settings in UserDefaults through the defaults(1) tool.
type defaultsBackend string

func newPlatformBackend() Backend {
	return defaultsBackend(defaultsDomain)
}

func (d defaultsBackend) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", append([]string{args[0], string(d)}, args[1:]...)...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (d defaultsBackend) GetString(key string) (string, bool, error) {
	s, err := d.run("read", key)
	if err != nil {
		// defaults exits 1 when the key is absent.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults read %s: %w: %s", key, err, s)
	}
	return s, true, nil
}

func (d defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := d.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (d defaultsBackend) SetString(key, val string) error {
	_, err := d.run("write", key, "-string", val)
	return err
}

func (d defaultsBackend) SetInt(key string, val int) error {
	_, err := d.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (d defaultsBackend) Delete(key string) error {
	_, err := d.run("delete", key)
	return err
}
