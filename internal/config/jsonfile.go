package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// jsonFile is a JSON document on disk addressed by dotted paths, so the key
// "server.port" lives at {"server": {"port": ...}}.
type jsonFile struct {
	path string
	data []byte
}

// openJSONFile reads path. A missing file yields an empty document; an
// unreadable or invalid one is reported and then treated as empty.
func openJSONFile(path string) (*jsonFile, error) {
	f := &jsonFile{path: path, data: []byte("{}")}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return f, fmt.Errorf("reading %s: %w", path, err)
	case !gjson.ValidBytes(data):
		return f, fmt.Errorf("parsing %s: invalid JSON", path)
	}
	f.data = data
	return f, nil
}

func (f *jsonFile) lookup(key string) (gjson.Result, bool) {
	r := gjson.GetBytes(f.data, key)
	return r, r.Exists()
}

func (f *jsonFile) GetString(key string) (string, bool, error) {
	r, ok := f.lookup(key)
	if !ok {
		return "", false, nil
	}
	return r.String(), true, nil
}

func (f *jsonFile) GetInt(key string) (int, bool, error) {
	r, ok := f.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch r.Type {
	case gjson.Number:
		v := r.Float()
		if v < math.MinInt || v > math.MaxInt || v != math.Trunc(v) {
			return 0, true, fmt.Errorf("value %v for %s is not a valid integer or is out of range", v, key)
		}
		return int(v), true, nil
	case gjson.String:
		i, err := strconv.Atoi(r.Str)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type for %s", key)
	}
}

func (f *jsonFile) SetString(key, val string) error { return f.set(key, val) }

func (f *jsonFile) SetInt(key string, val int) error { return f.set(key, val) }

func (f *jsonFile) set(key string, val any) error {
	data, err := sjson.SetBytes(f.data, key, val)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	f.data = data
	return f.save()
}

func (f *jsonFile) Delete(key string) error {
	data, err := sjson.DeleteBytes(f.data, key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	f.data = data
	return f.save()
}

func (f *jsonFile) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(f.path), err)
	}
	return os.WriteFile(f.path, []byte(gjson.GetBytes(f.data, "@pretty").Raw), 0o600)
}

// xdgPath joins elem under the XDG directory named by env, falling back to
// home/def when the variable is unset.
func xdgPath(env, def string, elem ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, def)
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}
