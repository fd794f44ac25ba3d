package config

// Backend is the platform store for non-secret settings: UserDefaults on
// macOS, a JSON file elsewhere. Keys are the dotted names of the key table.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
