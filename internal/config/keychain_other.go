//go:build !darwin

package config

import "fmt"

// Without a system keychain, secrets live in a 0600 JSON file keyed by
// service then account.

func secretsFilePath() string {
	return xdgPath("XDG_DATA_HOME", ".local/share", "mavkus", "secrets.json")
}

func secretPath(service, account string) string {
	return service + "." + account
}

func keychainExec(service, account string) ([]byte, error) {
	f, err := openJSONFile(secretsFilePath())
	if err != nil {
		return nil, err
	}
	v, ok, _ := f.GetString(secretPath(service, account))
	if !ok {
		return nil, fmt.Errorf("no secret for account %q in service %q", account, service)
	}
	return []byte(v), nil
}

func keychainSet(service, account, value string) error {
	// An unreadable secrets file is rewritten from scratch.
	f, _ := openJSONFile(secretsFilePath())
	return f.SetString(secretPath(service, account), value)
}
