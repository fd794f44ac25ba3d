//go:build darwin

package config

import (
	"os/exec"
	"strings"
)

func security(args ...string) ([]byte, error) {
	return exec.Command("security", args...).Output()
}

func keychainExec(service, account string) ([]byte, error) {
	out, err := security("find-generic-password", "-s", service, "-a", account, "-w")
	return []byte(strings.TrimSpace(string(out))), err
}

func keychainSet(service, account, value string) error {
	_, err := security("add-generic-password", "-U", "-s", service, "-a", account, "-w", value)
	return err
}
