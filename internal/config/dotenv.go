package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv exports the variables of path into the process environment.
// Variables already set are left untouched and a missing file is ignored.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load %s: %v\n", path, err)
	}
}
