package utils

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var loadOnce sync.Once

// LoadEnv loads environment variables from a .env file in project root if present.
// Existing environment variables are not overwritten.
func LoadEnv() {
	loadOnce.Do(func() {
		path := FindEnvFile()
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("cannot load .env")
		}
	})
}

// FindEnvFile returns the closest .env walking up from the working
// directory, at most 3 levels, or "" when there is none.
func FindEnvFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findEnvFileFrom(cwd)
}

func findEnvFileFrom(dir string) string {
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, ".env")
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
