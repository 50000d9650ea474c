package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const envPrefix = "MEMCACHESIM_"

var loadEnvOnce sync.Once

// loadEnv reads the .env file of the working directory, if any. Variables
// already set in the environment win.
func loadEnv() {
	loadEnvOnce.Do(func() {
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "cannot load .env: %s\n", err)
		}
	})
}

func envKey(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func envInt(flag string, def int) int {
	loadEnv()

	s, ok := os.LookupEnv(envKey(flag))
	if !ok {
		return def
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %s\n", envKey(flag), s, err)
		return def
	}

	return v
}

func envBool(flag string, def bool) bool {
	loadEnv()

	s, ok := os.LookupEnv(envKey(flag))
	if !ok {
		return def
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %s\n", envKey(flag), s, err)
		return def
	}

	return v
}

func envString(flag string, def string) string {
	loadEnv()

	if s, ok := os.LookupEnv(envKey(flag)); ok {
		return s
	}

	return def
}
