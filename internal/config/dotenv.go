package config

import (
	"errors"
	"os"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from .env-style files into the process
// environment. Variables already present in the environment win, and missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		for _, line := range strings.Split(string(data), "\n") {
			applyEnvLine(line)
		}
	}
	return nil
}

func applyEnvLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return
	}
	if _, set := os.LookupEnv(key); set {
		return
	}
	_ = os.Setenv(key, unquoteEnvValue(value))
}

func unquoteEnvValue(raw string) string {
	value := strings.TrimSpace(raw)
	if len(value) >= 2 {
		switch {
		case value[0] == '"' && value[len(value)-1] == '"':
			inner := value[1 : len(value)-1]
			return strings.NewReplacer(
				`\\`, `\`,
				`\n`, "\n",
				`\r`, "\r",
				`\t`, "\t",
				`\"`, `"`,
			).Replace(inner)
		case value[0] == '\'' && value[len(value)-1] == '\'':
			return value[1 : len(value)-1]
		}
	}
	// Unquoted values may carry a trailing inline comment.
	if index := strings.Index(value, " #"); index >= 0 {
		value = strings.TrimSpace(value[:index])
	}
	return value
}
