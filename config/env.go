package config

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseEnvFile reads KEY=VALUE lines. Blank lines and lines starting with
// '#' are skipped, an optional "export " prefix is dropped, and values may
// be single or double quoted. ${NAME} and ${NAME:-default} are expanded
// against earlier lines of the same file and then the process environment.
// A missing file yields an empty map.
func ParseEnvFile(filename string) (map[string]string, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", filename)
	}
	return ParseEnvBuffer(buf)
}

func ParseEnvBuffer(buf []byte) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	var lineno int
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Wrapf(ErrInvalidConfig, "env line %d: expected KEY=VALUE", lineno)
		}
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") && len(val) >= 2 {
			// single quotes are literal
			out[key] = val[1 : len(val)-1]
			continue
		}
		out[key] = interpolate(dequote(val), out)
	}
	return out, scanner.Err()
}

func dequote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// interpolate expands ${NAME} and ${NAME:-default}. Unknown names without a
// default are kept verbatim.
func interpolate(s string, vars map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start
		b.WriteString(s[:start])

		name, def, hasDefault := strings.Cut(s[start+2:end], ":-")
		val, found := vars[name]
		if !found {
			val, found = os.LookupEnv(name)
		}
		switch {
		case found && val != "":
			b.WriteString(val)
		case hasDefault:
			b.WriteString(def)
		default:
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

// LoadWithEnvFile is Load with envFile consulted for CACHE_* overrides.
// Real environment variables win over the file.
func LoadWithEnvFile(path, envFile string) (Config, error) {
	vars, err := ParseEnvFile(envFile)
	if err != nil {
		return Default(), err
	}
	return load(path, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	})
}
