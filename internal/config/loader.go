package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/koustreak/schemacache/internal/errs"
)

// EnvPrefix marks the environment variables Load reads. A double
// underscore separates nesting levels: SCHEMACACHE_CACHE__BACKEND sets
// cache.backend.
const EnvPrefix = "SCHEMACACHE_"

// DefaultFiles are tried in the working directory when no path is given.
var DefaultFiles = []string{"schemacache.yaml", "schemacache.yml"}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"addr":          "server.addr",
	"cache-backend": "cache.backend",
	"cache-path":    "cache.path",
	"workers":       "jobs.workers",
	"policy":        "introspection.policy",
}

// listKeys hold comma-separated values when set from the environment.
var listKeys = map[string]bool{
	"schema.include_prefixes":    true,
	"schema.exclude_prefixes":    true,
	"introspection.live_drivers": true,
}

// Load reads configuration with precedence flags > env > file > defaults.
// path may be empty, in which case DefaultFiles are searched. Only flags
// the user actually set override other sources; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "load config defaults", err)
	}

	used := findConfigFile(path)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, errs.Wrapf(errs.ErrKindInvalidInput, err, "read config file %s", used)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "load config from environment", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "load config from flags", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode config", err)
	}
	cfg.File = used
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns path if set, else the first DefaultFiles entry
// present in the working directory, else "".
func findConfigFile(path string) string {
	if path != "" {
		return path
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey turns SCHEMACACHE_JOBS__BUILD_TIMEOUT into jobs.build_timeout.
// A blank list variable is skipped, so it never becomes an empty list.
func envKey(name, value string) (string, interface{}) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if listKeys[key] {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
