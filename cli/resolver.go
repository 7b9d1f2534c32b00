package cli

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/ghostwriter/log"
)

// resolve returns a [kong.ConfigurationLoader] that reads the user defaults
// file written in YAML.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve(ctx), "/path/to/config.yml")
//
// The document is converted as follows:
//   - Keys name flags without the leading dashes, using either hyphens
//     ("log-level") or underscores ("log_level")
//   - Nested mappings are flattened by joining keys with hyphens, so
//     "log: {level: debug}" sets --log-level
//   - Numbers are passed to Kong as strings
//
// Example user defaults file:
//
//	log:
//	  level: debug
//	  format: json
//	  pretty: false
//
// Command-line flags override values in the file. A document that cannot be
// decoded is logged and ignored.
func resolve(ctx context.Context) func(r io.Reader) (kong.Resolver, error) {
	return func(r io.Reader) (kong.Resolver, error) {
		var doc map[string]any

		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			if err != io.EOF {
				log.WarnContext(ctx, "ignoring user defaults",
					slog.String("error", yaml.FormatError(err, false, false)),
				)
			}

			return userDefaults{}, nil
		}

		cfg := make(userDefaults)
		flatten(cfg, "", doc)

		return cfg, nil
	}
}

// userDefaults implements [kong.Resolver] for YAML user defaults.
type userDefaults map[string]any

// Validate implements [kong.Resolver].
func (r userDefaults) Validate(*kong.Application) error {
	return nil
}

// Resolve implements [kong.Resolver].
func (r userDefaults) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	if value, ok := r[flag.Name]; ok {
		return value, nil
	}

	if value, ok := r[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return value, nil
	}

	return nil, nil
}

func flatten(dst userDefaults, prefix string, m map[string]any) {
	for key, value := range m {
		if prefix != "" {
			key = prefix + "-" + key
		}

		if sub, ok := value.(map[string]any); ok {
			flatten(dst, key, sub)

			continue
		}

		dst[key] = native(value)
	}
}

// native converts a decoded YAML value to the form Kong parses. Kong requires
// numbers as strings.
func native(v any) any {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = native(e)
		}

		return out
	default:
		return v
	}
}
