package paramreg

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ErrMalformedArgs is returned by ParseCommandLine when args cannot be
// interpreted as either a single config file path or a sequence of
// "-key value" pairs. Callers map this to the CLI's exit code 3.
type ErrMalformedArgs struct{ Reason string }

func (e *ErrMalformedArgs) Error() string { return "malformed argument list: " + e.Reason }

// ParseCommandLine implements the two accepted invocation forms:
//
//	prog config.yaml
//	prog -KEY1 value1 -KEY2 value2 ...
//
// In the flag form, a DEFAULT_CONFIG key (then a CONFIG key) found among
// the parsed flags triggers loading that YAML file into the registry
// before the flags are re-applied, so the command line always wins over
// both config files.
func ParseCommandLine(logger *slog.Logger, args []string) (*Registry, error) {
	r := New(logger)

	if len(args) == 1 && !strings.HasPrefix(args[0], "-") {
		if err := r.LoadFile(args[0]); err != nil {
			return nil, err
		}
		return r, nil
	}

	flags, err := parseFlagPairs(args)
	if err != nil {
		return nil, err
	}
	if err := r.mergeFlags(flags); err != nil {
		return nil, err
	}

	for _, layeringKey := range []string{"DEFAULT_CONFIG", "CONFIG"} {
		if r.Contains(layeringKey) {
			if err := r.LoadFile(r.GetString(layeringKey)); err != nil {
				return nil, err
			}
		}
	}

	// The command line always wins: re-merge the original flags last.
	if err := r.mergeFlags(flags); err != nil {
		return nil, err
	}

	return r, nil
}

// parseFlagPairs splits args into "-key value" pairs. A value token is
// allowed to start with "-" only when it parses as a number, so that
// negative numeric values don't get mistaken for the next flag.
func parseFlagPairs(args []string) (map[string]string, error) {
	if len(args)%2 != 0 {
		return nil, &ErrMalformedArgs{Reason: fmt.Sprintf("expected an even number of -key value tokens, got %d", len(args))}
	}

	flags := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := args[i]
		val := args[i+1]

		if !strings.HasPrefix(key, "-") {
			return nil, &ErrMalformedArgs{Reason: fmt.Sprintf("expected a -KEY token at position %d, got %q", i, key)}
		}
		key = strings.TrimLeft(key, "-")

		if strings.HasPrefix(val, "-") {
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				return nil, &ErrMalformedArgs{Reason: fmt.Sprintf("value %q for key %q starts with '-' but is not a number", val, key)}
			}
		}

		flags[key] = val
	}
	return flags, nil
}
