package paramreg

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"themis/internal/abort"
	"themis/internal/logging"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	koanfconfmap "github.com/knadh/koanf/providers/confmap"
	koanffile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Registry holds the flattened parameter set for a process. It is built
// once at startup (Add/LoadFile/ParseCommandLine) and then read by every
// other component; nothing in this package synchronizes concurrent
// mutation, matching the "confined to init, immutable after" contract.
type Registry struct {
	logger *slog.Logger
	values map[string]Value
}

// New creates an empty registry. A nil logger is replaced with a discard
// logger, matching the rest of the module's logging convention.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logging.Default(logger).With("component", "paramreg"),
		values: make(map[string]Value),
	}
}

// Add inserts or atomically replaces the value stored under key.
func (r *Registry) Add(key string, v Value) {
	r.values[key] = v
}

// Contains reports whether key currently has a value.
func (r *Registry) Contains(key string) bool {
	_, ok := r.values[key]
	return ok
}

func (r *Registry) require(key string) Value {
	v, ok := r.values[key]
	if !ok {
		abort.Fatalf(r.logger, "paramreg: key %q was never set", key)
	}
	return v
}

// GetString returns the raw textual form of key. Fatal if key is unset.
func (r *Registry) GetString(key string) string {
	return r.require(key).Raw
}

// GetBool coerces key to a bool. Fatal if key is unset or not parseable.
func (r *Registry) GetBool(key string) bool {
	v := r.require(key)
	b, err := strconv.ParseBool(v.Raw)
	if err != nil {
		abort.Fatalf(r.logger, "paramreg: key %q value %q is not a bool: %v", key, v.Raw, err)
	}
	return b
}

// GetInt32 coerces key to an int32, accepting hex literals (0x...).
// Fatal if key is unset or not parseable.
func (r *Registry) GetInt32(key string) int32 {
	v := r.require(key)
	n, err := strconv.ParseInt(v.Raw, 0, 32)
	if err != nil {
		abort.Fatalf(r.logger, "paramreg: key %q value %q is not an int32: %v", key, v.Raw, err)
	}
	return int32(n)
}

// GetUint32 coerces key to a uint32, accepting hex literals.
func (r *Registry) GetUint32(key string) uint32 {
	v := r.require(key)
	n, err := strconv.ParseUint(v.Raw, 0, 32)
	if err != nil {
		abort.Fatalf(r.logger, "paramreg: key %q value %q is not a uint32: %v", key, v.Raw, err)
	}
	return uint32(n)
}

// GetInt64 coerces key to an int64, accepting hex literals.
func (r *Registry) GetInt64(key string) int64 {
	v := r.require(key)
	n, err := strconv.ParseInt(v.Raw, 0, 64)
	if err != nil {
		abort.Fatalf(r.logger, "paramreg: key %q value %q is not an int64: %v", key, v.Raw, err)
	}
	return n
}

// GetUint64 coerces key to a uint64, accepting hex literals.
func (r *Registry) GetUint64(key string) uint64 {
	v := r.require(key)
	n, err := strconv.ParseUint(v.Raw, 0, 64)
	if err != nil {
		abort.Fatalf(r.logger, "paramreg: key %q value %q is not a uint64: %v", key, v.Raw, err)
	}
	return n
}

// GetFloat64 coerces key to a float64.
func (r *Registry) GetFloat64(key string) float64 {
	v := r.require(key)
	f, err := strconv.ParseFloat(v.Raw, 64)
	if err != nil {
		abort.Fatalf(r.logger, "paramreg: key %q value %q is not a float64: %v", key, v.Raw, err)
	}
	return f
}

// Dump writes every entry to path as a flat YAML mapping: numeric and
// boolean values unquoted, strings double-quoted.
func (r *Registry) Dump(path string) error {
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := r.values[k]
		if v.Kind == KindString {
			fmt.Fprintf(&b, "%s: %q\n", k, v.Raw)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", k, v.Raw)
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// LoadFile merges the YAML document at path into the registry via
// koanf's own file provider and YAML parser, then flattens koanf's
// dot-delimited key space into Values. Sequence and null nodes are
// rejected as configuration errors.
func (r *Registry) LoadFile(path string) error {
	k := koanf.New(".")
	if err := k.Load(koanffile.Provider(path), koanfyaml.Parser()); err != nil {
		return fmt.Errorf("paramreg: load %s: %w", path, err)
	}
	return r.mergeKoanf(k)
}

// mergeFlags loads flags (already flat "-KEY value" pairs) into the
// registry through koanf's confmap provider, so both the file and
// command-line paths flatten through the same koanf merge machinery.
func (r *Registry) mergeFlags(flags map[string]string) error {
	raw := make(map[string]any, len(flags))
	for k, v := range flags {
		raw[k] = v
	}
	k := koanf.New(".")
	if err := k.Load(koanfconfmap.Provider(raw, "."), nil); err != nil {
		return fmt.Errorf("paramreg: merge flags: %w", err)
	}
	return r.mergeKoanf(k)
}

func (r *Registry) mergeKoanf(k *koanf.Koanf) error {
	for _, key := range k.Keys() {
		val, err := valueFromNode(k.Get(key))
		if err != nil {
			return fmt.Errorf("paramreg: key %q: %w", key, err)
		}
		r.Add(key, val)
	}
	return nil
}

func valueFromNode(v any) (Value, error) {
	switch t := v.(type) {
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case int:
		return Int64Value(int64(t)), nil
	case int64:
		return Int64Value(t), nil
	case uint64:
		return Uint64Value(t), nil
	case float64:
		return Float64Value(t), nil
	case nil:
		return Value{}, fmt.Errorf("null value, which is not allowed")
	case []any:
		return Value{}, fmt.Errorf("sequence value, which is not allowed")
	default:
		return Value{}, fmt.Errorf("unsupported scalar type %T", v)
	}
}
