// Package paramreg implements the typed key/value parameter registry that
// every other component in the substrate reads its tuning knobs from. A
// Registry is loaded once at process startup from a YAML document and/or
// the command line, then treated as immutable: nothing below main() holds
// a lock around it.
package paramreg

import "strconv"

// Kind tags the scalar type a Value was produced from. It only affects
// how Dump renders the value; coercion at Get* always re-parses the raw
// string form, so a Value's Kind is advisory, not load-bearing for reads.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindFloat64
)

// Value is a tagged string: the canonical textual form of a scalar plus
// the Kind it was produced with. Command-line flags always produce
// KindString values (raw argv text); YAML scalars keep the type the
// parser gave them.
type Value struct {
	Kind Kind
	Raw  string
}

func StringValue(s string) Value { return Value{Kind: KindString, Raw: s} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Raw: strconv.FormatBool(b)} }
func Int64Value(i int64) Value   { return Value{Kind: KindInt64, Raw: strconv.FormatInt(i, 10)} }
func Uint64Value(u uint64) Value { return Value{Kind: KindUint64, Raw: strconv.FormatUint(u, 10)} }
func Float64Value(f float64) Value {
	return Value{Kind: KindFloat64, Raw: strconv.FormatFloat(f, 'g', -1, 64)}
}
