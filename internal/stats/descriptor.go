package stats

import (
	"encoding/json"
	"strings"

	"themis/internal/abort"
)

// LogLineDescriptor describes one stat log-line's shape: an ordered list
// of named, typed fields. Every descriptor begins with the three
// mandatory fields every log line in the system carries (type_name,
// phase_name, epoch); container-specific fields are appended before
// Finalize freezes the list.
//
// Finalize is a pure function of the field list: two descriptors built
// by adding the same fields in the same order and finalized separately
// produce byte-identical FormatString and JSON output.
type LogLineDescriptor struct {
	typeName  string
	fields    []Field
	finalized bool
}

// NewLogLineDescriptor starts a descriptor for log lines tagged
// typeName (e.g. "COLL", "TIMR", "HIST", "SUMM", "DATM").
func NewLogLineDescriptor(typeName string) *LogLineDescriptor {
	return &LogLineDescriptor{
		typeName: typeName,
		fields: []Field{
			{Name: "type_name", Kind: KindString},
			{Name: "phase_name", Kind: KindString},
			{Name: "epoch", Kind: KindUint64},
		},
	}
}

// AddField appends a field to the descriptor. Fatal once finalized.
func (d *LogLineDescriptor) AddField(name string, kind FieldKind) {
	if d.finalized {
		abort.Fatalf(nil, "stats: AddField(%q) on a finalized descriptor", name)
	}
	d.fields = append(d.fields, Field{Name: name, Kind: kind})
}

// Finalize freezes the field list. After this call only FormatString and
// JSON may be used; AddField is fatal.
func (d *LogLineDescriptor) Finalize() {
	if d.finalized {
		abort.Fatalf(nil, "stats: descriptor %q finalized twice", d.typeName)
	}
	d.finalized = true
}

// TypeName returns the log-line type tag this descriptor was built for.
func (d *LogLineDescriptor) TypeName() string { return d.typeName }

// Fields returns the finalized field list. Fatal before Finalize.
func (d *LogLineDescriptor) Fields() []Field {
	if !d.finalized {
		abort.Fatalf(nil, "stats: Fields() read before Finalize on %q", d.typeName)
	}
	return d.fields
}

// FormatString renders a tab-separated column header naming every
// field in order. Fatal before Finalize.
func (d *LogLineDescriptor) FormatString() string {
	if !d.finalized {
		abort.Fatalf(nil, "stats: FormatString() read before Finalize on %q", d.typeName)
	}
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return strings.Join(names, "\t")
}

type jsonField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonDescriptor struct {
	Type   string      `json:"type"`
	Fields []jsonField `json:"fields"`
}

// JSON renders the descriptor schema for out-of-band discovery by log
// readers. Fatal before Finalize.
func (d *LogLineDescriptor) JSON() ([]byte, error) {
	if !d.finalized {
		abort.Fatalf(nil, "stats: JSON() read before Finalize on %q", d.typeName)
	}
	jd := jsonDescriptor{Type: d.typeName}
	for _, f := range d.fields {
		jd.Fields = append(jd.Fields, jsonField{Name: f.Name, Type: f.Kind.String()})
	}
	return json.Marshal(jd)
}

// Line renders one data row for this descriptor. values must align
// positionally with Fields(). Fatal before Finalize or on arity
// mismatch.
func (d *LogLineDescriptor) Line(values []any) string {
	fields := d.Fields()
	if len(values) != len(fields) {
		abort.Fatalf(nil, "stats: Line() got %d values, descriptor %q has %d fields", len(values), d.typeName, len(fields))
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = formatValue(FieldValue{Field: f, Value: values[i]})
	}
	return strings.Join(parts, "\t")
}
