package stats

import (
	"fmt"
	"io"

	"themis/internal/abort"
)

// LogDatum is a single fire-and-forget named value (a "DATM" line):
// a one-off string or uint64 worth recording once, as opposed to a
// Collection's accumulating time series. Logger.LogDatumUint64 and
// Logger.LogDatumString queue them on the writer.
type LogDatum struct {
	Name  string
	Kind  FieldKind
	Value any
}

func datumDescriptor() *LogLineDescriptor {
	desc := NewLogLineDescriptor("DATM")
	desc.AddField("stat_name", KindString)
	desc.AddField("value", KindString)
	desc.Finalize()
	return desc
}

func (d LogDatum) line(desc *LogLineDescriptor, phase string, epoch uint64) string {
	var rendered string
	switch d.Kind {
	case KindUint64, KindDuration:
		rendered = fmt.Sprintf("%d", d.Value)
	case KindString:
		rendered = fmt.Sprintf("%s", d.Value)
	default:
		abort.Fatalf(nil, "stats: log datum %q has unknown kind", d.Name)
	}
	return desc.Line([]any{desc.TypeName(), phase, epoch, d.Name, rendered})
}

func writeDatum(w io.Writer, d LogDatum, desc *LogLineDescriptor, phase string, epoch uint64) error {
	_, err := fmt.Fprintln(w, d.line(desc, phase, epoch))
	return err
}
