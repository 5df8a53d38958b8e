package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Table renders column-aligned command output: route plans, snapshot and
// profile listings, audit queries. Headers and a dash divider are written
// lazily on the first Row, so a table with no rows prints nothing: an
// empty plan or an empty audit log produces no stray header block.
type Table struct {
	w       *tabwriter.Writer
	headers []string
	prefix  string
	started bool
}

// NewTable creates a stdout table with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo creates a table writing to w.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix prepends prefix to every line, headers and divider included.
// Plan tables use it to indent under the profile heading.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row writes one tab-separated row, emitting headers and divider first if
// this is the first row.
func (t *Table) Row(values ...string) {
	t.ensureHeaders()
	fmt.Fprintln(t.w, t.prefix+strings.Join(values, "\t"))
}

// Flush writes the buffered output. A table that never saw a Row stays
// silent.
func (t *Table) Flush() {
	if !t.started {
		return
	}
	t.w.Flush()
}

func (t *Table) ensureHeaders() {
	if t.started {
		return
	}
	t.started = true
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}
