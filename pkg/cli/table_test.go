package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableEmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "ACTION", "DESTINATION")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table produced output: %q", buf.String())
	}
}

func TestTableHeadersOnFirstRow(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "ACTION", "DESTINATION")
	tbl.Row("add", "10.0.0.0/24")
	tbl.Row("delete", "172.16.0.0/16")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, divider, and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ACTION") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "------") {
		t.Errorf("divider = %q", lines[1])
	}
}

func TestTablePrefixIndentsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "NAME").WithPrefix("  ")
	tbl.Row("office")
	tbl.Flush()

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if !strings.HasPrefix(line, "  ") {
			t.Errorf("line not indented: %q", line)
		}
	}
}
