package output

import (
	"strings"
	"testing"
)

func Test_CSVRecorderWritesRows(t *testing.T) {
	var sb strings.Builder
	rec := NewCSVRecorderTo(&sb)

	block := testBlock()
	if err := rec.writeBlock(block); err != nil {
		t.Fatalf("writeBlock() error = %v", err)
	}
	rec.w.Flush()

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows:\n%s", len(lines), sb.String())
	}
	if lines[0] != "timestamp,ECG_1 (mV),EDA_2 (uS)" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",0.5,1.25") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",-0.5,2.5") {
		t.Errorf("row 2 = %q", lines[2])
	}

	// The header is written once per file, not once per block.
	if err := rec.writeBlock(block); err != nil {
		t.Fatalf("writeBlock() error = %v", err)
	}
	rec.w.Flush()
	if got := strings.Count(sb.String(), "timestamp,"); got != 1 {
		t.Errorf("header written %d times, want 1", got)
	}
}
