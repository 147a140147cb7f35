package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Columns selects the detail columns to emit, in their fixed output order:
// percent, count, opcode syntax, instruction text. Detail lines are only
// emitted at all when Opcode or Instr is set.
type Columns struct {
	Percent bool
	Count   bool
	Opcode  bool
	Instr   bool
}

// Detail reports whether any per-instruction column was requested.
func (c Columns) Detail() bool { return c.Instr || c.Opcode }

// Report renders filtered groups. Total is the full ingested instruction
// count and is the percentage denominator.
type Report struct {
	Groups []Group
	Total  uint64
}

// Render writes one header line per group, followed by tab-indented detail
// lines when requested. Stats within a group are ordered by (instruction
// text, opcode syntax, opcode ID) so output is deterministic even when two
// identities render identical text. style, if non-nil, decorates header
// lines; it must not change their content.
func (r Report) Render(w io.Writer, cols Columns, style func(string) string) error {
	for _, g := range r.Groups {
		header := g.Display
		if style != nil {
			header = style(header)
		}
		if _, err := fmt.Fprintln(w, header); err != nil {
			return err
		}
		if !cols.Detail() {
			continue
		}

		stats := make([]OpcodeStat, len(g.Stats))
		copy(stats, g.Stats)
		sort.Slice(stats, func(i, j int) bool {
			a, b := stats[i].Opcode, stats[j].Opcode
			if a.Instr != b.Instr {
				return a.Instr < b.Instr
			}
			if a.Syntax != b.Syntax {
				return a.Syntax < b.Syntax
			}
			return a.ID < b.ID
		})

		for _, s := range stats {
			var fields []string
			if cols.Percent {
				pct := float64(s.Count) / float64(r.Total) * 100
				fields = append(fields, fmt.Sprintf("%.2f%%", pct))
			}
			if cols.Count {
				fields = append(fields, fmt.Sprintf("%d", s.Count))
			}
			if cols.Opcode {
				fields = append(fields, s.Opcode.Syntax)
			}
			if cols.Instr {
				fields = append(fields, s.Opcode.Instr)
			}
			if _, err := fmt.Fprintf(w, "\t%s\n", strings.Join(fields, " | ")); err != nil {
				return err
			}
		}
	}
	return nil
}
