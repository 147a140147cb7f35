package cmd

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cpufeat/internal/stats"
)

// writeELF64 writes a minimal ELF64 executable whose .text section holds
// code, and returns its path.
func writeELF64(t *testing.T, code []byte) string {
	t.Helper()

	shstrtab := []byte("\x00.text\x00.shstrtab\x00")
	textOff := uint64(64)
	strtabOff := textOff + uint64(len(code))
	shOff := (strtabOff + uint64(len(shstrtab)) + 7) &^ 7

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	for _, v := range []interface{}{
		uint16(2), uint16(0x3e), uint32(1), // type, machine, version
		uint64(0x401000), uint64(0), shOff, uint32(0), // entry, phoff, shoff, flags
		uint16(64), uint16(56), uint16(0), // ehsize, phentsize, phnum
		uint16(64), uint16(3), uint16(2), // shentsize, shnum, shstrndx
	} {
		binary.Write(&buf, le, v)
	}
	buf.Write(code)
	buf.Write(shstrtab)
	for uint64(buf.Len()) < shOff {
		buf.WriteByte(0)
	}

	type shdr struct {
		Name, Type             uint32
		Flags, Addr, Off, Size uint64
		Link, Info             uint32
		Align, EntSize         uint64
	}
	for _, h := range []shdr{
		{},
		{Name: 1, Type: 1, Flags: 0x6, Addr: 0x401000, Off: textOff, Size: uint64(len(code)), Align: 16},
		{Name: 7, Type: 3, Off: strtabOff, Size: uint64(len(shstrtab)), Align: 1},
	} {
		binary.Write(&buf, le, h)
	}

	path := filepath.Join(t.TempDir(), "fixture.out")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyze(t *testing.T) {
	code := []byte{
		0x90, // NOP                        -> INTEL8086 (baseline)
		0x0F, 0xA2, // CPUID                -> CPUID (baseline)
		0xF2, 0x0F, 0x58, 0xC1, // ADDSD    -> SSE2
		0x66, 0x0F, 0x38, 0xDC, 0xC1, // AESENC -> AES
		0xC3, // RET                        -> INTEL8086 (baseline)
	}
	path := writeELF64(t, code)

	tests := []struct {
		name     string
		opts     options
		want     []string
		wantMiss []string
	}{
		{
			name:     "baseline excluded by default",
			opts:     options{},
			want:     []string{"AES", "SSE2"},
			wantMiss: []string{"INTEL8086", "CPUID"},
		},
		{
			name: "all includes baseline",
			opts: options{all: true},
			want: []string{"AES", "CPUID", "INTEL8086", "SSE2"},
		},
		{
			name:     "inclusion list",
			opts:     options{include: []string{"SSE2"}},
			want:     []string{"SSE2"},
			wantMiss: []string{"AES"},
		},
		{
			name:     "exclusion list",
			opts:     options{exclude: []string{"SSE2"}},
			want:     []string{"AES"},
			wantMiss: []string{"SSE2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := analyze(path, tt.opts, &buf); err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			for i, w := range tt.want {
				if i >= len(lines) || lines[i] != w {
					t.Fatalf("output lines = %v, want %v", lines, tt.want)
				}
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("output lines = %v, want %v", lines, tt.want)
			}
			for _, m := range tt.wantMiss {
				if strings.Contains(buf.String(), m+"\n") {
					t.Errorf("output contains %q, want it filtered", m)
				}
			}
		})
	}
}

func TestAnalyzeDetailColumns(t *testing.T) {
	// Two ADDSD occurrences out of three instructions total.
	code := []byte{
		0xF2, 0x0F, 0x58, 0xC1,
		0xF2, 0x0F, 0x58, 0xC1,
		0xC3,
	}
	path := writeELF64(t, code)

	var buf bytes.Buffer
	opts := options{cols: stats.Columns{Percent: true, Count: true, Instr: true}}
	if err := analyze(path, opts, &buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "SSE2\n") {
		t.Fatalf("output = %q, want SSE2 header first", out)
	}
	if !strings.Contains(out, "\t66.67% | 2 | ") {
		t.Errorf("output = %q, want detail line with 66.67%% and count 2", out)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.bin")
	err := analyze(missing, options{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("analyze succeeded on a missing file")
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestSplitCommaList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"SSE2", []string{"SSE2"}},
		{"SSE2,AVX", []string{"SSE2", "AVX"}},
		{" SSE2 , AVX ", []string{"SSE2", "AVX"}},
		{"SSE2,,AVX,", []string{"SSE2", "AVX"}},
		{"AES and AVX", []string{"AES and AVX"}},
	}
	for _, tt := range tests {
		got := splitCommaList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitCommaList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitCommaList(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}
