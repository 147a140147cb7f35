// Package disasm turns raw code-section bytes into a stream of instruction
// records, each carrying an interned opcode identity and the CPUID feature
// set the instruction requires.
package disasm

import (
	"golang.org/x/arch/x86/x86asm"

	"cpufeat/internal/cpuid"
)

// Record is one decoded instruction occurrence.
type Record struct {
	Opcode   Opcode
	Features cpuid.FeatureSet
}

// Options controls decoding.
type Options struct {
	// MPX decodes MPX (BND*) instructions. When false their byte patterns
	// are reported as the reserved multi-byte NOPs they execute as.
	MPX bool
}

// Decoder walks one code region and yields records until the bytes are
// exhausted. Undecodable byte sequences advance the cursor by one byte;
// they never abort the stream.
type Decoder struct {
	code    []byte
	pos     int
	bitness int
	ip      uint64
	opts    Options
	intern  *Interner
}

// NewDecoder returns a decoder over code at virtual address ip. Opcode
// identities are interned through in, which may be shared across sections
// so identities stay stable for the whole binary.
func NewDecoder(code []byte, bitness int, ip uint64, opts Options, in *Interner) *Decoder {
	return &Decoder{code: code, bitness: bitness, ip: ip, opts: opts, intern: in}
}

// Next returns the next record, or ok=false when the region is exhausted.
func (d *Decoder) Next() (Record, bool) {
	for d.pos < len(d.code) {
		if instr, syntax, n, ok := matchBND(d.code[d.pos:], d.bitness); ok {
			d.pos += n
			d.ip += uint64(n)
			if !d.opts.MPX {
				return Record{
					Opcode:   d.intern.InternRaw("NOP r/m", syntax),
					Features: cpuid.FeatureSet{cpuid.MULTIBYTENOP},
				}, true
			}
			return Record{
				Opcode:   d.intern.InternRaw(instr, syntax),
				Features: cpuid.FeatureSet{cpuid.MPX},
			}, true
		}

		inst, err := x86asm.Decode(d.code[d.pos:], d.bitness)
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			d.pos++
			d.ip++
			continue
		}
		d.pos += inst.Len
		d.ip += uint64(inst.Len)

		return Record{Opcode: d.intern.Intern(inst), Features: cpuid.Classify(inst)}, true
	}
	return Record{}, false
}
