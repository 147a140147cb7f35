package disasm

import "fmt"

// MPX (BND) instructions are absent from x86asm's decode tables, so their
// encodings are recognized here. On CPUs without MPX the same byte patterns
// execute as reserved multi-byte NOPs, which is how they are reported when
// the option is off.

// Keyed by mandatory prefix byte (0 for none) and opcode byte.
var bndForms = map[uint16]string{
	0x001A: "BNDLDX bnd, m",
	0x001B: "BNDSTX m, bnd",
	0x661A: "BNDMOV bnd, bnd/m",
	0x661B: "BNDMOV bnd/m, bnd",
	0xF31A: "BNDCL bnd, r/m",
	0xF31B: "BNDMK bnd, m",
	0xF21A: "BNDCU bnd, r/m",
	0xF21B: "BNDCN bnd, r/m",
}

// matchBND reports whether code starts with a BND encoding, returning its
// display strings and total encoded length.
func matchBND(code []byte, bitness int) (instr, syntax string, length int, ok bool) {
	i := 0
	var prefix byte
	if i < len(code) && (code[i] == 0x66 || code[i] == 0xF2 || code[i] == 0xF3) {
		prefix = code[i]
		i++
	}
	if bitness == 64 && i < len(code) && code[i]&0xF0 == 0x40 {
		i++ // REX
	}
	if i+2 > len(code) || code[i] != 0x0F || (code[i+1] != 0x1A && code[i+1] != 0x1B) {
		return "", "", 0, false
	}
	op := code[i+1]
	i += 2
	n, ok := modrmLen(code[i:])
	if !ok {
		return "", "", 0, false
	}

	instr = bndForms[uint16(prefix)<<8|uint16(op)]
	if prefix != 0 {
		syntax = fmt.Sprintf("%02X 0F %02X /r", prefix, op)
	} else {
		syntax = fmt.Sprintf("0F %02X /r", op)
	}
	return instr, syntax, i + n, true
}

// modrmLen returns the byte length of a ModRM operand encoding (ModRM +
// SIB + displacement) under 32/64-bit addressing.
func modrmLen(code []byte) (int, bool) {
	if len(code) == 0 {
		return 0, false
	}
	m := code[0]
	mod, rm := m>>6, m&7
	n := 1
	if mod != 3 {
		switch {
		case rm == 4:
			if len(code) < 2 {
				return 0, false
			}
			n++ // SIB
			if mod == 0 && code[1]&7 == 5 {
				n += 4 // disp32 via SIB base
			}
		case mod == 0 && rm == 5:
			n += 4 // disp32 (RIP-relative in 64-bit)
		}
		switch mod {
		case 1:
			n++
		case 2:
			n += 4
		}
	}
	if len(code) < n {
		return 0, false
	}
	return n, true
}
