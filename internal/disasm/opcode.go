package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// OpcodeID is a dense identifier for one distinct instruction encoding.
// IDs are assigned in first-observation order and are stable for a given
// input stream.
type OpcodeID uint32

// Opcode identifies one distinct instruction encoding form, not an
// occurrence. Instr is the mnemonic plus operand pattern; Syntax is the
// prefix/opcode byte form.
type Opcode struct {
	ID     OpcodeID
	Instr  string
	Syntax string
}

// Interner deduplicates opcode identities across a decode run.
type Interner struct {
	ids map[string]OpcodeID
	ops []Opcode
}

func NewInterner() *Interner {
	return &Interner{ids: make(map[string]OpcodeID)}
}

// Intern returns the identity for inst, allocating a new ID the first time
// this encoding form is seen.
func (in *Interner) Intern(inst x86asm.Inst) Opcode {
	return in.InternRaw(instrText(inst), syntaxText(inst))
}

// InternRaw interns an identity from already-rendered display strings.
// Used for encodings recognized outside x86asm.
func (in *Interner) InternRaw(instr, syntax string) Opcode {
	key := instr + "\x00" + syntax
	if id, ok := in.ids[key]; ok {
		return in.ops[id]
	}
	op := Opcode{ID: OpcodeID(len(in.ops)), Instr: instr, Syntax: syntax}
	in.ids[key] = op.ID
	in.ops = append(in.ops, op)
	return op
}

// instrText renders the encoding form: mnemonic plus one token per operand
// class, e.g. "MOV r32, imm" or "ADDSD xmm, m64".
func instrText(inst x86asm.Inst) string {
	var b strings.Builder
	b.WriteString(inst.Op.String())
	for i, a := range inst.Args {
		if a == nil {
			break
		}
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(argToken(a, inst))
	}
	return b.String()
}

func argToken(a x86asm.Arg, inst x86asm.Inst) string {
	switch v := a.(type) {
	case x86asm.Reg:
		return regClass(v)
	case x86asm.Mem:
		if inst.MemBytes > 0 {
			return fmt.Sprintf("m%d", inst.MemBytes*8)
		}
		return "m"
	case x86asm.Imm:
		return "imm"
	case x86asm.Rel:
		return "rel"
	}
	return "?"
}

func regClass(r x86asm.Reg) string {
	switch {
	case r >= x86asm.AL && r <= x86asm.R15B:
		return "r8"
	case r >= x86asm.AX && r <= x86asm.R15W:
		return "r16"
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return "r32"
	case r >= x86asm.RAX && r <= x86asm.R15:
		return "r64"
	case r == x86asm.IP || r == x86asm.EIP || r == x86asm.RIP:
		return "ip"
	case r >= x86asm.F0 && r <= x86asm.F7:
		return "st"
	case r >= x86asm.M0 && r <= x86asm.M7:
		return "mm"
	case r >= x86asm.X0 && r <= x86asm.X15:
		return "xmm"
	case r >= x86asm.ES && r <= x86asm.GS:
		return "sreg"
	case r >= x86asm.CR0 && r <= x86asm.CR15:
		return "cr"
	case r >= x86asm.DR0 && r <= x86asm.DR15:
		return "dr"
	default:
		return strings.ToLower(r.String())
	}
}

// syntaxText renders the opcode-byte form of the encoding, e.g.
// "66 0F 6F /r" or "VEX 58 /r". It is a display string only; together with
// instrText it distinguishes encodings that share a mnemonic.
func syntaxText(inst x86asm.Inst) string {
	var parts []string
	rexW := false
	vex := false
	for _, p := range inst.Prefix {
		if p == 0 {
			break
		}
		raw := byte(p)
		switch {
		case p.IsVEX():
			vex = true
		case p.IsREX():
			if raw&0x08 != 0 {
				rexW = true
			}
		case raw == 0x66 || raw == 0xF2 || raw == 0xF3:
			// Only mandatory prefixes are part of the encoding form;
			// segment overrides and the like are occurrence noise.
			if p&x86asm.PrefixImplicit != 0 {
				parts = append(parts, fmt.Sprintf("%02X", raw))
			}
		}
	}
	if vex {
		parts = append(parts, "VEX")
	}
	if rexW {
		parts = append(parts, "REX.W")
	}

	// Opcode bytes are left-justified in inst.Opcode; length follows the
	// 0F / 0F 38 / 0F 3A escape structure. Register-in-opcode forms are
	// masked back to their base byte so e.g. B8 and B9 stay one identity.
	b0 := byte(inst.Opcode >> 24)
	switch {
	case b0 == 0x0F:
		parts = append(parts, "0F")
		b1 := byte(inst.Opcode >> 16)
		switch {
		case b1 == 0x38 || b1 == 0x3A:
			parts = append(parts,
				fmt.Sprintf("%02X", b1),
				fmt.Sprintf("%02X", byte(inst.Opcode>>8)))
		case b1 >= 0xC8 && b1 <= 0xCF: // BSWAP
			parts = append(parts, fmt.Sprintf("%02X+r", b1&^7))
		default:
			parts = append(parts, fmt.Sprintf("%02X", b1))
		}
	case plusR(b0):
		parts = append(parts, fmt.Sprintf("%02X+r", b0&^7))
	default:
		parts = append(parts, fmt.Sprintf("%02X", b0))
	}

	if hasModRM(inst) {
		parts = append(parts, "/r")
	}
	return strings.Join(parts, " ")
}

// plusR reports whether b is a one-byte opcode that encodes a register in
// its low three bits: INC/DEC (40-4F), PUSH/POP (50-5F), XCHG with the
// accumulator (91-97, 90 itself is NOP), and MOV reg, imm (B0-BF).
func plusR(b byte) bool {
	switch {
	case b >= 0x40 && b <= 0x5F:
		return true
	case b >= 0x91 && b <= 0x97:
		return true
	case b >= 0xB0 && b <= 0xBF:
		return true
	}
	return false
}

func hasModRM(inst x86asm.Inst) bool {
	regs := 0
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		switch a.(type) {
		case x86asm.Mem:
			return true
		case x86asm.Reg:
			regs++
		}
	}
	return regs >= 2
}
