package cpuid

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Classify returns the ordered feature set required by one decoded
// instruction. The result is never empty: instructions with no extension
// requirement fall back to the base architecture generation.
func Classify(inst x86asm.Inst) FeatureSet {
	name := inst.Op.String()

	if hasVEX(inst) {
		if combo, ok := vexCombos[name]; ok {
			out := make(FeatureSet, len(combo))
			copy(out, combo)
			return out
		}
		if f, ok := vexSingles[name]; ok {
			return FeatureSet{f}
		}
		for _, p := range avx2Prefixes {
			if strings.HasPrefix(name, p) {
				return FeatureSet{AVX2}
			}
		}
		for _, p := range fmaPrefixes {
			if strings.HasPrefix(name, p) {
				return FeatureSet{FMA}
			}
		}
		if strings.HasPrefix(name, "V") {
			return FeatureSet{AVX}
		}
	}

	if f, ok := opFeatures[name]; ok {
		return FeatureSet{f}
	}

	// Integer SIMD ops shared between the MMX and XMM register files take
	// their feature from the operand form.
	if _, ok := mmxOps[name]; ok {
		if xmmForm(inst) {
			return FeatureSet{SSE2}
		}
		return FeatureSet{MMX}
	}
	if _, ok := sseMMXOps[name]; ok {
		if xmmForm(inst) {
			return FeatureSet{SSE2}
		}
		return FeatureSet{SSE}
	}

	switch {
	case strings.HasPrefix(name, "SHA1"), strings.HasPrefix(name, "SHA256"):
		return FeatureSet{SHA}
	case strings.HasPrefix(name, "FCMOV"):
		return FeatureSet{CMOV}
	case strings.HasPrefix(name, "CMOV"):
		return FeatureSet{CMOV}
	case name == "FXSAVE", name == "FXRSTOR", name == "FXSAVE64", name == "FXRSTOR64":
		return FeatureSet{FXSR}
	case strings.HasPrefix(name, "F"):
		// Remaining F-mnemonics are x87.
		return FeatureSet{FPU}
	}

	if inst.Op == x86asm.NOP && byte(inst.Opcode>>24) == 0x0F {
		return FeatureSet{MULTIBYTENOP}
	}

	return FeatureSet{generation(inst)}
}

func hasVEX(inst x86asm.Inst) bool {
	for _, p := range inst.Prefix {
		if p == 0 {
			break
		}
		if p.IsVEX() {
			return true
		}
	}
	return false
}

// xmmForm reports whether the instruction operates on the XMM register
// file (or a 16-byte memory operand) rather than the MMX one.
func xmmForm(inst x86asm.Inst) bool {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		if r, ok := a.(x86asm.Reg); ok && r >= x86asm.X0 && r <= x86asm.X15 {
			return true
		}
	}
	return inst.MemBytes >= 16
}

// generation picks the base architecture feature for instructions with no
// extension requirement, from the widest operand actually in use. The
// mode's default operand size is deliberately ignored: an operand-less NOP
// is INTEL8086 in any mode.
func generation(inst x86asm.Inst) Feature {
	wide32 := false
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		switch v := a.(type) {
		case x86asm.Reg:
			switch {
			case v >= x86asm.RAX && v <= x86asm.R15:
				return X64
			case v >= x86asm.R8B && v <= x86asm.R15B,
				v >= x86asm.R8W && v <= x86asm.R15W,
				v >= x86asm.R8L && v <= x86asm.R15L:
				return X64
			case v >= x86asm.EAX && v <= x86asm.R15L:
				wide32 = true
			case v >= x86asm.CR0 && v <= x86asm.TR7:
				wide32 = true
			}
		case x86asm.Mem:
			switch {
			case inst.MemBytes >= 8 && inst.DataSize >= 64:
				return X64
			case inst.MemBytes >= 4:
				wide32 = true
			}
		}
	}
	if wide32 {
		return INTEL386
	}
	return INTEL8086
}

// Multi-feature requirements for VEX-encoded forms of non-AVX extensions.
// Order matches the report display form, e.g. "AES and AVX".
var vexCombos = map[string]FeatureSet{
	"VAESDEC":          {AES, AVX},
	"VAESDECLAST":      {AES, AVX},
	"VAESENC":          {AES, AVX},
	"VAESENCLAST":      {AES, AVX},
	"VAESIMC":          {AES, AVX},
	"VAESKEYGENASSIST": {AES, AVX},
	"VPCLMULQDQ":       {PCLMULQDQ, AVX},
}

// VEX-encoded ops that belong to an extension other than plain AVX.
var vexSingles = map[string]Feature{
	"VCVTPH2PS": F16C,
	"VCVTPS2PH": F16C,
	"ANDN":      BMI1,
	"BEXTR":     BMI1,
	"BLSI":      BMI1,
	"BLSMSK":    BMI1,
	"BLSR":      BMI1,
	"BZHI":      BMI2,
	"MULX":      BMI2,
	"PDEP":      BMI2,
	"PEXT":      BMI2,
	"RORX":      BMI2,
	"SARX":      BMI2,
	"SHLX":      BMI2,
	"SHRX":      BMI2,
}

var avx2Prefixes = []string{
	"VPBROADCAST",
	"VBROADCASTI128",
	"VPERM2I128",
	"VEXTRACTI128",
	"VINSERTI128",
	"VPMASKMOV",
	"VGATHER",
	"VPGATHER",
	"VPSLLV",
	"VPSRAV",
	"VPSRLV",
}

var fmaPrefixes = []string{
	"VFMADD",
	"VFMSUB",
	"VFNMADD",
	"VFNMSUB",
}

// Single-feature requirements keyed by mnemonic. Mnemonics the decoder
// never produces are harmless here.
var opFeatures = map[string]Feature{
	// identification, counters, system
	"CPUID":      CPUID,
	"PAUSE":      PAUSE,
	"RDPMC":      RDPMC,
	"RSM":        SMM,
	"RDTSC":      TSC,
	"RDTSCP":     RDTSCP,
	"RDMSR":      MSR,
	"WRMSR":      MSR,
	"CMPXCHG8B":  CX8,
	"CMPXCHG16B": CX16,
	"SYSENTER":   SEP,
	"SYSEXIT":    SEP,
	"SYSCALL":    SYSCALL,
	"SYSRET":     SYSCALL,
	"INVPCID":    INVPCID,
	"XGETBV":     XSAVE,
	"XSETBV":     XSAVE,
	"XSAVE":      XSAVE,
	"XSAVE64":    XSAVE,
	"XRSTOR":     XSAVE,
	"XRSTOR64":   XSAVE,
	"XSAVEOPT":   XSAVEOPT,
	"XSAVEOPT64": XSAVEOPT,
	"RDRAND":     RDRAND,
	"RDSEED":     RDSEED,
	"ADCX":       ADX,
	"ADOX":       ADX,
	"RDFSBASE":   FSGSBASE,
	"RDGSBASE":   FSGSBASE,
	"WRFSBASE":   FSGSBASE,
	"WRGSBASE":   FSGSBASE,
	"XBEGIN":     RTM,
	"XEND":       RTM,
	"XABORT":     RTM,
	"XTEST":      RTM,
	"MONITOR":    MONITOR,
	"MWAIT":      MONITOR,
	"VMCALL":     VMX,
	"VMCLEAR":    VMX,
	"VMLAUNCH":   VMX,
	"VMPTRLD":    VMX,
	"VMPTRST":    VMX,
	"VMREAD":     VMX,
	"VMRESUME":   VMX,
	"VMWRITE":    VMX,
	"VMXOFF":     VMX,
	"VMXON":      VMX,
	"INVEPT":     VMX,
	"INVVPID":    VMX,
	"CLFLUSH":    CLFSH,
	"CLFLUSHOPT": CLFLUSHOPT,
	"CLWB":       CLWB,
	"PREFETCHW":  PREFETCHW,

	// scalar extensions
	"POPCNT": POPCNT,
	"LZCNT":  LZCNT,
	"TZCNT":  BMI1,
	"MOVBE":  MOVBE,
	"CRC32":  SSE42,

	// AES / carry-less multiply (legacy SSE forms)
	"AESDEC":          AES,
	"AESDECLAST":      AES,
	"AESENC":          AES,
	"AESENCLAST":      AES,
	"AESIMC":          AES,
	"AESKEYGENASSIST": AES,
	"PCLMULQDQ":       PCLMULQDQ,

	// SSE
	"ADDPS":       SSE,
	"ADDSS":       SSE,
	"ANDNPS":      SSE,
	"ANDPS":       SSE,
	"CMPPS":       SSE,
	"CMPSS":       SSE,
	"COMISS":      SSE,
	"CVTPI2PS":    SSE,
	"CVTPS2PI":    SSE,
	"CVTSI2SS":    SSE,
	"CVTSS2SI":    SSE,
	"CVTTPS2PI":   SSE,
	"CVTTSS2SI":   SSE,
	"DIVPS":       SSE,
	"DIVSS":       SSE,
	"LDMXCSR":     SSE,
	"MAXPS":       SSE,
	"MAXSS":       SSE,
	"MINPS":       SSE,
	"MINSS":       SSE,
	"MOVAPS":      SSE,
	"MOVHLPS":     SSE,
	"MOVHPS":      SSE,
	"MOVLHPS":     SSE,
	"MOVLPS":      SSE,
	"MOVMSKPS":    SSE,
	"MOVNTPS":     SSE,
	"MOVSS":       SSE,
	"MOVUPS":      SSE,
	"MULPS":       SSE,
	"MULSS":       SSE,
	"ORPS":        SSE,
	"PREFETCHT0":  SSE,
	"PREFETCHT1":  SSE,
	"PREFETCHT2":  SSE,
	"PREFETCHNTA": SSE,
	"RCPPS":       SSE,
	"RCPSS":       SSE,
	"RSQRTPS":     SSE,
	"RSQRTSS":     SSE,
	"SFENCE":      SSE,
	"SHUFPS":      SSE,
	"SQRTPS":      SSE,
	"SQRTSS":      SSE,
	"STMXCSR":     SSE,
	"SUBPS":       SSE,
	"SUBSS":       SSE,
	"UCOMISS":     SSE,
	"UNPCKHPS":    SSE,
	"UNPCKLPS":    SSE,
	"XORPS":       SSE,

	// SSE2
	"ADDPD":      SSE2,
	"ADDSD":      SSE2,
	"ANDNPD":     SSE2,
	"ANDPD":      SSE2,
	"CMPPD":      SSE2,
	"CMPSD_XMM":  SSE2,
	"COMISD":     SSE2,
	"CVTDQ2PD":   SSE2,
	"CVTDQ2PS":   SSE2,
	"CVTPD2DQ":   SSE2,
	"CVTPD2PI":   SSE2,
	"CVTPD2PS":   SSE2,
	"CVTPI2PD":   SSE2,
	"CVTPS2DQ":   SSE2,
	"CVTPS2PD":   SSE2,
	"CVTSD2SI":   SSE2,
	"CVTSD2SS":   SSE2,
	"CVTSI2SD":   SSE2,
	"CVTSS2SD":   SSE2,
	"CVTTPD2DQ":  SSE2,
	"CVTTPD2PI":  SSE2,
	"CVTTPS2DQ":  SSE2,
	"CVTTSD2SI":  SSE2,
	"DIVPD":      SSE2,
	"DIVSD":      SSE2,
	"LFENCE":     SSE2,
	"MASKMOVDQU": SSE2,
	"MAXPD":      SSE2,
	"MAXSD":      SSE2,
	"MFENCE":     SSE2,
	"MINPD":      SSE2,
	"MINSD":      SSE2,
	"MOVAPD":     SSE2,
	"MOVDQA":     SSE2,
	"MOVDQU":     SSE2,
	"MOVDQ2Q":    SSE2,
	"MOVHPD":     SSE2,
	"MOVLPD":     SSE2,
	"MOVMSKPD":   SSE2,
	"MOVNTDQ":    SSE2,
	"MOVNTI":     SSE2,
	"MOVNTPD":    SSE2,
	"MOVQ2DQ":    SSE2,
	"MOVSD_XMM":  SSE2,
	"MOVUPD":     SSE2,
	"MULPD":      SSE2,
	"MULSD":      SSE2,
	"ORPD":       SSE2,
	"PSHUFD":     SSE2,
	"PSHUFHW":    SSE2,
	"PSHUFLW":    SSE2,
	"PSLLDQ":     SSE2,
	"PSRLDQ":     SSE2,
	"PUNPCKHQDQ": SSE2,
	"PUNPCKLQDQ": SSE2,
	"SHUFPD":     SSE2,
	"SQRTPD":     SSE2,
	"SQRTSD":     SSE2,
	"SUBPD":      SSE2,
	"SUBSD":      SSE2,
	"UCOMISD":    SSE2,
	"UNPCKHPD":   SSE2,
	"UNPCKLPD":   SSE2,
	"XORPD":      SSE2,

	// SSE3
	"ADDSUBPD": SSE3,
	"ADDSUBPS": SSE3,
	"FISTTP":   SSE3,
	"HADDPD":   SSE3,
	"HADDPS":   SSE3,
	"HSUBPD":   SSE3,
	"HSUBPS":   SSE3,
	"LDDQU":    SSE3,
	"MOVDDUP":  SSE3,
	"MOVSHDUP": SSE3,
	"MOVSLDUP": SSE3,

	// SSSE3
	"PABSB":     SSSE3,
	"PABSD":     SSSE3,
	"PABSW":     SSSE3,
	"PALIGNR":   SSSE3,
	"PHADDD":    SSSE3,
	"PHADDSW":   SSSE3,
	"PHADDW":    SSSE3,
	"PHSUBD":    SSSE3,
	"PHSUBSW":   SSSE3,
	"PHSUBW":    SSSE3,
	"PMADDUBSW": SSSE3,
	"PMULHRSW":  SSSE3,
	"PSHUFB":    SSSE3,
	"PSIGNB":    SSSE3,
	"PSIGND":    SSSE3,
	"PSIGNW":    SSSE3,

	// SSE4.1
	"BLENDPD":    SSE41,
	"BLENDPS":    SSE41,
	"BLENDVPD":   SSE41,
	"BLENDVPS":   SSE41,
	"DPPD":       SSE41,
	"DPPS":       SSE41,
	"EXTRACTPS":  SSE41,
	"INSERTPS":   SSE41,
	"MOVNTDQA":   SSE41,
	"MPSADBW":    SSE41,
	"PACKUSDW":   SSE41,
	"PBLENDVB":   SSE41,
	"PBLENDW":    SSE41,
	"PCMPEQQ":    SSE41,
	"PEXTRB":     SSE41,
	"PEXTRD":     SSE41,
	"PEXTRQ":     SSE41,
	"PHMINPOSUW": SSE41,
	"PINSRB":     SSE41,
	"PINSRD":     SSE41,
	"PINSRQ":     SSE41,
	"PMAXSB":     SSE41,
	"PMAXSD":     SSE41,
	"PMAXUD":     SSE41,
	"PMAXUW":     SSE41,
	"PMINSB":     SSE41,
	"PMINSD":     SSE41,
	"PMINUD":     SSE41,
	"PMINUW":     SSE41,
	"PMOVSXBD":   SSE41,
	"PMOVSXBQ":   SSE41,
	"PMOVSXBW":   SSE41,
	"PMOVSXDQ":   SSE41,
	"PMOVSXWD":   SSE41,
	"PMOVSXWQ":   SSE41,
	"PMOVZXBD":   SSE41,
	"PMOVZXBQ":   SSE41,
	"PMOVZXBW":   SSE41,
	"PMOVZXDQ":   SSE41,
	"PMOVZXWD":   SSE41,
	"PMOVZXWQ":   SSE41,
	"PMULDQ":     SSE41,
	"PMULLD":     SSE41,
	"PTEST":      SSE41,
	"ROUNDPD":    SSE41,
	"ROUNDPS":    SSE41,
	"ROUNDSD":    SSE41,
	"ROUNDSS":    SSE41,

	// SSE4.2
	"PCMPESTRI": SSE42,
	"PCMPESTRM": SSE42,
	"PCMPGTQ":   SSE42,
	"PCMPISTRI": SSE42,
	"PCMPISTRM": SSE42,

	// AVX-only ops without a legacy form
	"VZEROALL":   AVX,
	"VZEROUPPER": AVX,
}

// Base MMX integer ops. XMM forms of the same mnemonics are SSE2.
var mmxOps = map[string]struct{}{
	"EMMS": {}, "MOVD": {}, "MOVQ": {},
	"PACKSSDW": {}, "PACKSSWB": {}, "PACKUSWB": {},
	"PADDB": {}, "PADDD": {}, "PADDQ": {}, "PADDSB": {}, "PADDSW": {},
	"PADDUSB": {}, "PADDUSW": {}, "PADDW": {},
	"PAND": {}, "PANDN": {},
	"PCMPEQB": {}, "PCMPEQD": {}, "PCMPEQW": {},
	"PCMPGTB": {}, "PCMPGTD": {}, "PCMPGTW": {},
	"PMADDWD": {}, "PMULHW": {}, "PMULLW": {}, "PMULUDQ": {},
	"POR": {},
	"PSLLD": {}, "PSLLQ": {}, "PSLLW": {},
	"PSRAD": {}, "PSRAW": {},
	"PSRLD": {}, "PSRLQ": {}, "PSRLW": {},
	"PSUBB": {}, "PSUBD": {}, "PSUBQ": {}, "PSUBSB": {}, "PSUBSW": {},
	"PSUBUSB": {}, "PSUBUSW": {}, "PSUBW": {},
	"PUNPCKHBW": {}, "PUNPCKHDQ": {}, "PUNPCKHWD": {},
	"PUNPCKLBW": {}, "PUNPCKLDQ": {}, "PUNPCKLWD": {},
	"PXOR": {},
}

// MMX-register forms introduced with SSE. XMM forms are SSE2.
var sseMMXOps = map[string]struct{}{
	"MASKMOVQ": {}, "MOVNTQ": {}, "PSHUFW": {},
	"PAVGB": {}, "PAVGW": {},
	"PEXTRW": {}, "PINSRW": {},
	"PMAXSW": {}, "PMAXUB": {}, "PMINSW": {}, "PMINUB": {},
	"PMOVMSKB": {}, "PMULHUW": {}, "PSADBW": {},
}
