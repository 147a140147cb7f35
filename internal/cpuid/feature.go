// Package cpuid classifies decoded x86 instructions by the CPUID feature
// extensions they require to execute.
package cpuid

import "strings"

// Feature is a CPUID feature flag required by an instruction encoding.
type Feature uint8

const (
	INTEL8086 Feature = iota
	INTEL186
	INTEL286
	INTEL386
	INTEL486
	X64
	CPUID
	FPU
	FPU287
	FPU387
	MULTIBYTENOP
	PAUSE
	RDPMC
	SMM
	CMOV
	TSC
	RDTSCP
	MSR
	CX8
	CX16
	SEP
	SYSCALL
	MMX
	SSE
	SSE2
	SSE3
	SSSE3
	SSE41
	SSE42
	SSE4A
	POPCNT
	LZCNT
	MOVBE
	PCLMULQDQ
	AES
	AVX
	AVX2
	FMA
	F16C
	BMI1
	BMI2
	RDRAND
	RDSEED
	ADX
	SHA
	FSGSBASE
	XSAVE
	XSAVEOPT
	RTM
	HLE
	MPX
	MONITOR
	VMX
	FXSR
	CLFSH
	CLFLUSHOPT
	CLWB
	PREFETCHW
	INVPCID

	featureCount
)

var featureNames = [featureCount]string{
	INTEL8086:    "INTEL8086",
	INTEL186:     "INTEL186",
	INTEL286:     "INTEL286",
	INTEL386:     "INTEL386",
	INTEL486:     "INTEL486",
	X64:          "X64",
	CPUID:        "CPUID",
	FPU:          "FPU",
	FPU287:       "FPU287",
	FPU387:       "FPU387",
	MULTIBYTENOP: "MULTIBYTENOP",
	PAUSE:        "PAUSE",
	RDPMC:        "RDPMC",
	SMM:          "SMM",
	CMOV:         "CMOV",
	TSC:          "TSC",
	RDTSCP:       "RDTSCP",
	MSR:          "MSR",
	CX8:          "CX8",
	CX16:         "CX16",
	SEP:          "SEP",
	SYSCALL:      "SYSCALL",
	MMX:          "MMX",
	SSE:          "SSE",
	SSE2:         "SSE2",
	SSE3:         "SSE3",
	SSSE3:        "SSSE3",
	SSE41:        "SSE41",
	SSE42:        "SSE42",
	SSE4A:        "SSE4A",
	POPCNT:       "POPCNT",
	LZCNT:        "LZCNT",
	MOVBE:        "MOVBE",
	PCLMULQDQ:    "PCLMULQDQ",
	AES:          "AES",
	AVX:          "AVX",
	AVX2:         "AVX2",
	FMA:          "FMA",
	F16C:         "F16C",
	BMI1:         "BMI1",
	BMI2:         "BMI2",
	RDRAND:       "RDRAND",
	RDSEED:       "RDSEED",
	ADX:          "ADX",
	SHA:          "SHA",
	FSGSBASE:     "FSGSBASE",
	XSAVE:        "XSAVE",
	XSAVEOPT:     "XSAVEOPT",
	RTM:          "RTM",
	HLE:          "HLE",
	MPX:          "MPX",
	MONITOR:      "MONITOR",
	VMX:          "VMX",
	FXSR:         "FXSR",
	CLFSH:        "CLFSH",
	CLFLUSHOPT:   "CLFLUSHOPT",
	CLWB:         "CLWB",
	PREFETCHW:    "PREFETCHW",
	INVPCID:      "INVPCID",
}

func (f Feature) String() string {
	if int(f) < len(featureNames) {
		return featureNames[f]
	}
	return "UNKNOWN"
}

// Count returns the number of defined features. Dense tables indexed by
// Feature are sized with it.
func Count() int { return int(featureCount) }

// FeatureSet is the ordered sequence of features required jointly by one
// instruction occurrence. The order is classification-table order and is
// significant when the set is used as a grouping key.
type FeatureSet []Feature

// Key returns the set as an opaque map key. Element order is preserved, so
// the same features in a different order produce a different key.
func (s FeatureSet) Key() string {
	b := make([]byte, len(s))
	for i, f := range s {
		b[i] = byte(f)
	}
	return string(b)
}

// Contains reports whether f is an element of the set.
func (s FeatureSet) Contains(f Feature) bool {
	for _, e := range s {
		if e == f {
			return true
		}
	}
	return false
}

// Display returns the feature names joined with " and ", the form used for
// report headers and filter matching.
func (s FeatureSet) Display() string {
	if len(s) == 1 {
		return s[0].String()
	}
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.String()
	}
	return strings.Join(names, " and ")
}

// Baseline features are present on every x86 family CPU the tool targets
// and are excluded from default reports as uninformative.
var baseline = map[Feature]bool{
	INTEL8086:    true,
	INTEL186:     true,
	INTEL286:     true,
	INTEL386:     true,
	INTEL486:     true,
	X64:          true,
	CPUID:        true,
	FPU:          true,
	FPU287:       true,
	FPU387:       true,
	MULTIBYTENOP: true,
	PAUSE:        true,
	RDPMC:        true,
	SMM:          true,
}

// IsBaseline reports whether f is in the fixed baseline set.
func IsBaseline(f Feature) bool { return baseline[f] }
