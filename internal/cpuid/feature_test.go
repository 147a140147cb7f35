package cpuid

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestFeatureNames(t *testing.T) {
	for f := Feature(0); int(f) < Count(); f++ {
		name := f.String()
		if name == "" || name == "UNKNOWN" {
			t.Errorf("feature %d has no name", f)
		}
	}
}

func TestFeatureSetDisplay(t *testing.T) {
	tests := []struct {
		name string
		set  FeatureSet
		want string
	}{
		{"single", FeatureSet{AVX}, "AVX"},
		{"pair", FeatureSet{AES, AVX}, "AES and AVX"},
		{"order preserved", FeatureSet{AVX, AES}, "AVX and AES"},
		{"triple", FeatureSet{SSE2, AES, AVX}, "SSE2 and AES and AVX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.set.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFeatureSetKeyIsOrderSensitive(t *testing.T) {
	a := FeatureSet{AES, AVX}.Key()
	b := FeatureSet{AVX, AES}.Key()
	if a == b {
		t.Error("reversed feature order produced the same key")
	}
	if a != (FeatureSet{AES, AVX}).Key() {
		t.Error("identical sets produced different keys")
	}
}

func TestIsBaseline(t *testing.T) {
	for _, f := range []Feature{
		INTEL8086, INTEL186, INTEL286, INTEL386, INTEL486,
		X64, CPUID, FPU, FPU287, FPU387, MULTIBYTENOP, PAUSE, RDPMC, SMM,
	} {
		if !IsBaseline(f) {
			t.Errorf("IsBaseline(%s) = false, want true", f)
		}
	}
	for _, f := range []Feature{SSE, SSE2, AVX, AES, POPCNT, MPX} {
		if IsBaseline(f) {
			t.Errorf("IsBaseline(%s) = true, want false", f)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want string // display form of the expected feature set
	}{
		{"nop", []byte{0x90}, "INTEL8086"},
		{"multi-byte nop", []byte{0x0F, 0x1F, 0x00}, "MULTIBYTENOP"},
		{"pause", []byte{0xF3, 0x90}, "PAUSE"},
		{"cpuid", []byte{0x0F, 0xA2}, "CPUID"},
		{"rdtsc", []byte{0x0F, 0x31}, "TSC"},
		{"ret", []byte{0xC3}, "INTEL8086"},
		{"mov r8 imm8", []byte{0xB0, 0x01}, "INTEL8086"},
		{"add r32", []byte{0x01, 0xD8}, "INTEL386"},
		{"add m32 imm8", []byte{0x83, 0x00, 0x01}, "INTEL386"},
		{"add r64", []byte{0x48, 0x01, 0xD8}, "X64"},
		{"add m64 imm8", []byte{0x48, 0x83, 0x00, 0x01}, "X64"},
		{"cmov", []byte{0x0F, 0x44, 0xC1}, "CMOV"},
		{"x87 fadd", []byte{0xD8, 0xC1}, "FPU"},
		{"addps", []byte{0x0F, 0x58, 0xC1}, "SSE"},
		{"addsd", []byte{0xF2, 0x0F, 0x58, 0xC1}, "SSE2"},
		{"movdqa", []byte{0x66, 0x0F, 0x6F, 0xC8}, "SSE2"},
		{"aesenc", []byte{0x66, 0x0F, 0x38, 0xDC, 0xC1}, "AES"},
		{"popcnt", []byte{0xF3, 0x0F, 0xB8, 0xC1}, "POPCNT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := x86asm.Decode(tt.code, 64)
			if err != nil {
				t.Fatalf("Decode(% X) failed: %v", tt.code, err)
			}
			set := Classify(inst)
			if len(set) == 0 {
				t.Fatalf("Classify(%s) returned an empty set", inst.Op)
			}
			if got := set.Display(); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", inst.Op, got, tt.want)
			}
		})
	}
}

func TestClassifyMMXFormVsXMMForm(t *testing.T) {
	// PADDB mm, mm vs PADDB xmm, xmm share a mnemonic; the feature comes
	// from the register file in use.
	mmx, err := x86asm.Decode([]byte{0x0F, 0xFC, 0xC1}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if got := Classify(mmx).Display(); got != "MMX" {
		t.Errorf("PADDB mm form = %s, want MMX", got)
	}

	xmm, err := x86asm.Decode([]byte{0x66, 0x0F, 0xFC, 0xC1}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if got := Classify(xmm).Display(); got != "SSE2" {
		t.Errorf("PADDB xmm form = %s, want SSE2", got)
	}
}
