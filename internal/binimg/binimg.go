// Package binimg opens executable binaries, maps them read-only, and
// locates their code sections. ELF, PE and Mach-O containers are
// recognized by magic.
package binimg

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"
	"os"
	"syscall"
)

// Section is one executable code region of the image.
type Section struct {
	Name  string
	Index int
	Addr  uint64 // virtual address, relative to Base
	Off   uint64 // file offset
	Size  uint64
}

// Image is an open, memory-mapped binary.
type Image struct {
	Path    string
	Format  string // "elf", "pe" or "macho"
	Bitness int    // 32 or 64
	Base    uint64 // image base added to section addresses
	Code    []Section
	all     []byte
	f       *os.File
}

// Open maps path read-only and parses its container headers. The mapping
// lives until Close.
func Open(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("read %q: file is empty", path)
	}
	all, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %q: %w", path, err)
	}

	im := &Image{Path: path, all: all, f: f}
	if err := im.parse(); err != nil {
		im.Close()
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return im, nil
}

// Close unmaps the file and closes it.
func (im *Image) Close() error {
	var err1, err2 error
	if im.all != nil {
		err1 = syscall.Munmap(im.all)
		im.all = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// SectionData returns the mapped bytes of s, validated against the file
// bounds.
func (im *Image) SectionData(s Section) ([]byte, error) {
	end := s.Off + s.Size
	if end < s.Off || end > uint64(len(im.all)) {
		return nil, fmt.Errorf("section %q index %d: range [%#x,%#x) outside file %q",
			s.Name, s.Index, s.Off, end, im.Path)
	}
	return im.all[s.Off:end], nil
}

func (im *Image) parse() error {
	switch {
	case bytes.HasPrefix(im.all, []byte("\x7fELF")):
		return im.parseELF()
	case bytes.HasPrefix(im.all, []byte("MZ")):
		return im.parsePE()
	case len(im.all) >= 4 && isMachoMagic(im.all[:4]):
		return im.parseMacho()
	}
	return fmt.Errorf("unrecognized binary format")
}

func isMachoMagic(m []byte) bool {
	switch {
	case m[0] == 0xfe && m[1] == 0xed && m[2] == 0xfa && (m[3] == 0xce || m[3] == 0xcf):
		return true
	case m[3] == 0xfe && m[2] == 0xed && m[1] == 0xfa && (m[0] == 0xce || m[0] == 0xcf):
		return true
	}
	return false
}

func (im *Image) parseELF() error {
	f, err := elf.NewFile(bytes.NewReader(im.all))
	if err != nil {
		return fmt.Errorf("parse elf: %w", err)
	}
	defer f.Close()

	im.Format = "elf"
	im.Bitness = 32
	if f.Class == elf.ELFCLASS64 {
		im.Bitness = 64
	}

	for i, s := range f.Sections {
		if s.Flags&elf.SHF_EXECINSTR == 0 || s.Type != elf.SHT_PROGBITS || s.Size == 0 {
			continue
		}
		im.Code = append(im.Code, Section{
			Name:  s.Name,
			Index: i,
			Addr:  s.Addr,
			Off:   s.Offset,
			Size:  s.Size,
		})
	}

	// Fallback if stripped of section headers: executable PT_LOAD
	// segments stand in for code sections.
	if len(im.Code) == 0 {
		for i, p := range f.Progs {
			if p.Type != elf.PT_LOAD || p.Flags&elf.PF_X == 0 || p.Filesz == 0 {
				continue
			}
			im.Code = append(im.Code, Section{
				Name:  "LOAD(exec)",
				Index: i,
				Addr:  p.Vaddr,
				Off:   p.Off,
				Size:  p.Filesz,
			})
		}
	}
	return nil
}

func (im *Image) parsePE() error {
	f, err := pe.NewFile(bytes.NewReader(im.all))
	if err != nil {
		return fmt.Errorf("parse pe: %w", err)
	}
	defer f.Close()

	im.Format = "pe"
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		im.Bitness = 64
		im.Base = oh.ImageBase
	case *pe.OptionalHeader32:
		im.Bitness = 32
		im.Base = uint64(oh.ImageBase)
	default:
		return fmt.Errorf("parse pe: missing optional header")
	}

	const imageScnCntCode = 0x00000020
	for i, s := range f.Sections {
		if s.Characteristics&imageScnCntCode == 0 || s.Size == 0 {
			continue
		}
		size := uint64(s.Size)
		if s.VirtualSize != 0 && uint64(s.VirtualSize) < size {
			size = uint64(s.VirtualSize)
		}
		im.Code = append(im.Code, Section{
			Name:  s.Name,
			Index: i,
			Addr:  uint64(s.VirtualAddress),
			Off:   uint64(s.Offset),
			Size:  size,
		})
	}
	return nil
}

func (im *Image) parseMacho() error {
	f, err := macho.NewFile(bytes.NewReader(im.all))
	if err != nil {
		return fmt.Errorf("parse mach-o: %w", err)
	}
	defer f.Close()

	im.Format = "macho"
	im.Bitness = 32
	if f.Magic == macho.Magic64 {
		im.Bitness = 64
	}

	const (
		attrPureInstructions = 0x80000000
		attrSomeInstructions = 0x00000400
	)
	for i, s := range f.Sections {
		exec := s.Flags&(attrPureInstructions|attrSomeInstructions) != 0 ||
			(s.Seg == "__TEXT" && s.Name == "__text")
		if !exec || s.Size == 0 {
			continue
		}
		im.Code = append(im.Code, Section{
			Name:  s.Name,
			Index: i,
			Addr:  s.Addr,
			Off:   uint64(s.Offset),
			Size:  s.Size,
		})
	}
	return nil
}
