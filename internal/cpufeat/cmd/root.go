package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"cpufeat/internal/binimg"
	"cpufeat/internal/config"
	"cpufeat/internal/disasm"
	"cpufeat/internal/logging"
	"cpufeat/internal/stats"
)

var (
	flagMPX     bool
	flagAll     bool
	flagInstr   bool
	flagOpcode  bool
	flagCount   bool
	flagPercent bool
	flagCPUID   string
	flagIgnore  string
)

var rootCmd = &cobra.Command{
	Use:   "cpufeat [flags] filename",
	Short: "Show CPUID features and instruction encodings used by x86/x64 binaries",
	Long: `Show CPUID features and instruction encodings used by x86/x64 binaries.

It assumes all bytes inside the code sections are code. This isn't always
true. If you see some weird instructions, it's probably data that was
decoded as instructions.`,
	Example: `
# Which feature extensions does a binary rely on?
cpufeat /usr/bin/ssh

# Per-instruction breakdown with counts and percentages
cpufeat -i -o -c -% /usr/bin/ssh

# Only AVX-related groups
cpufeat --cpuid "AVX,AVX2,AES and AVX" /usr/bin/ssh
  `,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("all") {
			flagAll = cfg.All
		}
		if !cmd.Flags().Changed("mpx") {
			flagMPX = cfg.MPX
		}
		include := splitCommaList(flagCPUID)
		if len(include) == 0 {
			include = cfg.CPUID
		}
		exclude := splitCommaList(flagIgnore)
		if len(exclude) == 0 {
			exclude = cfg.IgnoreCPUID
		}

		opts := options{
			mpx: flagMPX,
			all: flagAll,
			cols: stats.Columns{
				Percent: flagPercent,
				Count:   flagCount,
				Opcode:  flagOpcode,
				Instr:   flagInstr,
			},
			include: include,
			exclude: exclude,
		}
		if term.IsTerminal(os.Stdout.Fd()) {
			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
			opts.style = func(s string) string { return headerStyle.Render(s) }
		}
		return analyze(args[0], opts, os.Stdout)
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagMPX, "mpx", false, "Decodes MPX instructions")
	rootCmd.Flags().BoolVarP(&flagAll, "all", "a", false, "Includes all instructions even if they don't have a CPUID feature bit")
	rootCmd.Flags().BoolVarP(&flagInstr, "instr", "i", false, "Shows instructions")
	rootCmd.Flags().BoolVarP(&flagOpcode, "opcode", "o", false, "Shows opcodes")
	rootCmd.Flags().BoolVarP(&flagCount, "count", "c", false, "Shows instruction count (requires --instr or --opcode)")
	rootCmd.Flags().BoolVarP(&flagPercent, "percent", "%", false, "Shows how often an instruction is used (%) (requires --instr or --opcode)")
	rootCmd.Flags().StringVar(&flagCPUID, "cpuid", "", "Shows only the following CPUID features (','-separated). Matches whole strings.")
	rootCmd.Flags().StringVar(&flagIgnore, "ignore-cpuid", "", "Ignores the following CPUID features (','-separated). Matches whole strings.")
}

type options struct {
	mpx     bool
	all     bool
	cols    stats.Columns
	include []string
	exclude []string
	style   func(string) string
}

// analyze runs the whole pipeline for one binary: map it, decode every
// code section, aggregate, filter, and render the report to w.
func analyze(path string, opts options, w io.Writer) error {
	lg := logging.NewLogger()
	defer lg.Close()

	img, err := binimg.Open(path)
	if err != nil {
		return err
	}
	defer img.Close()
	lg.Debug("mapped binary", "path", path, "format", img.Format, "bitness", img.Bitness, "sections", len(img.Code))

	intern := disasm.NewInterner()
	agg := stats.NewAggregator()
	detail := opts.cols.Detail()

	for _, sec := range img.Code {
		data, err := img.SectionData(sec)
		if err != nil {
			return err
		}
		dec := disasm.NewDecoder(data, img.Bitness, img.Base+sec.Addr, disasm.Options{MPX: opts.mpx}, intern)
		n := 0
		for {
			rec, ok := dec.Next()
			if !ok {
				break
			}
			agg.Ingest(rec, detail)
			n++
		}
		lg.Debug("decoded section", "name", sec.Name, "index", sec.Index, "instructions", n)
	}

	groups := stats.Filter(agg.Groups(), stats.FilterOptions{
		IncludeBaseline: opts.all,
		Include:         opts.include,
		Exclude:         opts.exclude,
	})
	rep := stats.Report{Groups: groups, Total: agg.Total()}
	return rep.Render(w, opts.cols, opts.style)
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Execute() {
	// Bypass fang's presentation when output is being piped so the report
	// stays plain text.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
