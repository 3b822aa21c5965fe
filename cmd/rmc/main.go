package main

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/rmcomp/rmc/pkg/analysis"
	"github.com/rmcomp/rmc/pkg/asm"
	"github.com/rmcomp/rmc/pkg/codegen"
	"github.com/rmcomp/rmc/pkg/emulator"
	"github.com/rmcomp/rmc/pkg/ir"
	"github.com/rmcomp/rmc/pkg/semantic"
	"github.com/rmcomp/rmc/pkg/version"
)

var (
	outputFile  string
	annotate    bool
	poolSize    int
	showVersion bool
	inputFile   string
	runAfter    bool
)

var rootCmd = &cobra.Command{
	Use:   "rmc [source file]",
	Short: "rmc - register machine compiler back-end " + version.GetVersion(),
	Long: `rmc lowers three-address IR into code for a simple register machine:
eight registers, unbounded integer cells addressed through register A,
and no native multiplication or division.

EXAMPLES:
  rmc prog.rir                # compile to prog.rasm
  rmc prog.rir -o out.rasm    # choose the output file
  rmc prog.rir -d             # annotate output with IR comments
  rmc prog.rir --run          # compile and execute immediately
  rmc run prog.rasm           # execute a compiled listing`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetFullVersion())
			return nil
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return compile(args[0])
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [listing file]",
	Short: "Execute a compiled listing on the reference machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		lines, err := asm.Parse(string(text))
		if err != nil {
			return fmt.Errorf("%s: %v", args[0], err)
		}
		return execute(lines)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: source with .rasm extension)")
	rootCmd.Flags().BoolVarP(&annotate, "debug", "d", false, "annotate the listing with IR comments")
	rootCmd.Flags().IntVar(&poolSize, "pool", 0, "working register pool size (default: full pool)")
	rootCmd.Flags().BoolVar(&runAfter, "run", false, "execute the program after compiling")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version information")
	runCmd.Flags().StringVar(&inputFile, "in", "", "read GET values from a file instead of prompting")
	rootCmd.AddCommand(runCmd)
}

func compile(srcPath string) error {
	source, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	prog, err := ir.Parse(string(source))
	if err != nil {
		return fmt.Errorf("%s: %v", srcPath, err)
	}

	syms, err := semantic.Build(prog)
	if err != nil {
		return fmt.Errorf("%s: %v", srcPath, err)
	}
	live := analysis.ComputeLiveness(prog)
	doms := analysis.ComputeDominators(prog)

	gen := codegen.New(syms, live, doms, codegen.Options{PoolSize: poolSize, Annotate: annotate})
	lines, err := gen.Generate(prog)
	if err != nil {
		return fmt.Errorf("%s: %v", srcPath, err)
	}

	out := outputFile
	if out == "" {
		ext := filepath.Ext(srcPath)
		out = strings.TrimSuffix(srcPath, ext) + ".rasm"
	}
	if err := os.WriteFile(out, []byte(asm.Format(lines)), 0644); err != nil {
		return err
	}
	fmt.Printf("Compiled %s -> %s (%d lines)\n", srcPath, out, len(lines))

	if runAfter {
		return execute(lines)
	}
	return nil
}

func execute(lines []asm.Line) error {
	m, err := emulator.New(lines)
	if err != nil {
		return err
	}

	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		m.SetInput(scanInput(f))
	} else {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "? ",
			InterruptPrompt: "^C",
			EOFPrompt:       "eof",
		})
		if err != nil {
			return err
		}
		defer rl.Close()
		m.SetInput(promptInput(rl))
	}

	if err := m.Run(); err != nil {
		return err
	}
	for _, v := range m.Outputs() {
		fmt.Println(v)
	}
	return nil
}

// scanInput reads whitespace-separated integers from a file.
func scanInput(r io.Reader) emulator.InputFunc {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	return func() (*big.Int, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("input exhausted")
		}
		v, ok := new(big.Int).SetString(scanner.Text(), 10)
		if !ok {
			return nil, fmt.Errorf("invalid input %q", scanner.Text())
		}
		return v, nil
	}
}

// promptInput asks interactively for each GET.
func promptInput(rl *readline.Instance) emulator.InputFunc {
	return func() (*big.Int, error) {
		for {
			line, err := rl.Readline()
			if err == readline.ErrInterrupt {
				return nil, fmt.Errorf("interrupted")
			}
			if err != nil {
				return nil, err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			v, ok := new(big.Int).SetString(line, 10)
			if !ok {
				fmt.Println("expecting an integer")
				continue
			}
			return v, nil
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
