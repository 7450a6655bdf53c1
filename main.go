// Command manoasm assembles basic-computer programs and runs them on
// the bundled simulator.
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/japanoise/numparse"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"manoasm/pkg/asm"
	"manoasm/pkg/cpu"
	"manoasm/pkg/isa"
)

var (
	mriPath string
	rriPath string
	ioiPath string
	verbose bool

	outPath  string
	tape     string
	startAt  string
	deposits []string
	maxCycle uint64
)

var rootCmd = &cobra.Command{
	Use:   "manoasm",
	Short: "Two-pass assembler and simulator for the basic computer",
	Long: `manoasm translates basic-computer assembly (16-bit words, 12-bit
addresses, memory-reference / register-reference / input-output
instruction families) into a memory image of binary address and word
strings, and can execute that image on a bundled simulator with a
character teleprinter.

The standard opcode tables are built in; each can be replaced with a
text file of "mnemonic bitpattern" lines via --mri, --rri and --ioi.`,
	SilenceUsage: true,
}

var asmCmd = &cobra.Command{
	Use:   "asm <source.asm>",
	Short: "Assemble a source file into a memory image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := newAssembler()
		if err != nil {
			return err
		}
		img, err := a.Assemble(string(source))
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		if verbose {
			if symbols, err := a.Symbols(string(source)); err == nil {
				pp.Fprintf(os.Stderr, "Symbols: %v\n", symbols)
			}
			pp.Fprintf(os.Stderr, "Image: %v\n", img.Words())
		}

		out := outPath
		if out == "" {
			out = defaultOutputPath(args[0])
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := img.WriteTo(f); err != nil {
			return err
		}
		glog.Infof("assembled %d words -> %s", img.Len(), out)
		fmt.Printf("assembled %d words -> %s\n", img.Len(), out)
		return nil
	},
}

var symCmd = &cobra.Command{
	Use:   "sym <source.asm>",
	Short: "Print the symbol table of a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := newAssembler()
		if err != nil {
			return err
		}
		symbols, err := a.Symbols(string(source))
		if err != nil {
			return err
		}
		names := make([]string, 0, len(symbols))
		for name := range symbols {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s %s\n", symbols[name], name)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <source.asm | image.obj>",
	Short: "Assemble (or read) a memory image and run it on the simulator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImage(args[0])
		if err != nil {
			return err
		}
		words, err := img.Binary()
		if err != nil {
			return err
		}

		vm := cpu.New()
		vm.Output = os.Stdout
		vm.Load(words)

		for _, d := range deposits {
			addr, word, err := parseDeposit(d)
			if err != nil {
				return err
			}
			vm.Memory[addr] = word
		}

		pc, err := startAddress(img)
		if err != nil {
			return err
		}
		vm.PC = pc
		vm.PushString(tape)

		glog.V(1).Infof("starting at %03x with %d words loaded", pc, img.Len())
		if halted := vm.RunFor(maxCycle); !halted {
			return fmt.Errorf("no halt within %d cycles", maxCycle)
		}
		fmt.Printf("\nhalted: PC=%03X AC=%04X E=%t cycles=%d\n", vm.PC, vm.AC, vm.E, vm.Cycles)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
	// glog checks that the stdlib flag set was parsed; cobra parses the
	// merged set itself.
	_ = goflag.CommandLine.Parse(nil)
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mriPath, "mri", "", "memory-reference opcode table file (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&rriPath, "rri", "", "register-reference opcode table file (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&ioiPath, "ioi", "", "input/output opcode table file (default: built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "dump the symbol table and image to stderr")

	asmCmd.Flags().StringVarP(&outPath, "out", "o", "", "output image path (default: source with .obj extension)")

	runCmd.Flags().StringVar(&tape, "tape", "", "teleprinter input fed to the program")
	runCmd.Flags().StringVar(&startAt, "start", "", "start address (any radix; default: first image address)")
	runCmd.Flags().StringArrayVar(&deposits, "deposit", nil, "extra addr=value words to deposit before running")
	runCmd.Flags().Uint64Var(&maxCycle, "max-cycles", 1_000_000, "abort if the program has not halted after this many cycles")

	rootCmd.AddCommand(asmCmd, symCmd, runCmd)
}

func newAssembler() (*asm.Assembler, error) {
	if mriPath == "" && rriPath == "" && ioiPath == "" {
		return isa.New()
	}
	mri, rri, ioi, err := isa.Tables()
	if err != nil {
		return nil, err
	}
	if mriPath != "" {
		if mri, err = asm.LoadTableFile(mriPath); err != nil {
			return nil, err
		}
	}
	if rriPath != "" {
		if rri, err = asm.LoadTableFile(rriPath); err != nil {
			return nil, err
		}
	}
	if ioiPath != "" {
		if ioi, err = asm.LoadTableFile(ioiPath); err != nil {
			return nil, err
		}
	}
	return asm.New(mri, rri, ioi), nil
}

func assembleFile(path string) (*asm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := newAssembler()
	if err != nil {
		return nil, err
	}
	img, err := a.Assemble(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// loadImage treats .obj files as serialized images and anything else
// as assembly source.
func loadImage(path string) (*asm.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".obj") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := asm.ReadImage(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return img, nil
	}
	return assembleFile(path)
}

func startAddress(img *asm.Image) (uint16, error) {
	if startAt != "" {
		v, err := numparse.UNumParse(startAt)
		if err != nil {
			return 0, fmt.Errorf("bad start address %q: %w", startAt, err)
		}
		if v >= cpu.MemoryWords {
			return 0, fmt.Errorf("start address %q outside memory", startAt)
		}
		return uint16(v), nil
	}
	// First image entry in allocation order is where the program begins.
	entries := img.Entries()
	if len(entries) == 0 {
		return 0, fmt.Errorf("empty image")
	}
	addr, err := strconv.ParseUint(entries[0].Addr, 2, 16)
	if err != nil {
		return 0, err
	}
	return uint16(addr), nil
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".obj"
	}
	return strings.TrimSuffix(inPath, ext) + ".obj"
}

func parseDeposit(arg string) (uint16, uint16, error) {
	addrText, valText, found := strings.Cut(arg, "=")
	if !found {
		return 0, 0, fmt.Errorf("bad deposit %q: want addr=value", arg)
	}
	addr, err := numparse.UNumParse(addrText)
	if err != nil {
		return 0, 0, fmt.Errorf("bad deposit address %q: %w", addrText, err)
	}
	if addr >= cpu.MemoryWords {
		return 0, 0, fmt.Errorf("deposit address %q outside memory", addrText)
	}
	val, err := numparse.UNumParse(valText)
	if err != nil {
		return 0, 0, fmt.Errorf("bad deposit value %q: %w", valText, err)
	}
	if val > 0xFFFF {
		return 0, 0, fmt.Errorf("deposit value %q wider than a word", valText)
	}
	return uint16(addr), uint16(val), nil
}
