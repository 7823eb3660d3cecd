// Command pdp8core loads a PDP-8 program image, attaches the configured
// peripherals, and runs or single-steps the machine. It is a thin host
// around the pdp8 package; all emulator semantics live there.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pdp8go/pdp8core/pdp8"
)

// Exit codes.
const (
	exitOK           = 0
	exitEmulatorErr  = 1
	exitUsageErr     = 2
	exitImageLoadErr = 3
)

type machineFlags struct {
	memory     int
	image      string
	imageForm  string
	config     string
	console    bool
	paperTape  string
	magtapes   []string
	maxSteps   int
}

func main() {
	var flags machineFlags

	root := &cobra.Command{
		Use:   "pdp8core",
		Short: "A PDP-8 minicomputer emulator core",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load an image and run until halt or --max-steps is reached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMachine(flags)
		},
	}
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Load an image and execute exactly one instruction at a time, printing state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stepMachine(flags)
		},
	}

	for _, cmd := range []*cobra.Command{runCmd, stepCmd} {
		cmd.Flags().IntVar(&flags.memory, "memory", pdp8.MemSize, "core memory size, in words")
		cmd.Flags().StringVar(&flags.image, "image", "", "program image to load (S-record or paper-tape text image)")
		cmd.Flags().StringVar(&flags.imageForm, "image-format", "auto", "image format: auto, srecord, tapeimage")
		cmd.Flags().StringVar(&flags.config, "config", "", "pdp8.config device configuration file")
		cmd.Flags().BoolVar(&flags.console, "console", false, "attach an interactive KL8E console on stdin/stdout")
		cmd.Flags().StringVar(&flags.paperTape, "papertape", "", "paper-tape text image to load into the reader")
		cmd.Flags().StringSliceVar(&flags.magtapes, "magtape", nil, "unit:path[:ro] magtape unit to configure, repeatable")
		cmd.Flags().IntVar(&flags.maxSteps, "max-steps", 1_000_000, "maximum instructions to execute")
		root.AddCommand(cmd)
	}

	root.SilenceUsage = true
	if err := root.Execute(); err != nil {
		log.Printf("pdp8core: %v", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor classifies an error into one of the exit codes above.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, pdp8.ErrImageParse), errors.Is(err, pdp8.ErrMedia):
		return exitImageLoadErr
	case errors.Is(err, errUsage):
		return exitUsageErr
	default:
		return exitEmulatorErr
	}
}

var errUsage = errors.New("usage error")

// machine bundles a configured CPU with the peripherals this host attached
// to it, so callers can drive and tear it down uniformly.
type machine struct {
	cpu       *pdp8.CPU
	console   *pdp8.Console
	paperTape *pdp8.PaperTape
	magtape   *pdp8.Magtape
	term      *terminalHost
}

func (m *machine) close() {
	if m.term != nil {
		m.term.stop()
	}
	if m.console != nil {
		m.console.Destroy()
	}
	if m.paperTape != nil {
		m.paperTape.Destroy()
	}
	if m.magtape != nil {
		m.magtape.Destroy()
	}
	m.cpu.Destroy()
}

func buildMachine(flags machineFlags) (*machine, error) {
	cpu := pdp8.NewCPU(flags.memory)
	m := &machine{cpu: cpu}

	if flags.image != "" {
		if err := loadImage(cpu, flags.image, flags.imageForm, m); err != nil {
			return nil, err
		}
	}

	if flags.console {
		m.console = pdp8.NewConsole()
		if err := m.console.Attach(cpu); err != nil {
			return nil, errors.Wrap(err, "attach console")
		}
		m.term = newTerminalHost(m.console)
		m.term.start()
	}

	if flags.paperTape != "" {
		blocks, err := loadTapeBlocks(flags.paperTape)
		if err != nil {
			return nil, err
		}
		m.paperTape = pdp8.NewPaperTape()
		if err := m.paperTape.Attach(cpu); err != nil {
			return nil, errors.Wrap(err, "attach paper tape")
		}
		m.paperTape.Load(blocks)
	}

	if len(flags.magtapes) > 0 {
		m.magtape = pdp8.NewMagtape(8)
		if err := m.magtape.Attach(cpu); err != nil {
			return nil, errors.Wrap(err, "attach magtape")
		}
		for _, spec := range flags.magtapes {
			unit, path, ro, err := parseMagtapeSpec(spec)
			if err != nil {
				return nil, err
			}
			if err := m.magtape.ConfigureUnit(unit, path, ro); err != nil {
				return nil, err
			}
		}
	}

	if flags.config != "" {
		if err := applyConfigFile(m, flags.config); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// parseMagtapeSpec parses "unit:path" or "unit:path:ro".
func parseMagtapeSpec(spec string) (unit int, path string, writeProtected bool, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return 0, "", false, errors.Wrapf(errUsage, "--magtape %q: expected unit:path[:ro]", spec)
	}
	unit, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false, errors.Wrapf(errUsage, "--magtape %q: bad unit number", spec)
	}
	path = parts[1]
	writeProtected = len(parts) == 3 && parts[2] == "ro"
	return unit, path, writeProtected, nil
}

// loadImage detects the image format (by flag or file extension), parses
// it, and installs it into cpu.
func loadImage(cpu *pdp8.CPU, path, form string, m *machine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(pdp8.ErrMedia, "read image %s: %s", path, err)
	}

	detected := form
	if detected == "auto" {
		detected = detectImageFormat(path)
	}

	switch detected {
	case "srecord":
		img, err := pdp8.ParseSRecord(string(data))
		if err != nil {
			return err
		}
		return img.Install(cpu)
	case "tapeimage":
		blocks, err := pdp8.ParseTapeImage(string(data))
		if err != nil {
			return err
		}
		return installBootBlock(cpu, blocks)
	default:
		return errors.Wrapf(errUsage, "unknown image format %q", form)
	}
}

// installBootBlock installs block 0 of a parsed tape image directly into
// low memory, the convention a bootstrap loader on real hardware follows.
func installBootBlock(cpu *pdp8.CPU, blocks []pdp8.PaperTapeBlock) error {
	if len(blocks) == 0 {
		return errors.Wrap(pdp8.ErrImageParse, "tape image has no blocks")
	}
	for i, w := range blocks[0].Words {
		if err := cpu.WriteMem(i, w); err != nil {
			return errors.Wrap(err, "install boot block")
		}
	}
	return nil
}

func detectImageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s19", ".s28", ".s37", ".srec":
		return "srecord"
	default:
		return "tapeimage"
	}
}

func loadTapeBlocks(path string) ([]pdp8.PaperTapeBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(pdp8.ErrMedia, "read paper tape %s: %s", path, err)
	}
	return pdp8.ParseTapeImage(string(data))
}

// applyConfigFile overlays pdp8.config device blocks onto an already-built
// machine. Only paper_tape blocks are applied, through their "path" key
// (the tape image to load); every other device block and every other key
// is ignored.
func applyConfigFile(m *machine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(pdp8.ErrMedia, "read config %s: %s", path, err)
	}
	devices, err := pdp8.ParseConfig(string(data))
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Name != "paper_tape" {
			continue
		}
		path, ok := d.Get("path")
		if !ok {
			continue
		}
		blocks, err := loadTapeBlocks(path)
		if err != nil {
			return err
		}
		if m.paperTape == nil {
			m.paperTape = pdp8.NewPaperTape()
			if err := m.paperTape.Attach(m.cpu); err != nil {
				return errors.Wrap(err, "attach paper tape")
			}
		}
		m.paperTape.Load(blocks)
	}
	return nil
}

func runMachine(flags machineFlags) error {
	m, err := buildMachine(flags)
	if err != nil {
		return err
	}
	defer m.close()

	executed := m.cpu.Run(flags.maxSteps)
	if m.console != nil {
		m.term.printOutput()
	}
	fmt.Fprintf(os.Stderr, "\nexecuted %d instructions, PC=%04o AC=%04o L=%o halted=%v\n",
		executed, m.cpu.PC(), m.cpu.AC(), m.cpu.Link(), m.cpu.IsHalted())
	return nil
}

func stepMachine(flags machineFlags) error {
	m, err := buildMachine(flags)
	if err != nil {
		return err
	}
	defer m.close()

	for i := 0; i < flags.maxSteps; i++ {
		if m.cpu.Step() == 0 {
			break
		}
		if m.console != nil {
			m.term.printOutput()
		}
		fmt.Fprintf(os.Stderr, "PC=%04o AC=%04o L=%o\n", m.cpu.PC(), m.cpu.AC(), m.cpu.Link())
		if m.cpu.IsHalted() {
			break
		}
	}
	return nil
}
