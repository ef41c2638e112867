package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/wd33c93"
)

const monitorPrompt = "wd33c93> "

const monitorHelp = `commands:
  r <reg>          read register (index or name)
  w <reg> <value>  write register
  aux              read auxiliary status
  sel <id>         select target
  cmd <op>         write command register (opcode or name)
  regs             dump registers
  quit             leave the monitor
`

// monitor interprets register monitor commands against a machine.
type monitor struct {
	m   *machine
	out io.Writer
}

// errQuit ends the monitor loop.
var errQuit = errors.New("quit")

// symbol reduces a register or command name to its letters and digits.
func symbol(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// lookupRegisterArg resolves a register index or symbol, ignoring case.
func lookupRegisterArg(s string) (uint8, error) {
	if v, err := parseByte(s); err == nil {
		return v, nil
	}
	for _, r := range wd33c93.Registers() {
		if strings.EqualFold(symbol(r.Name), s) {
			return r.Index, nil
		}
	}
	return 0, fmt.Errorf("register %q: %w", s, pkg.ErrInvalidRegister)
}

// lookupCommandArg resolves a command opcode or symbol, ignoring case.
func lookupCommandArg(s string) (uint8, error) {
	if v, err := parseByte(s); err == nil {
		return v, nil
	}
	for op := range 0x100 {
		name := wd33c93.CommandName(uint8(op))
		if name != "" && strings.EqualFold(symbol(name), s) {
			return uint8(op), nil
		}
	}
	return 0, fmt.Errorf("command %q: %w", s, pkg.ErrUnsupportedCommand)
}

// exec runs one monitor line. It returns errQuit when the monitor should
// exit; other errors are reported and the monitor continues.
func (mon *monitor) exec(cmd *cobra.Command, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	before := mon.m.irqs
	defer func() {
		if mon.m.irqs != before {
			io.WriteString(mon.out, "interrupt raised\n")
		}
	}()

	ini := mon.m.ini
	switch verb, args := fields[0], fields[1:]; verb {
	case "r", "read":
		if len(args) != 1 {
			return fmt.Errorf("usage: r <reg>")
		}
		reg, err := lookupRegisterArg(args[0])
		if err != nil {
			return err
		}
		v, err := ini.ReadRegister(reg)
		fmt.Fprintf(mon.out, "%s = 0x%02x\n", wd33c93.RegisterName(reg), v)
		return err

	case "w", "write":
		if len(args) != 2 {
			return fmt.Errorf("usage: w <reg> <value>")
		}
		reg, err := lookupRegisterArg(args[0])
		if err != nil {
			return err
		}
		v, err := parseByte(args[1])
		if err != nil {
			return err
		}
		return ini.WriteRegister(reg, v)

	case "aux":
		v, err := ini.AuxStatus()
		fmt.Fprintf(mon.out, "aux = 0x%02x\n", v)
		return err

	case "sel", "select":
		if len(args) != 1 {
			return fmt.Errorf("usage: sel <id>")
		}
		id, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		if err := ini.Select(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(mon.out, "target %d selected\n", id)
		return nil

	case "cmd":
		if len(args) != 1 {
			return fmt.Errorf("usage: cmd <op>")
		}
		op, err := lookupCommandArg(args[0])
		if err != nil {
			return err
		}
		return ini.Command(op)

	case "regs":
		printRegisters(mon.out, dumpRegisters(mon.m.ctrl))
		fmt.Fprintf(mon.out, "state %s, phase %s, pointer 0x%02x\n",
			mon.m.ctrl.State(), mon.m.ctrl.Phase(), mon.m.ctrl.Pointer())
		return nil

	case "help", "?":
		io.WriteString(mon.out, monitorHelp)
		return nil

	case "q", "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
}

// run reads lines until quit or end of input.
func (mon *monitor) run(cmd *cobra.Command, readLine func() (string, error)) error {
	for {
		line, err := readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch err := mon.exec(cmd, line); {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(mon.out, "error: %v\n", err)
		}
	}
}

func newMonitorCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Interactive register monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			in := cmd.InOrStdin()
			f, ok := in.(*os.File)
			if !ok || !term.IsTerminal(int(f.Fd())) {
				mon := &monitor{m: m, out: cmd.OutOrStdout()}
				scanner := bufio.NewScanner(in)
				return mon.run(cmd, func() (string, error) {
					if !scanner.Scan() {
						if err := scanner.Err(); err != nil {
							return "", err
						}
						return "", io.EOF
					}
					return scanner.Text(), nil
				})
			}

			fd := int(f.Fd())
			state, err := term.MakeRaw(fd)
			if err != nil {
				return fmt.Errorf("raw terminal: %w", err)
			}
			defer term.Restore(fd, state)

			screen := struct {
				io.Reader
				io.Writer
			}{f, cmd.OutOrStdout()}
			t := term.NewTerminal(screen, monitorPrompt)
			if width, height, err := term.GetSize(fd); err == nil {
				_ = t.SetSize(width, height)
			}

			mon := &monitor{m: m, out: t}
			fmt.Fprintf(t, "targets %v attached; type help for commands\n", m.targets())
			return mon.run(cmd, t.ReadLine)
		},
	}
}
