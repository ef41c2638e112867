package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	lua "github.com/yuin/gopher-lua"

	"github.com/ardnew/softscsi/scsi"
	"github.com/ardnew/softscsi/wd33c93"
)

// newScriptState returns a Lua state with the controller bindings:
//
//	rd(reg)                     register value, or nil and an error
//	wr(reg, value)              true, or nil and an error
//	aux()                       auxiliary status
//	select_target(id)           true, or nil and an error
//	exec(lun, cdb [, n|data])   status and data-in table, or nil and an error
//	print(...)                  writes to out
//
// The tables REG and CMD map register and command symbols to their
// indices and opcodes, e.g. REG.TargetLUN and CMD.TransferInfo.
func newScriptState(ctx context.Context, m *machine, out io.Writer) *lua.LState {
	L := lua.NewState()
	L.SetContext(ctx)

	fail := func(L *lua.LState, err error) int {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	checkByte := func(L *lua.LState, n int) uint8 {
		v := L.CheckInt(n)
		if v < 0 || v > 0xff {
			L.ArgError(n, "byte value expected")
		}
		return uint8(v)
	}

	L.SetGlobal("rd", L.NewFunction(func(L *lua.LState) int {
		v, err := m.ini.ReadRegister(checkByte(L, 1))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LNumber(v))
		return 1
	}))

	L.SetGlobal("wr", L.NewFunction(func(L *lua.LState) int {
		if err := m.ini.WriteRegister(checkByte(L, 1), checkByte(L, 2)); err != nil {
			return fail(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetGlobal("aux", L.NewFunction(func(L *lua.LState) int {
		v, _ := m.ini.AuxStatus()
		L.Push(lua.LNumber(v))
		return 1
	}))

	L.SetGlobal("select_target", L.NewFunction(func(L *lua.LState) int {
		if err := m.ini.Select(ctx, checkByte(L, 1)); err != nil {
			return fail(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetGlobal("exec", L.NewFunction(func(L *lua.LState) int {
		lun := checkByte(L, 1)
		cdb := tableBytes(L, L.CheckTable(2))

		var data []byte
		dir := scsi.DirectionNone
		switch arg := L.Get(3).(type) {
		case lua.LNumber:
			if arg > 0 {
				data = make([]byte, int(arg))
				dir = scsi.DirectionIn
			}
		case *lua.LTable:
			data = tableBytes(L, arg)
			dir = scsi.DirectionOut
		}

		n, status, err := m.ini.Execute(ctx, lun, cdb, data, dir)
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LNumber(status))
		if dir != scsi.DirectionIn {
			return 1
		}
		in := L.NewTable()
		for i, b := range data[:n] {
			in.RawSetInt(i+1, lua.LNumber(b))
		}
		L.Push(in)
		return 2
	}))

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.Get(i + 1).String()
		}
		fmt.Fprintln(out, strings.Join(parts, "\t"))
		return 0
	}))

	regs := L.NewTable()
	for _, r := range wd33c93.Registers() {
		regs.RawSetString(symbol(r.Name), lua.LNumber(r.Index))
	}
	L.SetGlobal("REG", regs)

	cmds := L.NewTable()
	for op := range 0x100 {
		if name := wd33c93.CommandName(uint8(op)); name != "" {
			cmds.RawSetString(symbol(name), lua.LNumber(op))
		}
	}
	L.SetGlobal("CMD", cmds)

	return L
}

// tableBytes converts a Lua array of numbers to bytes.
func tableBytes(L *lua.LState, t *lua.LTable) []byte {
	b := make([]byte, t.Len())
	for i := range b {
		v, ok := t.RawGetInt(i + 1).(lua.LNumber)
		if !ok || v < 0 || v > 0xff {
			L.RaiseError("element %d is not a byte", i+1)
		}
		b[i] = byte(v)
	}
	return b
}

func newScriptCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "script <file.lua>",
		Short: "Run a Lua script against the controller ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			L := newScriptState(cmd.Context(), m, cmd.OutOrStdout())
			defer L.Close()
			return L.DoFile(args[0])
		},
	}
}
