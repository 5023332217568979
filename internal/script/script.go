// Package script runs in-world Lua tools against a deliberately narrow
// host surface. World scripts are content, not trusted code: they get
// net.* primitives and a captured print, nothing else. No filesystem,
// no process access, no module loading. A script that throws is
// reported with its source line and changes nothing beyond what its
// completed host calls already did.
package script

import (
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
)

// Host is the capability surface exposed to scripts. Everything is
// string-typed at this boundary; the engine converts to its own ids.
type Host interface {
	// ReadFile returns the display body of a file on the current host.
	ReadFile(name string) (string, error)

	// SetFlag mints a flag, reporting whether it was new.
	SetFlag(name string) bool

	// HasFlag reports whether a flag is held.
	HasFlag(name string) bool

	// Discover maps hosts, returning the newly discovered ids.
	Discover(ids []string) []string

	// AddItem grants an item, reporting whether it was new.
	AddItem(id string) bool

	// HasItem reports whether an item is held.
	HasItem(id string) bool

	// Call invokes a named engine helper ("checksum") on one argument.
	Call(fn, arg string) (string, error)
}

// Result is a completed script run.
type Result struct {
	// Output holds everything the script printed, one entry per print
	// call.
	Output []string
}

// Run executes source as a Lua chunk named name against host. Runtime
// failures come back as CodeScriptRuntime errors whose message carries
// the chunk name and line.
func Run(source, name string, host Host) (Result, error) {
	l := lua.NewState()
	openSandbox(l)

	var out []string
	registerPrint(l, &out)
	registerNet(l, host)

	if err := l.Load(strings.NewReader(source), "@"+name, ""); err != nil {
		return Result{Output: out}, apperrors.Wrap(apperrors.CodeScriptRuntime,
			fmt.Sprintf("load %s: %s", name, luaMessage(l, err)), err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return Result{Output: out}, apperrors.Wrap(apperrors.CodeScriptRuntime,
			fmt.Sprintf("run %s: %s", name, luaMessage(l, err)), err)
	}
	return Result{Output: out}, nil
}

// luaMessage prefers the error value Lua left on the stack, which
// carries chunk:line context, over the bare Go error string.
func luaMessage(l *lua.State, err error) string {
	if l.Top() > 0 {
		if msg, ok := l.ToString(-1); ok && msg != "" {
			l.Pop(1)
			return msg
		}
		l.Pop(1)
	}
	return err.Error()
}

// openSandbox loads the standard libraries, then removes every global
// that reaches outside the interpreter.
func openSandbox(l *lua.State) {
	lua.OpenLibraries(l)
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"require", "package", "io", "os", "debug",
	} {
		l.PushNil()
		l.SetGlobal(name)
	}
}

// registerPrint replaces print with a collector.
func registerPrint(l *lua.State, out *[]string) {
	l.Register("print", func(l *lua.State) int {
		n := l.Top()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, stringify(l, i))
		}
		*out = append(*out, strings.Join(parts, "\t"))
		return 0
	})
}

func stringify(l *lua.State, index int) string {
	switch l.TypeOf(index) {
	case lua.TypeString, lua.TypeNumber:
		s, _ := l.ToString(index)
		return s
	case lua.TypeBoolean:
		return fmt.Sprintf("%t", l.ToBoolean(index))
	case lua.TypeNil:
		return "nil"
	default:
		return "<value>"
	}
}

// registerNet installs the net table over host.
func registerNet(l *lua.State, host Host) {
	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "read", Function: func(l *lua.State) int {
			name := lua.CheckString(l, 1)
			body, err := host.ReadFile(name)
			if err != nil {
				lua.Errorf(l, "net.read: %s", err.Error())
			}
			l.PushString(body)
			return 1
		}},
		{Name: "flag", Function: func(l *lua.State) int {
			l.PushBoolean(host.SetFlag(lua.CheckString(l, 1)))
			return 1
		}},
		{Name: "flagged", Function: func(l *lua.State) int {
			l.PushBoolean(host.HasFlag(lua.CheckString(l, 1)))
			return 1
		}},
		{Name: "discover", Function: func(l *lua.State) int {
			n := l.Top()
			ids := make([]string, 0, n)
			for i := 1; i <= n; i++ {
				ids = append(ids, lua.CheckString(l, i))
			}
			l.PushInteger(len(host.Discover(ids)))
			return 1
		}},
		{Name: "add_item", Function: func(l *lua.State) int {
			l.PushBoolean(host.AddItem(lua.CheckString(l, 1)))
			return 1
		}},
		{Name: "has_item", Function: func(l *lua.State) int {
			l.PushBoolean(host.HasItem(lua.CheckString(l, 1)))
			return 1
		}},
		{Name: "call", Function: func(l *lua.State) int {
			fn := lua.CheckString(l, 1)
			arg := lua.CheckString(l, 2)
			res, err := host.Call(fn, arg)
			if err != nil {
				lua.Errorf(l, "net.call: %s", err.Error())
			}
			l.PushString(res)
			return 1
		}},
	}, 0)
	l.SetGlobal("net")
}
