package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mainer"
)

const binName = "vcl"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <file> [<arg>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <file> [<arg>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and interpreter for the VCL language.

The <command> can be one of:
       run                       Compile and execute the program; any
                                 argument after the file is passed to
                                 the interpreted program as argv.
       preprocess                Execute only the preprocessing phase
                                 and print the marked-up text.
       tokenize                  Execute through the tokenizing phase
                                 and print the pseudocode token stream.
       link                      Execute through the linking phase and
                                 print the populated symbol and
                                 function tables.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -c --compile-only         Stop after linking, do not execute.
       -l --no-line-marks        Omit file/line markers from the
                                 pseudocode stream.
       -q --quiet                Suppress warnings.
       -D --define NAME[=VAL]    Define a macro before preprocessing;
                                 repeatable with commas.
       -P --dump-pre             Write the preprocessed text next to
                                 the source as <name>.pre.

The include search path for <...> includes defaults to the directory of
the %[1]s executable and can be overridden with the VCL_INCLUDE_PATH
environment variable.

More information on the %[1]s repository:
       https://github.com/vastcl/vcl
`, binName)
)

// envConfig is the environment-driven configuration, parsed with the env
// package so the include search path can be set without a flag.
type envConfig struct {
	IncludePath string `env:"VCL_INCLUDE_PATH"`
}

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	CompileOnly bool   `flag:"c,compile-only"`
	NoLineMarks bool   `flag:"l,no-line-marks"`
	Quiet       bool   `flag:"q,quiet"`
	Defines     string `flag:"D,define"`
	DumpPre     bool   `flag:"P,dump-pre"`

	includeDir string

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) mainer.ExitCode
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	if len(c.args) < 2 {
		return fmt.Errorf("%s: a source file must be provided", cmdName)
	}
	return nil
}

// defines splits the -D value into name/value pairs.
func (c *Cmd) defines() map[string]string {
	m := make(map[string]string)
	if c.Defines == "" {
		return m
	}
	for _, d := range strings.Split(c.Defines, ",") {
		name, value, _ := strings.Cut(d, "=")
		if name = strings.TrimSpace(name); name != "" {
			m[name] = value
		}
	}
	return m
}

// sourcePath applies the default extension when the file argument has
// none.
func sourcePath(arg string) string {
	if filepath.Ext(arg) == "" {
		return arg + ".vcl"
	}
	return arg
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid environment: %s\n", err)
		return mainer.InvalidArgs
	}
	c.includeDir = cfg.IncludePath
	if c.includeDir == "" {
		if exe, err := os.Executable(); err == nil {
			c.includeDir = filepath.Dir(exe)
		}
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	return c.cmdFn(ctx, stdio, c.args[1:])
}

// valid commands take a context, a mainer.Stdio and the trailing
// arguments, and return the process exit code.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) mainer.ExitCode {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) mainer.ExitCode)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Name() != "ExitCode" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) mainer.ExitCode)
	}
	return cmds
}
