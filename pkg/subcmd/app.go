// Package subcmd implements a minimal sub-command layer over the
// standard flag package: an App holds named Commands, each Command
// declares its Flags, and Parse dispatches to the right FlagSet.
package subcmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// App is a command line application with sub-commands.
type App struct {
	Name     string
	Usage    string
	Commands []*Command

	Writer        io.Writer
	ErrorHandling flag.ErrorHandling

	cmdName string
}

// Command is a sub-command of the application.
// Names is a comma separated list of aliases; the first one is the
// canonical name returned by App.CommandName.
type Command struct {
	Names string
	Usage string
	Flags []*Flag
}

// Flag binds a flag.Value to a comma separated list of flag names.
type Flag struct {
	Value flag.Value
	Names string
}

func (c *Command) name() string {
	return strings.Split(c.Names, ",")[0]
}

// Output returns the destination for usage and error messages.
func (a *App) Output() io.Writer {
	if a.Writer == nil {
		return os.Stderr
	}
	return a.Writer
}

// CommandName returns the canonical name of the parsed command,
// or the empty string if Parse was not called or failed.
func (a *App) CommandName() string {
	return a.cmdName
}

func (a *App) findCommandByName(name string) *Command {
	for _, cmd := range a.Commands {
		for _, n := range strings.Split(cmd.Names, ",") {
			if n == name {
				return cmd
			}
		}
	}
	return nil
}

// usageFailf prints a formatted error and the app usage message and
// returns the error, honouring the app ErrorHandling.
func (a *App) usageFailf(format string, v ...interface{}) error {
	out := a.Output()
	err := fmt.Errorf(format, v...)
	fmt.Fprintln(out, err)
	fmt.Fprintln(out, a.Usage)

	switch a.ErrorHandling {
	case flag.PanicOnError:
		panic(err)
	case flag.ExitOnError:
		os.Exit(2)
	}

	return err
}

// Parse parses the argument list, which should not include the program
// name. The first argument selects the command; the rest are parsed
// against the command's flags. On success the bound flag values are
// populated as a side effect.
func (a *App) Parse(arguments []string) error {
	a.cmdName = ""

	if len(arguments) == 0 {
		return a.usageFailf("no arguments")
	}
	out := a.Output()

	initFlagSet := func(name, usage string) *flag.FlagSet {
		fs := flag.NewFlagSet(name, a.ErrorHandling)
		fs.SetOutput(out)
		fs.Usage = func() {
			fmt.Fprintln(out, usage)
		}
		return fs
	}

	cmdName := arguments[0]
	if strings.HasPrefix(cmdName, "-") {
		fs := initFlagSet("", a.Usage)
		return fs.Parse(arguments)
	}

	cmd := a.findCommandByName(cmdName)
	if cmd == nil {
		return a.usageFailf("unknown command %q", cmdName)
	}

	fs := initFlagSet(cmdName, cmd.Usage)

	for _, f := range cmd.Flags {
		for _, name := range strings.Split(f.Names, ",") {
			fs.Var(f.Value, name, "")
		}
	}

	if err := fs.Parse(arguments[1:]); err != nil {
		return err
	}
	a.cmdName = cmd.name()
	return nil
}
