// Command iotz builds per-project toolchain containers and runs build
// commands inside them.
//
// Usage:
//
//	iotz init|compile|clean|export [args]
//	iotz run <command>
//	iotz make [target]
//	iotz connect
//	iotz <toolchain-verb> [args]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"iotz/internal/builder"
	"iotz/internal/console"
	"iotz/internal/dispatch"
	"iotz/internal/engine"
	"iotz/internal/history"
	"iotz/internal/settings"
	"iotz/internal/toolchain"
	"iotz/internal/toolchain/micropython"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string) int {
	printer := console.New()

	app := cli.NewApp()
	app.Name = "iotz"
	app.Usage = "compile IoT projects inside per-project toolchain containers"
	app.UsageText = "iotz [global options] <init|compile|clean|export|run|make|connect|toolchain> [args...]"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "print diagnostic logs to stderr",
		},
		cli.StringFlag{
			Name:   "config",
			Usage:  "settings file (default ~/.iotz/config.yaml)",
			EnvVar: settings.EnvPath,
		},
		cli.StringFlag{
			Name:  "dir",
			Usage: "project directory (default current directory)",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "create",
			Usage:     "scaffold a new project",
			ArgsUsage: "<toolchain> [name]",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return fmt.Errorf("%w: create needs a toolchain name", dispatch.ErrMissingArgument)
				}
				s, err := openSession(c, printer)
				if err != nil {
					return err
				}
				defer s.Close()
				return s.d.Create(c.Args().First(), strings.Join(c.Args().Tail(), " "), s.path)
			},
		},
		{
			Name:      "watch",
			Usage:     "compile, then recompile whenever the project changes",
			ArgsUsage: "[compile args]",
			Action: func(c *cli.Context) error {
				s, err := openSession(c, printer)
				if err != nil {
					return err
				}
				defer s.Close()
				if err := s.eng.Ping(ctx); err != nil {
					return err
				}
				return s.d.Watch(ctx, strings.Join(c.Args(), " "), s.path)
			},
		},
		{
			Name:  "toolchains",
			Usage: "list the available toolchains and their commands",
			Action: func(c *cli.Context) error {
				s, err := openSession(c, printer)
				if err != nil {
					return err
				}
				defer s.Close()
				s.d.PrintToolchains()
				return nil
			},
		},
		{
			Name:  "history",
			Usage: "show recent invocations",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "n", Value: 20, Usage: "number of entries, 0 for all"},
			},
			Action: func(c *cli.Context) error {
				s, err := openSession(c, printer)
				if err != nil {
					return err
				}
				defer s.Close()
				return s.d.PrintHistory(printer.Out, c.Int("n"))
			},
		},
	}

	app.Action = func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.ShowAppHelp(c)
		}
		s, err := openSession(c, printer)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.eng.Ping(ctx); err != nil {
			return err
		}

		cmd := dispatch.Args{
			Command: c.Args().First(),
			Arg:     strings.Join(c.Args().Tail(), " "),
		}
		return s.d.Dispatch(ctx, cmd, s.path)
	}

	if err := app.Run(args); err != nil {
		report(printer, err)
		return dispatch.ExitCode(err)
	}
	return 0
}

// session is the wiring for one invocation.
type session struct {
	d       *dispatch.Dispatcher
	eng     *engine.DockerEngine
	history *history.Recorder
	path    string
}

func openSession(c *cli.Context, printer *console.Printer) (*session, error) {
	logger := log.New(io.Discard, "[iotz] ", log.LstdFlags|log.Lmsgprefix)
	if c.GlobalBool("verbose") {
		logger.SetOutput(os.Stderr)
	}

	cfgPath := c.GlobalString("config")
	if cfgPath == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgPath = p
	}
	s, err := settings.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	path := c.GlobalString("dir")
	if path == "" {
		if path, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
	}
	if path, err = filepath.Abs(path); err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	eng, err := engine.NewDockerEngineFromEnv(logger)
	if err != nil {
		return nil, err
	}

	rec, err := openHistory(s, logger)
	if err != nil {
		eng.Close()
		return nil, err
	}

	d := dispatch.New(dispatch.Config{
		Engine:   eng,
		Registry: toolchain.NewRegistry(micropython.New()),
		Settings: s,
		History:  rec,
		Console:  printer,
		Logger:   logger,
	})
	return &session{d: d, eng: eng, history: rec, path: path}, nil
}

// openHistory falls back to a disabled recorder when the log cannot be opened.
func openHistory(s *settings.Settings, logger *log.Logger) (*history.Recorder, error) {
	path, err := s.History()
	if err != nil {
		return nil, err
	}
	rec, err := history.Open(path)
	if err != nil {
		logger.Printf("history disabled: %v", err)
		return history.Open("")
	}
	return rec, nil
}

func (s *session) Close() {
	s.history.Close()
	s.eng.Close()
}

// report prints err for the user. Tool failures have already shown their
// own output and only set the exit code.
func report(printer *console.Printer, err error) {
	if _, ok := err.(*dispatch.ExitCodeError); ok {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(printer.Err)
		return
	}

	hint := ""
	switch {
	case errors.Is(err, builder.ErrNotInitialized):
		hint = "try 'iotz init' ?"
	case errors.Is(err, dispatch.ErrUnknownCommand):
		hint = "try 'iotz help'"
	}
	printer.Error(err.Error(), hint)
}
