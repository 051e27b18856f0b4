package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"iotz/internal/history"
	"iotz/internal/toolchain"
	"iotz/internal/watch"
)

// Create scaffolds a new project for the named toolchain under path.
func (d *Dispatcher) Create(name, arg, path string) error {
	canonical, ok := d.registry.Canonical(name, true)
	if !ok {
		return fmt.Errorf("%w %q", toolchain.ErrUnknownToolchain, name)
	}
	plugin := d.registry.Lookup(canonical).Plugin
	scaffolder, ok := plugin.(toolchain.Scaffolder)
	if !ok {
		return fmt.Errorf("toolchain %s cannot create projects", canonical)
	}

	if err := scaffolder.CreateProject(path, arg); err != nil {
		return fmt.Errorf("create %s project: %w", canonical, err)
	}
	d.console.Success("project is created (" + canonical + ")")
	return nil
}

// Watch compiles the project once and again after every burst of changes
// until ctx is cancelled. Failed compiles are reported and do not stop
// the loop.
func (d *Dispatcher) Watch(ctx context.Context, arg, path string) error {
	w, err := watch.New(path, watch.Config{
		Debounce: d.settings.Watch.Debounce,
		Ignore:   append([]string{d.settings.BuildScript}, d.settings.Watch.Ignore...),
		Logger:   d.logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	compile := func(ctx context.Context) error {
		err := d.Dispatch(ctx, Args{Command: toolchain.CommandCompile, Arg: arg}, path)
		var exitErr *ExitCodeError
		switch {
		case err == nil:
			d.console.Success("compiled, watching for changes..")
		case errors.As(err, &exitErr):
			d.console.Warn(fmt.Sprintf("compile failed (%v), watching for changes..", err))
			err = nil
		}
		return err
	}

	if err := compile(ctx); err != nil {
		return err
	}
	return w.Run(ctx, compile)
}

// PrintHistory writes the newest limit entries (all when limit <= 0) to out.
func (d *Dispatcher) PrintHistory(out io.Writer, limit int) error {
	path, err := d.settings.History()
	if err != nil {
		return err
	}
	entries, err := history.Read(path, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tARG\tEXIT\tPATH")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.Timestamp, e.Command, e.Arg, e.ExitCode, e.Path)
	}
	return w.Flush()
}

// PrintToolchains lists the registered toolchains with the extra verbs
// each one answers to.
func (d *Dispatcher) PrintToolchains() {
	for _, p := range d.registry.Plugins() {
		var verbs string
		if a, ok := p.(toolchain.Aliaser); ok {
			verbs = strings.Join(a.Aliases(), ", ")
		}
		d.console.Info(p.Name(), verbs)
	}
}
