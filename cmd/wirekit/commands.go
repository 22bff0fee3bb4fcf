package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/pflag"

	"github.com/kbukum/wirekit/config"
	"github.com/kbukum/wirekit/graph"
	"github.com/kbukum/wirekit/logger"
	"github.com/kbukum/wirekit/plan"
	"github.com/kbukum/wirekit/server"
	"github.com/kbukum/wirekit/version"
)

const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
	flagJSON    = "json"
)

// errFailed marks a command that already reported its problems.
var errFailed = stderrors.New("failed")

type command struct {
	name    string
	summary string
	// tree commands load config and build an engine before running.
	tree     bool
	flags    func(fs *pflag.FlagSet) []config.FlagBinding
	run      func(ctx context.Context, a *app, fs *pflag.FlagSet, out io.Writer) error
	runPlain func(fs *pflag.FlagSet, out io.Writer) error
}

var commands = []command{
	{name: "scan", summary: "scan the tree and report skipped units", tree: true, run: runScan},
	{name: "resolve", summary: "print the construction plan for a root type", tree: true, flags: rootFlags, run: runResolve},
	{name: "check", summary: "validate the whole graph", tree: true, run: runCheck},
	{name: "generate", summary: "write the injector for the configured root", tree: true, flags: generateFlags, run: runGenerate},
	{name: "serve", summary: "run the inspection HTTP API", tree: true, flags: serveFlags, run: runServe},
	{name: "version", summary: "print build information", runPlain: runVersion},
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "wirekit: unknown command %q\n\n", args[0])
		usage(stderr)
		return 1
	}

	fs := pflag.NewFlagSet("wirekit "+cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Bool(flagJSON, false, "print machine-readable JSON")
	var bindings []config.FlagBinding
	if cmd.tree {
		bindings = commonFlags(fs)
	}
	if cmd.flags != nil {
		bindings = append(bindings, cmd.flags(fs)...)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	var err error
	if cmd.tree {
		err = runTree(ctx, cmd, fs, bindings, stdout)
	} else {
		err = cmd.runPlain(fs, stdout)
	}
	if err != nil {
		if !stderrors.Is(err, errFailed) {
			fmt.Fprintf(stderr, "wirekit %s: %v\n", cmd.name, err)
		}
		return 1
	}
	return 0
}

func runTree(ctx context.Context, cmd command, fs *pflag.FlagSet, bindings []config.FlagBinding, out io.Writer) error {
	a, err := newApp(ctx, fs, bindings)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := cmd.run(ctx, a, fs, out); err != nil {
		if !stderrors.Is(err, errFailed) {
			a.log.Error("command failed", logger.ErrorFields(cmd.name, err))
		}
		return err
	}
	return nil
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: wirekit <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, `run "wirekit <command> --help" for its flags`)
}

// commonFlags registers the flags every tree command accepts.
func commonFlags(fs *pflag.FlagSet) []config.FlagBinding {
	fs.String(flagConfig, "", "config file (default: wirekit.yaml in the working directory)")
	fs.String(flagEnvFile, "", "env file loaded before reading WIREKIT_* variables")
	fs.String("root", "", "directory to scan")
	fs.String("cache", "", `fingerprint cache file, "off" to disable`)
	fs.Int("workers", 0, "parallel unit parsers (0 = one per CPU)")
	fs.StringSlice("exclude", nil, "globs of units or directories to skip")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	fs.String("log-format", "", "log format (console, json)")
	return []config.FlagBinding{
		{Flag: "root", Key: "root"},
		{Flag: "cache", Key: "cache"},
		{Flag: "workers", Key: "workers"},
		{Flag: "exclude", Key: "exclude"},
		{Flag: "log-level", Key: "logging.level"},
		{Flag: "log-format", Key: "logging.format"},
	}
}

func rootFlags(fs *pflag.FlagSet) []config.FlagBinding {
	fs.StringP("type", "t", "", "root type, e.g. app.Server")
	fs.StringP("qualifier", "q", "", "root qualifier")
	return []config.FlagBinding{
		{Flag: "type", Key: "generate.type"},
		{Flag: "qualifier", Key: "generate.qualifier"},
	}
}

func generateFlags(fs *pflag.FlagSet) []config.FlagBinding {
	bindings := rootFlags(fs)
	fs.String("module", "", "import path of the scan root")
	fs.String("package", "", "package name of the generated file")
	fs.String("dir", "", "directory of the generated file, relative to the root")
	fs.String("func", "", "injector function name")
	fs.StringP("output", "o", "", `generated file, relative to the root ("-" for stdout)`)
	return append(bindings,
		config.FlagBinding{Flag: "module", Key: "generate.module"},
		config.FlagBinding{Flag: "package", Key: "generate.package"},
		config.FlagBinding{Flag: "dir", Key: "generate.dir"},
		config.FlagBinding{Flag: "func", Key: "generate.func"},
		config.FlagBinding{Flag: "output", Key: "generate.output"},
	)
}

func serveFlags(fs *pflag.FlagSet) []config.FlagBinding {
	fs.String("host", "", "listen host")
	fs.Int("port", 0, "listen port")
	return []config.FlagBinding{
		{Flag: "host", Key: "server.host"},
		{Flag: "port", Key: "server.port"},
	}
}

func wantJSON(fs *pflag.FlagSet) bool {
	v, _ := fs.GetBool(flagJSON)
	return v
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runScan(ctx context.Context, a *app, fs *pflag.FlagSet, out io.Writer) error {
	snap, err := a.engine.Scan(ctx)
	if err != nil {
		return err
	}
	if wantJSON(fs) {
		return writeJSON(out, snap)
	}
	fmt.Fprintf(out, "run %s: %d units (%d parsed, %d reused, %d skipped), %d providers\n",
		snap.RunID, snap.Stats.Seen, snap.Stats.Parsed, snap.Stats.Reused, snap.Stats.Skipped, snap.Graph.Len())
	for _, s := range snap.Skipped {
		fmt.Fprintf(out, "skipped %s: %s\n", s.Unit, s.Warning)
	}
	if snap.CacheWarning != "" {
		fmt.Fprintf(out, "cache: %s\n", snap.CacheWarning)
	}
	return nil
}

func request(a *app) plan.Request {
	return plan.Request{Type: a.cfg.Generate.Type, Qualifier: a.cfg.Generate.Qualifier}
}

func runResolve(ctx context.Context, a *app, fs *pflag.FlagSet, out io.Writer) error {
	if _, err := a.engine.Scan(ctx); err != nil {
		return err
	}
	p, err := a.engine.Resolve(ctx, request(a))
	if err != nil {
		return reportFailures(out, fs, err)
	}
	if wantJSON(fs) {
		return writeJSON(out, p)
	}
	fmt.Fprint(out, p.String())
	return nil
}

func runCheck(ctx context.Context, a *app, fs *pflag.FlagSet, out io.Writer) error {
	if _, err := a.engine.Scan(ctx); err != nil {
		return err
	}
	report, err := a.engine.Check(ctx)
	if report == nil {
		return err
	}
	if wantJSON(fs) {
		if jerr := writeJSON(out, report); jerr != nil {
			return jerr
		}
	} else {
		for _, s := range report.Skipped {
			fmt.Fprintf(out, "skipped %s: %s\n", s.Unit, s.Warning)
		}
		for _, f := range report.Failures {
			fmt.Fprintf(out, "%s: %s\n", f.Kind, f.Error())
		}
		fmt.Fprintf(out, "%d providers, %d bindings, %d failures\n",
			report.Providers, report.Bindings, len(report.Failures))
	}
	if !report.OK() {
		return errFailed
	}
	return nil
}

func runGenerate(ctx context.Context, a *app, fs *pflag.FlagSet, out io.Writer) error {
	if err := a.cfg.ValidateGenerate(); err != nil {
		return err
	}
	if _, err := a.engine.Scan(ctx); err != nil {
		return err
	}
	src, p, err := a.engine.Generate(ctx, request(a), a.cfg.Generate.Options)
	if err != nil {
		return reportFailures(out, fs, err)
	}
	if a.cfg.Generate.Output == "-" {
		_, err := out.Write(src)
		return err
	}

	path := a.cfg.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return err
	}
	a.log.Info("injector written", logger.Fields("path", path, "steps", len(p.Steps)))
	fmt.Fprintf(out, "wrote %s (%d steps)\n", path, len(p.Steps))
	return nil
}

func runServe(ctx context.Context, a *app, _ *pflag.FlagSet, _ io.Writer) error {
	if _, err := a.engine.Scan(ctx); err != nil {
		return err
	}
	return server.New(a.cfg.Server, a.engine, logger.Get(logger.ComponentServer)).Run(ctx)
}

func runVersion(fs *pflag.FlagSet, out io.Writer) error {
	info := version.Get()
	if wantJSON(fs) {
		return writeJSON(out, info)
	}
	fmt.Fprintln(out, info.String())
	return nil
}

// reportFailures prints resolution failures grouped by kind and swallows
// them into errFailed. Other errors pass through.
func reportFailures(out io.Writer, fs *pflag.FlagSet, err error) error {
	var failures graph.Failures
	if !stderrors.As(err, &failures) {
		return err
	}
	if wantJSON(fs) {
		if jerr := writeJSON(out, failures); jerr != nil {
			return jerr
		}
		return errFailed
	}

	byKind := map[graph.Kind][]string{}
	for _, f := range failures {
		byKind[f.Kind] = append(byKind[f.Kind], f.Error())
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		for _, msg := range byKind[graph.Kind(k)] {
			fmt.Fprintf(out, "%s: %s\n", k, msg)
		}
	}
	fmt.Fprintf(out, "%d failures\n", len(failures))
	return errFailed
}
