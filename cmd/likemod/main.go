package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"reflect"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/leodido/likemod"
	"github.com/leodido/likemod/internal/config"
	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

// errCheckFailed reports an unsatisfied requirement already printed by check.
var errCheckFailed = errors.New("requirements not satisfied")

// Kernel entry points used by load and unload. Tests replace them.
var (
	checkRequirements = likemod.Check
	readModInfo       = likemod.ReadModInfo
	loadModule        = likemod.Loader.LoadPath
	unloadModule      = likemod.Unloader.Unload
	unloadAsync       = runUnloadTask
)

// runUnloadTask drives an unload task to completion and reports how many
// attempts it made.
func runUnloadTask(ctx context.Context, u likemod.Unloader, name string, interval time.Duration) (int, error) {
	task, err := u.NewUnloadTask(name, interval)
	if err != nil {
		return 0, err
	}
	err = task.Run(ctx)
	return task.Attempts(), err
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	level      logLevel
	cfg        config.Config
	logger     *slog.Logger
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{
		cfg:    config.Default(),
		level:  levelInfo,
		logger: slog.New(slog.DiscardHandler),
		errOut: errOut,
	}

	root := &cobra.Command{
		Use:   "likemod",
		Short: "Load and unload Linux kernel modules",
		Long: `likemod inserts kernel modules with finit_module(2) and removes them
with delete_module(2).

Busy modules can be removed asynchronously: the unload is retried at a fixed
interval until the module is released, an error occurs or the timeout expires.
Use probe and check to verify the kernel and the process can manage modules.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default "+config.DefaultPath+" if present)")
	pf.Var(
		enumflag.New(&a.level, "level", levelIdentifierMap, enumflag.EnumCaseInsensitive),
		"log-level",
		"Log level: debug, info, warn, error",
	)

	root.AddCommand(loadCmd(a))
	root.AddCommand(unloadCmd(a))
	root.AddCommand(inspectCmd())
	root.AddCommand(modinfoCmd())
	root.AddCommand(probeCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(versionCmd())

	return root
}

// setup loads the configuration and builds the logger.
// Flags given on the command line win over configured values.
func (a *app) setup(c *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if !c.Flags().Changed("log-level") {
		level, err := parseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		a.level = level
	}

	logger := log.NewWithOptions(a.errOut, log.Options{
		Prefix: "likemod",
		Level:  a.level.charm(),
	})
	a.logger = slog.New(logger)
	return nil
}

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

var levelIdentifierMap = map[logLevel][]string{
	levelDebug: {"debug"},
	levelInfo:  {"info"},
	levelWarn:  {"warn", "warning"},
	levelError: {"error"},
}

func parseLogLevel(name string) (logLevel, error) {
	var level logLevel
	if err := enumflag.New(&level, "level", levelIdentifierMap, enumflag.EnumCaseInsensitive).Set(name); err != nil {
		return levelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func (l logLevel) charm() log.Level {
	switch l {
	case levelDebug:
		return log.DebugLevel
	case levelWarn:
		return log.WarnLevel
	case levelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// flagOr returns the flag value when it was given, the configured value otherwise.
func flagOr[T any](c *cobra.Command, name string, flagValue, configured T) T {
	if c.Flags().Changed(name) {
		return flagValue
	}
	return configured
}

// LoadOptions defines flags for the load subcommand.
type LoadOptions struct {
	Params           moduleParams `flag:"param" flagshort:"p" flagdescr:"Module parameter as name=value (repeatable)" flagcustom:"true"`
	IgnoreModversion bool         `flag:"ignore-modversion" flagdescr:"Ignore symbol version hashes"`
	IgnoreVermagic   bool         `flag:"ignore-vermagic" flagdescr:"Ignore the kernel version magic"`
	Check            bool         `flag:"check" flagdescr:"Verify kernel readiness and declared parameters before loading"`
}

func (o *LoadOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *LoadOptions) DefineParams(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*moduleParams)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *LoadOptions) DecodeParams(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	// Values set on the command line come back in their String form;
	// keep what Set already parsed.
	if len(o.Params) > 0 && s == o.Params.String() {
		return o.Params, nil
	}

	return parseModuleParams(s)
}

func loadCmd(a *app) *cobra.Command {
	opts := &LoadOptions{}

	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Insert a module image into the running kernel",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			path := args[0]
			params := likemod.Params(opts.Params)
			ignoreModversion := flagOr(c, "ignore-modversion", opts.IgnoreModversion, a.cfg.Load.IgnoreModversion)
			ignoreVermagic := flagOr(c, "ignore-vermagic", opts.IgnoreVermagic, a.cfg.Load.IgnoreVermagic)

			name := likemod.NameFromPath(path)
			mi, err := readModInfo(path)
			if err != nil {
				a.logger.Warn("cannot read module metadata", "file", path, "error", err)
			} else {
				name = mi.Name
			}

			if opts.Check {
				reqs := likemod.FeatureGroup{likemod.LoadRequirements}
				if mi != nil && !ignoreVermagic {
					reqs = append(reqs, likemod.RequireKernelRelease(mi.Release()))
				}
				if err := checkRequirements(reqs); err != nil {
					return err
				}
			}
			if mi != nil {
				if err := mi.Validate(params); err != nil {
					if opts.Check {
						return err
					}
					a.logger.Warn("kernel will ignore parameters", "error", err)
				}
			}

			loader := likemod.NewLoader().
				IgnoreModversion(ignoreModversion).
				IgnoreVermagic(ignoreVermagic).
				WithParams(params).
				WithLogger(a.logger)

			if err := loadModule(loader, path); err != nil {
				if errors.Is(err, syscall.EEXIST) {
					return fmt.Errorf("module %s is already loaded: %w", name, err)
				}
				return err
			}
			a.logger.Info("module loaded", "module", name, "params", params.String())
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// UnloadOptions defines flags for the unload subcommand.
type UnloadOptions struct {
	Force    bool `flag:"force" flagshort:"f" flagdescr:"Remove the module even if it is in use (taints the kernel)"`
	Blocking bool `flag:"blocking" flagdescr:"Pass O_NONBLOCK to delete_module (single attempt only)"`
	Async    bool `flag:"async" flagshort:"a" flagdescr:"Retry while the module is busy, until --timeout"`
}

func (o *UnloadOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func unloadCmd(a *app) *cobra.Command {
	opts := &UnloadOptions{}
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "unload <name>",
		Short: "Remove a module from the running kernel",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			name := args[0]
			force := flagOr(c, "force", opts.Force, a.cfg.Unload.Force)
			if force {
				a.logger.Warn("forced removal taints the kernel", "module", name)
			}
			u := likemod.NewUnloader().Forced(force).WithLogger(a.logger)

			if !opts.Async {
				err := unloadModule(u, name, opts.Blocking)
				if likemod.IsBusy(err) {
					return fmt.Errorf("module %s is in use, retry with --async: %w", name, err)
				}
				if err != nil {
					return err
				}
				a.logger.Info("module unloaded", "module", name)
				return nil
			}

			interval = flagOr(c, "interval", interval, a.cfg.Unload.Interval)
			timeout = flagOr(c, "timeout", timeout, a.cfg.Unload.Timeout)
			if timeout < 0 {
				return fmt.Errorf("invalid --timeout %s: must not be negative", timeout)
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			attempts, err := unloadAsync(ctx, u, name, interval)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("module %s still in use after %s (%d attempts)", name, timeout, attempts)
				}
				return err
			}
			a.logger.Info("module unloaded", "module", name, "attempts", attempts)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	cmd.Flags().DurationVar(&interval, "interval", config.Default().Unload.Interval, "Retry interval for --async")
	cmd.Flags().DurationVar(&timeout, "timeout", config.Default().Unload.Timeout, "Give up on --async after this long (0 waits forever)")
	return cmd
}

// InspectOptions defines flags for the inspect subcommand.
type InspectOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *InspectOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func inspectCmd() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show the state of a resident module",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			mi, err := likemod.Inspect(args[0])
			if err != nil {
				return err
			}

			if opts.JSON {
				return printJSON(c.OutOrStdout(), mi)
			}
			writeModuleInfo(c.OutOrStdout(), mi)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// ModinfoOptions defines flags for the modinfo subcommand.
type ModinfoOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ModinfoOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func modinfoCmd() *cobra.Command {
	opts := &ModinfoOptions{}

	cmd := &cobra.Command{
		Use:   "modinfo <file>",
		Short: "Show the metadata embedded in a module image",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			mi, err := likemod.ReadModInfo(args[0])
			if err != nil {
				return err
			}

			if opts.JSON {
				return printJSON(c.OutOrStdout(), mi)
			}
			writeModInfo(c.OutOrStdout(), mi)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// ProbeOptions defines flags for the probe subcommand.
type ProbeOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ProbeOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func probeCmd() *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe module management support and display results",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			sf, err := likemod.ProbeNoCache()
			if err != nil {
				return err
			}

			if opts.JSON {
				return printJSON(c.OutOrStdout(), sf)
			}

			fmt.Fprint(c.OutOrStdout(), sf)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	Require featureRequirements `flag:"require" flagshort:"r" flagdescr:"Required features (see available features above)" flagrequired:"true" flagcustom:"true"`
	JSON    bool                `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *CheckOptions) DefineRequire(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureRequirements)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *CheckOptions) DecodeRequire(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}

	return parseFeatureRequirements(s)
}

func checkCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that module management requirements are met",
		Long:  checkLongDescription(),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			if len(opts.Require) == 0 {
				return fmt.Errorf("no features specified")
			}

			requirements := make([]likemod.Requirement, 0, len(opts.Require))
			for _, f := range opts.Require {
				requirements = append(requirements, f)
			}

			err := likemod.Check(requirements...)
			if err != nil {
				var fe *likemod.FeatureError
				if errors.As(err, &fe) {
					if opts.JSON {
						if err := printJSON(c.OutOrStdout(), map[string]any{
							"ok":      false,
							"feature": fe.Feature,
							"reason":  fe.Reason,
						}); err != nil {
							return err
						}
						return errCheckFailed
					}
					fmt.Fprintf(c.ErrOrStderr(), "FAIL: %s: %s\n", fe.Feature, fe.Reason)
					return errCheckFailed
				}
				return err
			}

			if opts.JSON {
				return printJSON(c.OutOrStdout(), map[string]any{"ok": true})
			}
			fmt.Fprintln(c.OutOrStdout(), "OK: all requirements satisfied")
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show kernel and tool version",
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			if version != "" {
				fmt.Fprintf(out, "likemod %s", version)
				if commit != "" {
					fmt.Fprintf(out, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(out, " built %s", date)
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, "likemod (dev)")
			}

			sf, err := likemod.ProbeWith()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Kernel: %s\n", sf.KernelVersion)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeModuleInfo(w io.Writer, mi *likemod.ModuleInfo) {
	fmt.Fprintf(w, "Module:   %s\n", mi.Name)
	fmt.Fprintf(w, "State:    %s\n", mi.State)
	if mi.Builtin() {
		return
	}
	fmt.Fprintf(w, "Refcount: %d\n", mi.RefCount)
	holders := "(none)"
	if len(mi.Holders) > 0 {
		holders = strings.Join(mi.Holders, ", ")
	}
	fmt.Fprintf(w, "Holders:  %s\n", holders)
	if mi.Version != "" {
		fmt.Fprintf(w, "Version:  %s\n", mi.Version)
	}
	fmt.Fprintf(w, "Size:     %d\n", mi.CoreSize)
	if mi.Taint != "" {
		fmt.Fprintf(w, "Taint:    %s\n", mi.Taint)
	}
	btf := "no"
	if mi.BTF {
		btf = "yes"
	}
	fmt.Fprintf(w, "BTF:      %s\n", btf)
	if len(mi.Params) > 0 {
		fmt.Fprintln(w, "Parameters:")
		for _, name := range slices.Sorted(maps.Keys(mi.Params)) {
			fmt.Fprintf(w, "  %s=%s\n", name, mi.Params[name])
		}
	}
}

func writeModInfo(w io.Writer, mi *likemod.ModInfo) {
	fields := []struct{ key, value string }{
		{"name", mi.Name},
		{"version", mi.Version},
		{"license", mi.License},
		{"description", mi.Description},
		{"depends", strings.Join(mi.Depends, ",")},
		{"vermagic", mi.Vermagic},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(w, "%-12s %s\n", f.key+":", f.value)
		}
	}
	for _, p := range mi.Params {
		if p.Type != "" {
			fmt.Fprintf(w, "%-12s %s (%s): %s\n", "parm:", p.Name, p.Type, p.Description)
		} else {
			fmt.Fprintf(w, "%-12s %s: %s\n", "parm:", p.Name, p.Description)
		}
	}
}
