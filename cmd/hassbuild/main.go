package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/asadpanda/insteon-mqtt/pkg/config"
	"github.com/asadpanda/insteon-mqtt/pkg/engine"
	"github.com/asadpanda/insteon-mqtt/pkg/invocation"
	"github.com/asadpanda/insteon-mqtt/pkg/logger"
	"github.com/asadpanda/insteon-mqtt/pkg/util"
)

var BuildVersion string // Will be set dynamically at build time.
var appName string = "hassbuild"

func init() {
	if BuildVersion == "" {
		BuildVersion = "development" // Fallback if not set during build
	}
}

func newCommand(exitCode *int) *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   appName + " [flags] [-- builder-args...]",
		Short: "Builds the insteon-mqtt Home Assistant add-on with the official builder image.",
		Long: `Runs the Home Assistant add-on builder container against a git repository.

The host Docker credentials and control socket are mounted into the builder,
which runs privileged and builds every architecture (--all). The builder's
exit code is returned unchanged.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(flags.Verbose, flags.NoColor)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// If version flag is provided, show the version and exit.
			if flags.PrintVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", appName, BuildVersion)
				return nil
			}

			builderArgs, err := argsAfterDash(cmd, args)
			if err != nil {
				*exitCode = 1
				return err
			}

			code, err := run(cmd.Context(), cmd, &flags, builderArgs)
			*exitCode = code
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", "Path to an optional YAML configuration file")

	cmd.Flags().StringVar(&flags.Image, "image", config.DefaultImage, "Builder image, may use {{ .arch }}, {{ .repository }} and {{ .branch }}")
	cmd.Flags().StringVar(&flags.Arch, "arch", config.DefaultArch, "Architecture used to template the builder image")
	cmd.Flags().StringVarP(&flags.Repository, "repository", "r", config.DefaultRepository, "Git repository the builder fetches")
	cmd.Flags().StringVarP(&flags.Branch, "branch", "b", config.DefaultBranch, "Branch of the repository to build")
	cmd.Flags().BoolVar(&flags.All, "all", true, "Build all architectures")
	cmd.Flags().BoolVar(&flags.Privileged, "privileged", true, "Run the builder in privileged mode")
	cmd.Flags().BoolVar(&flags.Remove, "rm", true, "Remove the builder container when it exits")
	cmd.Flags().StringVar(&flags.Credentials, "credentials", config.DefaultCredentials, "Host Docker credentials directory")
	cmd.Flags().StringVar(&flags.Socket, "socket", config.DefaultSocket, "Host Docker control socket, mounted read-only")
	cmd.Flags().StringVar(&flags.Engine, "engine", config.DefaultEngine, "How to start the builder: cli or api")
	cmd.Flags().StringVar(&flags.FromCheckout, "from-checkout", "", "Take repository and branch from a local git checkout (default path .)")
	cmd.Flags().Lookup("from-checkout").NoOptDefVal = "."
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Print the docker command but don't execute it")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "Disable color output")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Increase verbosity of output")
	cmd.Flags().BoolVarP(&flags.PrintVersion, "version", "V", false, "Display the application version and exit")

	return cmd
}

// argsAfterDash returns the builder arguments. Positional arguments are only
// accepted after "--", so "--from-checkout <path>" cannot leak a path into them.
func argsAfterDash(cmd *cobra.Command, args []string) ([]string, error) {
	dash := cmd.ArgsLenAtDash()
	if dash == -1 {
		dash = len(args)
	}
	if dash > 0 {
		return nil, fmt.Errorf("unexpected argument %q: pass builder arguments after \"--\", and use --from-checkout=<path> to name a checkout", args[0])
	}
	return args[dash:], nil
}

func run(ctx context.Context, cmd *cobra.Command, flags *config.Flags, args []string) (int, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		log.Info().Str("config", flags.ConfigFile).Msg("Loading")
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return 1, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("from-checkout") {
		origin, branch, err := invocation.FromCheckout(flags.FromCheckout)
		if err != nil {
			return 1, fmt.Errorf("reading checkout %s: %w", flags.FromCheckout, err)
		}
		cfg.Repository = origin
		cfg.Branch = branch
	}

	if err := config.Apply(cfg, flags, cmd.Flags().Changed); err != nil {
		return 1, err
	}

	inv, err := invocation.From(cfg, args)
	if err != nil {
		return 1, err
	}
	log.Debug().Interface("invocation", inv).Str("engine", cfg.Engine).Msg("Resolved")

	if flags.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), engine.NewCLI("docker").Command(inv).String())
		return 0, nil
	}

	if err := inv.Preflight(); err != nil {
		return 1, err
	}

	eng, err := engine.New(cfg.Engine, inv)
	if err != nil {
		return 1, err
	}
	defer func() {
		util.WarnOnError(eng.Close(), "Closing engine")
	}()

	log.Info().Str("repository", inv.Repository).Str("branch", inv.Branch).Msg("Building")
	return eng.Run(ctx, inv)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout io.Writer) (int, error) {
	code := 0
	cmd := newCommand(&code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if code == 0 {
			code = 1
		}
		return code, err
	}
	return code, nil
}

func main() {
	logger.Init(false, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := execute(ctx, os.Args[1:], os.Stdout)
	stop()

	util.ExitOnError(err, code, "Build failed")
	os.Exit(code)
}
