package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dsvmender/internal/config"
	"github.com/JonMunkholm/dsvmender/internal/core"
	"github.com/JonMunkholm/dsvmender/internal/logging"
	"github.com/JonMunkholm/dsvmender/internal/profile"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	profilesFile string
	logLevel     string
	logFormat    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dsvmend",
		Short: "Repair rows of delimiter-separated files",
		Long: `dsvmend repairs rows of delimiter-separated files whose field count is
wrong because a delimiter appeared inside a value or a field went missing.

Each file family is described by a profile: its delimiter, column count and
the rules a correct row satisfies. Run "dsvmend profiles" to list them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupWriter(os.Stderr, opts.logLevel, opts.logFormat)
			return registerProfiles(opts.profilesFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.profilesFile, "profiles", os.Getenv("PROFILES_FILE"), "YAML profile file loaded on top of the built-in profiles")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newRepairCmd(),
		newMendCmd(),
		newOptimizeCmd(),
		newProfilesCmd(),
	)
	return cmd
}

// registerProfiles replaces the registry with the built-in profiles plus
// those in path.
func registerProfiles(path string) error {
	core.Clear()

	builtin, err := profile.Default()
	if err != nil {
		return err
	}
	if err := core.RegisterAll(builtin, false); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	custom, err := profile.Load(path)
	if err != nil {
		return err
	}
	slog.Debug("loaded profile file", "path", path, "profiles", len(custom))
	return core.RegisterAll(custom, true)
}

// maxLocalRows bounds mend input and --fit samples. Local runs are not
// shared, so the limit is far above the server's.
const maxLocalRows = 100000

// newService returns a service for the synchronous commands. It has no
// ledger and never runs background jobs.
func newService() *core.Service {
	return core.NewService(nil, config.RepairConfig{
		MaxSyncRows:       maxLocalRows,
		MaxDepth:          20,
		OptimizeThreshold: -1,
	})
}
