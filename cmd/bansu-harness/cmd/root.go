package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mtr002/bansu-harness/internal/config"
	"github.com/mtr002/bansu-harness/internal/harness"
	"github.com/mtr002/bansu-harness/internal/logger"
	"github.com/mtr002/bansu-harness/internal/metrics"
	"github.com/mtr002/bansu-harness/internal/nats"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

var (
	cfgFile string
	envFile string

	// initErr holds a configuration file error until a command runs
	initErr error

	// exitCode is set by the command that ran
	exitCode = outcome.ExitSuccess
)

var rootCmd = &cobra.Command{
	Use:   "bansu-harness",
	Short: "Run an acedrg job on a Bansu server end to end",
	Long: `bansu-harness submits one acedrg job to a Bansu server, follows its
notifications over the job WebSocket until it finishes or fails, downloads
the resulting CIF document and reports the outcome as a process exit code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSingle,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single job (the default command)",
	Args:  cobra.NoArgs,
	RunE:  runSingle,
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	logger.Init("bansu-harness")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return outcome.ExitInvalidConfig
	}
	return exitCode
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("url", "", "Bansu base URL (default http://localhost:8080)")
	pf.String("timeout", "", "watchdog for the job channel, a duration or seconds, 0 disables (default 10m)")
	pf.String("http-timeout", "", "timeout of each HTTP request (default 30s)")
	pf.String("digest", "", "artifact digest algorithm: sha256, sha512, sha3-256 or blake2b")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	pf.String("nats-url", "", "publish run outcomes to this NATS server")

	addJobFlags(rootCmd.Flags())
	addJobFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

func addJobFlags(flags *pflag.FlagSet) {
	flags.String("smiles", "", "SMILES string of the structure")
	flags.String("mmcif", "", "path to an mmCIF document of the structure")
	flags.String("ccd", "", "CCD code of the structure")
	flags.String("acedrg-args", "", "acedrg command line arguments, a JSON array or a comma separated list")
	flags.String("output", "", "write the CIF artifact to this path")
}

// initConfig loads the dotenv file and the config file into the global viper
func initConfig() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		initErr = fmt.Errorf("failed to load %s: %w", envFile, err)
		return
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		initErr = err
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			initErr = fmt.Errorf("failed to read config file: %w", err)
		}
	}
}

// bindFlags makes the flags of cmd override the environment. Flag names
// map to config keys with dashes replaced by underscores.
func bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "env-file" || f.Name == "help" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := viper.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	return bindErr
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if initErr != nil {
		return nil, initErr
	}
	if err := bindFlags(cmd); err != nil {
		return nil, err
	}
	return config.Load(viper.GetViper())
}

func runSingle(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := cfg.Request()
	if err != nil {
		return err
	}
	ep, err := cfg.Endpoint()
	if err != nil {
		return err
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	publisher, closePublisher := connectPublisher(cfg.NatsURL)
	defer closePublisher()

	runner := harness.New(harness.Options{
		Endpoint:        ep,
		HTTPClient:      &http.Client{Timeout: cfg.HTTPTimeout},
		Timeout:         cfg.Timeout,
		DigestAlgorithm: cfg.DigestAlgorithm,
		OutputPath:      cfg.OutputPath,
		Logger:          logger.Logger,
		Publisher:       publisher,
	})

	logger.WithCorrelationID(runner.CorrelationID()).Info().
		Str("endpoint", ep.String()).
		Dur("timeout", cfg.Timeout).
		Msg("Starting run")

	o := runner.Run(ctx, req)
	exitCode = outcome.Report(cmd.ErrOrStderr(), o)

	writeMetrics(cfg.MetricsFile)
	return nil
}

// connectPublisher returns a nil Publisher when no NATS server is
// configured or reachable. Publishing is best effort and never changes the
// exit code.
func connectPublisher(url string) (harness.Publisher, func()) {
	if url == "" {
		return nil, func() {}
	}
	client, err := nats.NewClient(url)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("url", url).Msg("Run outcomes will not be published")
		return nil, func() {}
	}
	logger.Logger.Info().Str("url", url).Str("subject", nats.RunOutcomeSubject).Msg("Publishing run outcomes")
	return client, client.Close
}

func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
	}
}

// commandContext is the signal-aware context shared by the subcommands
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
