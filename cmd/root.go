package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/config"
	"github.com/lupppig/dchunk/internal/logger"
)

const DCHUNK_VERSION = "0.1.0"

var (
	cfgFile       string
	LogJSON       bool
	NoColor       bool
	Verbose       bool
	AllowInsecure bool
	KeyFile       string
)

var rootCmd = &cobra.Command{
	Use:   "dchunk",
	Short: "dchunk splits data into content-defined chunks and records their digests",
	Long: `dchunk is a command-line tool for content-defined chunking with a gear rolling hash.
	Every input is cut at boundaries that depend only on its content, and each chunk is recorded as a
	digest and a length. Record streams and their manifests are stored locally or on S3, SFTP or FTP
	targets, where they can be verified against the source, analysed for redundancy, pruned and migrated.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(cfgFile); err != nil {
			return err
		}
		conf := config.GetConfig()
		if !cmd.Flags().Changed("log-json") {
			LogJSON = conf.LogJSON
		}
		if !cmd.Flags().Changed("no-color") {
			NoColor = conf.NoColor
		}
		if !cmd.Flags().Changed("allow-insecure") {
			AllowInsecure = conf.AllowInsecure
		}
		if !cmd.Flags().Changed("key-file") {
			KeyFile = conf.KeyFile
		}

		level := slog.LevelInfo
		if Verbose {
			level = slog.LevelDebug
		}
		l := logger.New(logger.Config{
			JSON:    LogJSON,
			NoColor: NoColor,
			Writer:  cmd.ErrOrStderr(),
			Level:   level,
		})

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(logger.WithContext(ctx, l))
		return nil
	},
}

func init() {
	rootCmd.Version = DCHUNK_VERSION
	rootCmd.SetVersionTemplate("dchunk version {{ .Version }}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file (default ./dchunk.yaml or ~/.dchunk/dchunk.yaml)")
	rootCmd.PersistentFlags().BoolVar(&LogJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&AllowInsecure, "allow-insecure", false, "allow plaintext protocols such as ftp://")
	rootCmd.PersistentFlags().StringVar(&KeyFile, "key-file", "", "key file for encrypted record streams")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
