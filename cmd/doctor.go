package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/config"
	"github.com/lupppig/dchunk/internal/digest"
	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration and every configured target",
	Long: `Validate the chunking parameters against their bounds, show the derived cut-point
parameters, and check read/write access to every target named in the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.FromContext(cmd.Context())
		out := cmd.OutOrStdout()
		l.Info("dchunk doctor - Environment Check", "os", runtime.GOOS, "arch", runtime.GOARCH)

		cfg := config.GetConfig()
		ch := cfg.Chunking
		lim := cdc.DefaultLimits()

		fmt.Fprintln(out, "[Chunking]")
		allOk := true
		if err := ch.Validate(); err != nil {
			fmt.Fprintf(out, "  [ ] parameters : %v\n", err)
			allOk = false
		} else {
			c := ch.Config()
			fmt.Fprintf(out, "  [x] parameters : %s\n", c)
			fmt.Fprintf(out, "  [x] bits       : %d (strict until %d bytes)\n", c.Bits(), c.CenterSize())
			fmt.Fprintf(out, "  [x] buffer     : %d bytes\n", ch.BufferSize)
		}
		fmt.Fprintf(out, "      bounds     : average %d..%d, minimum %d..%d, maximum %d..%d\n",
			lim.AverageMin, lim.AverageMax, lim.MinimumMin, lim.MinimumMax, lim.MaximumMin, lim.MaximumMax)
		fmt.Fprintf(out, "      digests    : %v\n", digest.Algorithms())

		encrypted := cfg.Encrypt
		for _, j := range cfg.Jobs {
			encrypted = encrypted || j.Encrypt
		}
		if encrypted {
			if _, err := loadKeys(true); err != nil {
				fmt.Fprintf(out, "  [ ] encryption : %v\n", err)
				allOk = false
			} else {
				fmt.Fprintln(out, "  [x] encryption : key available")
			}
		}
		fmt.Fprintln(out)

		targets := make(map[string]bool)
		for _, t := range cfg.Targets {
			targets[t] = true
		}
		for _, j := range cfg.Jobs {
			if j.To != "" {
				targets[j.To] = true
			}
		}

		if len(targets) > 0 {
			fmt.Fprintln(out, "[Target Checks]")
			for t := range targets {
				fmt.Fprintf(out, "  Checking %s...\n", storage.Scrub(t))

				start := time.Now()
				s, err := storage.FromURI(t, storage.StorageOptions{AllowInsecure: AllowInsecure})
				if err != nil {
					fmt.Fprintf(out, "    [ ] Connection: FAILED (%v)\n", err)
					allOk = false
					continue
				}

				err = s.PutMetadata(cmd.Context(), ".doctor_check", []byte("ok"))
				latency := time.Since(start)
				if err != nil {
					fmt.Fprintf(out, "    [ ] Permissions: FAILED (Write failed: %v)\n", err)
					allOk = false
				} else {
					fmt.Fprintf(out, "    [x] Latency: %s\n", latency.Truncate(time.Millisecond))
					fmt.Fprintf(out, "    [x] Permissions: READ/WRITE OK\n")
					_ = s.Delete(cmd.Context(), ".doctor_check")
				}
				s.Close()
			}
			fmt.Fprintln(out)
		}

		if allOk {
			fmt.Fprintln(out, "Result: All systems go!")
			return nil
		}
		fmt.Fprintln(out, "Result: Some checks failed.")
		return fmt.Errorf("doctor found problems")
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
