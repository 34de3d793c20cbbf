package cmd

import (
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/pennon-io/pennon/pkg/runtime"
)

const bannerTxt = `
 _ __   ___ _ __  _ __   ___  _ __
| '_ \ / _ \ '_ \| '_ \ / _ \| '_ \
| |_) |  __/ | | | | | | (_) | | | |
| .__/ \___|_| |_|_| |_|\___/|_| |_|
|_|
`

var (
	watchURI    string
	watchStrict bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Load a flag configuration file and reapply it on every change",
	RunE: func(cmd *cobra.Command, _ []string) error {
		banner.InitString(colorable.NewColorableStdout(), true, true, bannerTxt)

		log, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		rt, err := runtime.FromConfig(log, runtime.Config{
			URI:              watchURI,
			StrictValidation: watchStrict,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := rt.Start(ctx); err != nil {
			return err
		}
		log.Info("shut down")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchURI, "uri", "f", "", "path of the flag configuration file to watch")
	watchCmd.Flags().BoolVar(&watchStrict, "strict", false, "reject configurations that fail schema validation")
	_ = watchCmd.MarkFlagRequired("uri")
	rootCmd.AddCommand(watchCmd)
}
