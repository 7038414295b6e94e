package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cipher_chat/internal/service/app"
	"cipher_chat/internal/syncloop"
	"cipher_chat/internal/utils/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTailCmd(o *options) *cobra.Command {
	var chat, name string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Join a chat and print messages as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := log.Init(o.cfg.LogLevel, o.cfg.LogFile); err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			connectCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			s, tr, err := o.connect(connectCtx, chat, name)
			cancel()
			if err != nil {
				return err
			}
			defer tr.Close()
			defer s.Disconnect()

			printer := app.NewPrinter(cmd.OutOrStdout(), time.Local)
			printer.Render(s.Messages())

			opts := append(o.cfg.LoopOptions(), syncloop.WithStateObserver(func(st syncloop.State) {
				log.Debug("sync state", zap.Stringer("state", st))
			}))
			return syncloop.New(s, tr, printer, opts...).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat name, also the passphrase (env "+chatEnv+")")
	cmd.Flags().StringVar(&name, "name", "", "display name (env "+userEnv+")")
	return cmd
}
