package cli

import (
	"context"
	"strings"
	"time"

	"cipher_chat/internal/session"
	"cipher_chat/internal/transport"
	"cipher_chat/internal/utils/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

func newSendCmd(o *options) *cobra.Command {
	var chat, name string

	cmd := &cobra.Command{
		Use:   "send TEXT...",
		Short: "Join a chat and post one message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := log.Init(o.cfg.LogLevel, o.cfg.LogFile); err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, tr, err := o.connect(ctx, chat, name)
			if err != nil {
				return err
			}
			defer tr.Close()
			defer s.Disconnect()

			return s.Send(ctx, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat name, also the passphrase (env "+chatEnv+")")
	cmd.Flags().StringVar(&name, "name", "", "display name (env "+userEnv+")")
	return cmd
}

func (o *options) connect(ctx context.Context, chat, name string) (*session.Session, transport.Transport, error) {
	chat, name = credentials(chat, name)

	codec, err := o.cfg.NewCodec()
	if err != nil {
		return nil, nil, err
	}
	tr, err := o.cfg.NewTransport()
	if err != nil {
		return nil, nil, err
	}

	s := session.New(codec, tr)
	id, err := s.Connect(ctx, chat, name)
	if err != nil {
		tr.Close()
		return nil, nil, err
	}
	log.Info("connected", zap.String("channel", id.ChannelID.String()), zap.String("server", o.cfg.ServerURL))
	return s, tr, nil
}
