package cli

import (
	"fmt"

	"cipher_chat/internal/cryptographic/digest"

	"github.com/spf13/cobra"
)

func newChannelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channel CHAT_NAME",
		Short: "Print the channel id the relay sees for a chat name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), digest.ChannelIDOf(args[0]))
			return err
		},
	}
}
