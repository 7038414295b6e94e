package cli

import (
	"os"

	"cipher_chat/internal/config"
	"cipher_chat/internal/service/app"
	"cipher_chat/internal/utils/log"

	"github.com/spf13/cobra"
)

const (
	chatEnv = "CIPHER_CHAT_NAME"
	userEnv = "CIPHER_CHAT_USER"
)

type options struct {
	cfgFile   string
	serverURL string
	transport string
	logLevel  string
	logFile   string

	cfg *config.Client
}

// NewRootCmd builds the client command tree. Without a subcommand it starts
// the interactive chat.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "cipher-chat",
		Short:         "End-to-end encrypted group chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the TUI owns the terminal, so only log when a file is set
			if o.cfg.LogFile != "" {
				if err := log.Init(o.cfg.LogLevel, o.cfg.LogFile); err != nil {
					return err
				}
				defer log.Sync()
			}
			return app.NewApp(o.cfg).Run()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/cipher_chat/client.toml)")
	flags.StringVar(&o.serverURL, "server", "", "relay URL")
	flags.StringVar(&o.transport, "transport", "", "transport to the relay: http or ws")
	flags.StringVar(&o.logLevel, "log-level", "", "log level")
	flags.StringVar(&o.logFile, "log-file", "", "log file")

	root.AddCommand(
		newChannelCmd(),
		newSendCmd(o),
		newTailCmd(o),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) load(cmd *cobra.Command) error {
	path, optional := o.cfgFile, false
	if path == "" {
		var err error
		if path, err = config.DefaultClientPath(); err != nil {
			path = ""
		}
		optional = true
	}

	cfg, err := config.LoadClient(path, optional)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = o.serverURL
	}
	if flags.Changed("transport") {
		cfg.Transport = o.transport
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	return nil
}

// credentials resolves the chat name and display name from flags, falling
// back to the environment so the passphrase need not appear in argv.
func credentials(chat, name string) (string, string) {
	if chat == "" {
		chat = os.Getenv(chatEnv)
	}
	if name == "" {
		name = os.Getenv(userEnv)
	}
	return chat, name
}
