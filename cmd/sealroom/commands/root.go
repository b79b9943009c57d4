package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sealroom/internal/app"
	"sealroom/internal/config"
)

// env is what subcommands share once the root pre-run has wired everything.
type env struct {
	v    *viper.Viper
	cfg  config.Client
	wire *app.Wire
}

func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with its own config state.
func NewRootCmd() *cobra.Command {
	e := &env{v: config.New()}
	var cfgFile string

	root := &cobra.Command{
		Use:          "sealroom",
		Short:        "End-to-end encryption for channels and direct messages",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home := e.v.GetString("home")
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			if cfgFile == "" {
				cfgFile = filepath.Join(home, config.FileName)
			}
			if err := config.ReadFile(e.v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.LoadClient(e.v)
			if err != nil {
				return err
			}
			log := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			w, err := app.NewWire(cfg, log)
			if err != nil {
				return err
			}
			e.cfg, e.wire = cfg, w
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", config.DefaultHome(), "state dir")
	pf.StringVar(&cfgFile, "config", "", "config file (default <home>/config.yaml)")
	pf.String("user", "", "your user id")
	pf.String("directory", "", "directory base URL (e.g. http://127.0.0.1:8080)")
	pf.String("log-level", "", "debug, info, warn or error")
	_ = e.v.BindPFlag("home", pf.Lookup("home"))
	_ = e.v.BindPFlag("user_id", pf.Lookup("user"))
	_ = e.v.BindPFlag("directory_url", pf.Lookup("directory"))
	_ = e.v.BindPFlag("log_level", pf.Lookup("log-level"))

	root.AddCommand(
		initCmd(e),
		fingerprintCmd(e),
		exportMnemonicCmd(e),
		registerCmd(e),
		channelCmd(e),
		dmCmd(e),
		resetCmd(e),
	)
	return root
}
