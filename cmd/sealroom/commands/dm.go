package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealroom/internal/domain"
)

func dmCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dm",
		Short: "Direct messages",
	}
	cmd.AddCommand(dmSendCmd(e), dmReadCmd(e), dmResetCmd(e))
	return cmd
}

func dmSendCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt a direct message, starting a session if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.UserID(args[0])
			id, rec, err := e.wire.Messages.SendDM(cmd.Context(), dmChannel(e.wire.User, peer), peer, []byte(args[1]))
			if err != nil {
				return err
			}
			return writeSealed(cmd.OutOrStdout(), id, rec)
		},
	}
}

func dmReadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "read <sender>",
		Short: "Decrypt sealed direct messages from sender read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sender := domain.UserID(args[0])
			ch := dmChannel(e.wire.User, sender)
			return eachSealed(cmd.InOrStdin(), func(s sealed) error {
				pt, err := e.wire.Messages.ReadDM(cmd.Context(), ch, sender, s.ID, s.Record)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", sender, pt)
				return nil
			})
		},
	}
}

func dmResetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <peer>",
		Short: "Forget the session with peer; the next message starts a new handshake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.UserID(args[0])
			if err := e.wire.Sessions.Reset(dmChannel(e.wire.User, peer)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session with %s reset\n", peer)
			return nil
		},
	}
}
