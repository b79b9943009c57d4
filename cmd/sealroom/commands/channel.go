package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sealroom/internal/domain"
)

func channelCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Channel keys and messages",
	}
	cmd.AddCommand(
		channelMembersCmd(e),
		channelCreateCmd(e),
		channelAddCmd(e),
		channelRotateCmd(e),
		channelSendCmd(e),
		channelReadCmd(e),
	)
	return cmd
}

func channelMembersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "members <channel> <user>...",
		Short: "Replace the channel's member list in the directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			users := make([]domain.UserID, 0, len(args)-1)
			for _, u := range args[1:] {
				users = append(users, domain.UserID(u))
			}
			if err := e.wire.Directory.SetChannelMembers(cmd.Context(), domain.ChannelID(args[0]), users); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Members of %s: %s\n", args[0], strings.Join(args[1:], ", "))
			return nil
		},
	}
}

func channelCreateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "create <channel>",
		Short: "Issue the first channel key and share it with every member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := e.wire.Channels.Create(cmd.Context(), domain.ChannelID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s keyed at version %d\n", args[0], key.Version)
			return nil
		},
	}
}

func channelAddCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <channel> <user>",
		Short: "Share the current channel key with a new member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			share, err := e.wire.Channels.AddMember(cmd.Context(), domain.ChannelID(args[0]), domain.UserID(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Shared version %d with %s\n", share.Version, share.UserID)
			return nil
		},
	}
}

func channelRotateCmd(e *env) *cobra.Command {
	var removed string
	cmd := &cobra.Command{
		Use:   "rotate <channel>",
		Short: "Issue a new channel key version to the remaining members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := e.wire.Channels.Rotate(cmd.Context(), domain.ChannelID(args[0]), domain.UserID(removed))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s rotated to version %d\n", args[0], key.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&removed, "removed", "", "member left out of the new version")
	return cmd
}

func channelSendCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "send <channel> <message>",
		Short: "Encrypt a message under the channel's current key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, rec, err := e.wire.Messages.SendChannel(cmd.Context(), domain.ChannelID(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			return writeSealed(cmd.OutOrStdout(), id, rec)
		},
	}
}

func channelReadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "read <channel>",
		Short: "Decrypt sealed channel messages read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := domain.ChannelID(args[0])
			return eachSealed(cmd.InOrStdin(), func(s sealed) error {
				pt, err := e.wire.Messages.ReadChannel(cmd.Context(), ch, s.ID, s.Record)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[v%d] %s\n", s.Record.KeyVersion, pt)
				return nil
			})
		},
	}
}
