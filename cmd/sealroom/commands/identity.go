package commands

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sealroom/internal/domain"
)

func initCmd(e *env) *cobra.Command {
	var mnemonic, sigHex string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an identity, or restore one from a recovery phrase or wallet signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch {
			case mnemonic != "" && sigHex != "":
				return fmt.Errorf("pass either --mnemonic or --signature-hex, not both")
			case mnemonic != "":
				fp, err := e.wire.Identity.Restore(ctx, mnemonic)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Identity restored.\nFingerprint: %s\n", fp)
			case sigHex != "":
				sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
				if err != nil {
					return domain.Wrap(domain.KindInvalidArgument, "signature is not hex", err)
				}
				fp, err := e.wire.Identity.FromSignature(ctx, sig)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Identity derived.\nFingerprint: %s\n", fp)
			default:
				phrase, fp, err := e.wire.Identity.Create(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Identity created.\nRecovery phrase (write it down):\n  %s\nFingerprint: %s\n", phrase, fp)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "restore from this BIP-39 recovery phrase")
	cmd.Flags().StringVar(&sigHex, "signature-hex", "", "derive from a 65-byte wallet signature")
	return cmd
}

func fingerprintCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := e.wire.Identity.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
}

func exportMnemonicCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export-mnemonic",
		Short: "Print the stored recovery phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, err := e.wire.Identity.ExportMnemonic()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), phrase)
			return nil
		},
	}
}

func registerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your identity and a fresh signed prekey to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.wire.Register(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s with %s\n", e.cfg.UserID, e.cfg.DirectoryURL)
			return nil
		},
	}
}

func resetCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe every locally held secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this deletes your keys; pass --yes to confirm")
			}
			if err := e.wire.Identity.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Local keys removed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
