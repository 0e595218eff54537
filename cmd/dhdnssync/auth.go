package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gitlab.bluewillows.net/root/dhdnssync/internal/credentials"
)

func (a *app) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the DreamHost API key stored in the OS keychain",
		Long: `Manage the DreamHost API key stored in the OS keychain.

A key in the config file or in DHDNSSYNC_API_KEY always takes precedence
over the keychain.`,
	}

	cmd.AddCommand(a.loginCommand())
	cmd.AddCommand(a.logoutCommand())
	cmd.AddCommand(a.statusCommand())

	return cmd
}

func (a *app) loginCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a DreamHost API key",
		Long: `Store a DreamHost API key in the local keychain. The key needs the
dns-list_records, dns-add_record and dns-remove_record permissions.

Example:
  dhdnssync auth login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key = strings.TrimSpace(key)
			if key == "" {
				var err error
				key, err = a.promptKey(cmd)
				if err != nil {
					return err
				}
			}

			if key == "" {
				return errors.New("API key cannot be empty")
			}

			if err := a.keyStore.Set(credentials.DefaultAccount, key); err != nil {
				return fmt.Errorf("storing API key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Saved DreamHost API key to the keychain")
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (optional, overrides prompt)")

	return cmd
}

// promptKey reads the key without echo from a terminal, or as one line
// from piped input.
func (a *app) promptKey(cmd *cobra.Command) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Enter DreamHost API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored DreamHost API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.keyStore.Delete(credentials.DefaultAccount)
			switch {
			case errors.Is(err, credentials.ErrNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "No API key stored")
				return nil
			case err != nil:
				return fmt.Errorf("removing API key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed DreamHost API key from the keychain")
			return nil
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether an API key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.keyStore.Get(credentials.DefaultAccount)
			switch {
			case err == nil:
				fmt.Fprintln(cmd.OutOrStdout(), "dreamhost: logged in")
			case errors.Is(err, credentials.ErrNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "dreamhost: not logged in")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "dreamhost: error (%v)\n", err)
			}
			return nil
		},
	}
}
