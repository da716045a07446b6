package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/reelclient"
)

type credentialFlags struct {
	username string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "password (default $REELCTL_PASSWORD, then stdin)")
}

// resolve fills the password from the environment or the first line of stdin.
func (f *credentialFlags) resolve(cmd *cobra.Command) (string, string, error) {
	if f.username == "" {
		return "", "", errors.New("--username is required")
	}
	password := f.password
	if password == "" {
		password = os.Getenv(envPrefix + "_PASSWORD")
	}
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", "", errors.New("no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	return f.username, password, nil
}

func (a *app) loginCmd() *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session token",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, _ []string) error {
			username, password, err := creds.resolve(cmd)
			if err != nil {
				return err
			}
			id, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", id.Username)
			return nil
		}),
	}
	creds.bind(cmd)
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, _ []string) error {
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

type whoami struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	Username      string     `json:"username,omitempty" yaml:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity held in the local session",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, _ []string) error {
			var out whoami
			if id := c.Identity(); id != nil {
				out.Authenticated = true
				out.Username = id.Username
				if !id.ExpiresAt.IsZero() {
					exp := id.ExpiresAt.UTC()
					out.ExpiresAt = &exp
				}
			}
			return render(cmd.OutOrStdout(), a.settings.Output, out, func(tw *tabwriter.Writer) {
				if !out.Authenticated {
					row(tw, "not logged in")
					return
				}
				row(tw, "USERNAME", "EXPIRES")
				expires := "-"
				if out.ExpiresAt != nil {
					expires = out.ExpiresAt.Format(time.RFC3339)
				}
				row(tw, out.Username, expires)
			})
		}),
	}
}

func (a *app) registerCmd() *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, _ []string) error {
			username, password, err := creds.resolve(cmd)
			if err != nil {
				return err
			}
			user, err := c.Register(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			return render(cmd.OutOrStdout(), a.settings.Output, user, func(tw *tabwriter.Writer) {
				row(tw, "ID", "USERNAME")
				row(tw, user.ID, user.Username)
			})
		}),
	}
	creds.bind(cmd)
	return cmd
}
