package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jrsteele09/bastion-hub/hubapi"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. The session is stored so later
commands run signed in until the refresh token expires or you log out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := readLine(a.env.Stdin)
				if err != nil {
					return WrapExitError(ExitCommandError, "reading password from stdin", err)
				}
				password = line
			}
			if email == "" || password == "" {
				return NewExitError(ExitCommandError, "email and password are required")
			}

			resp, err := a.api.Auth.Login(cmd.Context(), hubapi.Credentials{Email: email, Password: password})
			if err != nil {
				return NewExitError(ExitFailure, a.store.Error())
			}
			return a.printer(cmd).Message("Signed in as %s (%s)", resp.User.Email, resp.User.Role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		return "", errors.Wrapf(errors.ErrNoInput, "[readLine] stdin")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrapf(err, "[readLine] read")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.IsAuthenticated() {
				return a.printer(cmd).Message("Not signed in")
			}
			a.api.Auth.Logout(cmd.Context())
			return a.printer(cmd).Message("Signed out")
		},
	}
}

// Status is what hubctl status reports
type Status struct {
	SignedIn      bool          `json:"signed_in"`
	User          *session.User `json:"user,omitempty"`
	AccessExpires *time.Time    `json:"access_expires,omitempty"`
	Storage       string        `json:"storage"`
	APIURL        string        `json:"api_url"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without calling the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := Status{
				SignedIn: a.store.IsAuthenticated(),
				User:     a.store.User(),
				Storage:  a.env.Config.GetStorageBackend(),
				APIURL:   a.api.Client().BaseURL(),
			}
			if exp, ok := session.AccessExpiry(a.store.AccessToken()); ok {
				st.AccessExpires = &exp
			}

			return a.printer(cmd).Print(st, func(w io.Writer) {
				if !st.SignedIn {
					fmt.Fprintln(w, "Signed in:\tno")
				} else {
					fmt.Fprintf(w, "Signed in:\t%s (%s)\n", st.User.Email, st.User.Role)
					fmt.Fprintf(w, "Name:\t%s\n", st.User.FullName())
				}
				if st.AccessExpires != nil {
					fmt.Fprintf(w, "Access token:\texpires %s\n", st.AccessExpires.Local().Format(time.RFC1123))
				}
				fmt.Fprintf(w, "Storage:\t%s\n", st.Storage)
				fmt.Fprintf(w, "API:\t%s\n", st.APIURL)
			})
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the signed-in user from the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			user, err := a.api.Auth.Me(cmd.Context())
			if err != nil {
				return apiFailure("whoami", err)
			}
			a.store.SetUser(user)
			return a.printer(cmd).Print(user, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", user.Email, user.FullName(), user.Role)
			})
		},
	}
}

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.api.Health(cmd.Context())
			if err != nil {
				return apiFailure("health", err)
			}
			return a.printer(cmd).Print(h, func(w io.Writer) {
				fmt.Fprintf(w, "Status:\t%s\nDatabase:\t%s\nVersion:\t%s\n", h.Status, h.Database, h.Version)
			})
		},
	}
}
