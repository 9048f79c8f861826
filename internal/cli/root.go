// Package cli implements hubctl, a command line client for the Bastion API
// that keeps its session in the same store format as the web front.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/hubapi"
	"github.com/jrsteele09/bastion-hub/internal/config"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"table", "json", "yaml"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string
	APIURL  string
}

// Env is what the commands run against. main fills it from configuration;
// tests swap in fakes.
type Env struct {
	Config config.Config
	KV     storage.Store
	// HTTP overrides the transport used for the API. Nil means a plain
	// *http.Client with the configured timeout.
	HTTP  apiclient.Doer
	Stdin io.Reader
}

type app struct {
	env   *Env
	opts  *RootOptions
	store *session.Store
	api   *hubapi.API
}

// NewRootCommand creates the root command for hubctl.
func NewRootCommand(env *Env) *cobra.Command {
	opts := &RootOptions{}
	a := &app{env: env, opts: opts}

	cmd := &cobra.Command{
		Use:   "hubctl",
		Short: "hubctl - Bastion Hub from the terminal",
		Long:  "Sign in to the Bastion API and work with clients, documents, briefings and the audit log.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return a.open(cmd)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.Format, "output", "o", "table", "output format (table|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "API base URL (defaults to API_URL)")

	cmd.AddCommand(newLoginCommand(a))
	cmd.AddCommand(newLogoutCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newWhoamiCommand(a))
	cmd.AddCommand(newHealthCommand(a))
	cmd.AddCommand(newDashboardCommand(a))
	cmd.AddCommand(newClientsCommand(a))
	cmd.AddCommand(newDocumentsCommand(a))
	cmd.AddCommand(newBriefingsCommand(a))
	cmd.AddCommand(newNotificationsCommand(a))
	cmd.AddCommand(newAuditCommand(a))
	cmd.AddCommand(newUsersCommand(a))

	return cmd
}

// open rehydrates the stored session and builds the API client around it.
func (a *app) open(cmd *cobra.Command) error {
	level := zerolog.WarnLevel
	if a.opts.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).Level(level).With().Timestamp().Logger()

	a.store = session.NewStore(a.env.KV, session.WithLogger(logger))
	if err := a.store.Rehydrate(cmd.Context()); err != nil {
		logger.Warn().Err(err).Msg("stored session could not be read, starting signed out")
	}

	baseURL := a.opts.APIURL
	if baseURL == "" {
		baseURL = a.env.Config.GetAPIBaseURL()
	}
	clientOpts := []apiclient.Option{
		apiclient.WithTimeout(a.env.Config.GetRequestTimeout()),
		apiclient.WithLogger(logger),
	}
	if a.env.Config.GetSharedRefresh() {
		clientOpts = append(clientOpts, apiclient.WithSharedRefresh())
	}
	if a.env.HTTP != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(a.env.HTTP))
	}
	a.api = hubapi.New(apiclient.New(baseURL, a.store, clientOpts...), a.store)
	return nil
}

func (a *app) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: a.opts.Format, Writer: cmd.OutOrStdout()}
}

// requireLogin fails fast when there is no stored session
func (a *app) requireLogin() error {
	if !a.store.IsAuthenticated() {
		return NewExitError(ExitNotSignedIn, "not signed in, run hubctl login")
	}
	return nil
}
