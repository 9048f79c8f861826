package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jrsteele09/bastion-hub/hubapi"
	"github.com/spf13/cobra"
)

// listFlags are the filters shared by list subcommands
type listFlags struct {
	search string
	page   int
}

func (f *listFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "search term")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
}

func (f *listFlags) params(extra ...string) hubapi.Params {
	p := hubapi.Params{}
	if f.search != "" {
		p.Set("search", f.search)
	}
	if f.page > 1 {
		p.Set("page", strconv.Itoa(f.page))
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			p.Set(extra[i], extra[i+1])
		}
	}
	return p
}

// signedIn wraps RunE so it only runs with a stored session
func signedIn(a *app, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.requireLogin(); err != nil {
			return err
		}
		return run(cmd, args)
	}
}

func pageFooter(w io.Writer, count, shown int) {
	if count > shown {
		fmt.Fprintf(w, "\n%d of %d shown, use --page for more\n", shown, count)
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func money(a *hubapi.Amount) string {
	if a == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", float64(*a))
}

func newDashboardCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Headline numbers",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			stats, err := a.api.Dashboard.Stats(cmd.Context())
			if err != nil {
				return apiFailure("dashboard", err)
			}
			return a.printer(cmd).Print(stats, func(w io.Writer) {
				fmt.Fprintf(w, "AUM:\t%.2f\n", float64(stats.TotalAUM))
				fmt.Fprintf(w, "Clients:\t%d\n", stats.TotalClients)
				fmt.Fprintf(w, "Households:\t%d\n", stats.TotalHouseholds)
				fmt.Fprintf(w, "Accounts:\t%d\n", stats.TotalAccounts)
				fmt.Fprintf(w, "Pending briefings:\t%d\n", stats.PendingBriefings)
			})
		}),
	}
}

func newClientsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "clients", Short: "List and inspect clients"}

	var lf listFlags
	var clientType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.api.Clients.List(cmd.Context(), lf.params("client_type", clientType))
			if err != nil {
				return apiFailure("list clients", err)
			}
			return a.printer(cmd).Print(page, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tHOUSEHOLD\tACCOUNTS\tVALUE")
				for _, c := range page.Results {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.FullName, c.ClientType, orDash(c.HouseholdName), c.AccountCount, money(c.TotalValue))
				}
				pageFooter(w, page.Count, len(page.Results))
			})
		}),
	}
	lf.bind(list)
	list.Flags().StringVar(&clientType, "type", "", "client type filter")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a client and their accounts",
		Args:  cobra.ExactArgs(1),
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			client, err := a.api.Clients.Get(cmd.Context(), args[0])
			if err != nil {
				return apiFailure("get client", err)
			}
			accounts, err := a.api.Clients.Accounts(cmd.Context(), args[0])
			if err != nil {
				return apiFailure("list accounts", err)
			}
			out := struct {
				hubapi.Client
				Accounts []hubapi.Account `json:"accounts"`
			}{client, accounts}
			return a.printer(cmd).Print(out, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\n", client.FullName, client.Email)
				fmt.Fprintf(w, "Household:\t%s\n", orDash(client.HouseholdName))
				fmt.Fprintf(w, "Value:\t%s\n\n", money(client.TotalValue))
				fmt.Fprintln(w, "ACCOUNT\tNAME\tTYPE\tCUSTODIAN")
				for _, acc := range accounts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", acc.AccountNumber, acc.Name, acc.AccountType, acc.Custodian)
				}
			})
		}),
	}

	cmd.AddCommand(list, get)
	return cmd
}

func newDocumentsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "documents", Short: "Work with the document vault"}

	var lf listFlags
	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.api.Documents.List(cmd.Context(), lf.params("category", category))
			if err != nil {
				return apiFailure("list documents", err)
			}
			return a.printer(cmd).Print(page, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tSIZE\tUPLOADED")
				for _, d := range page.Results {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Title, orDash(d.CategoryName), d.FileSizeDisplay, d.CreatedAt.Format("2006-01-02"))
				}
				pageFooter(w, page.Count, len(page.Results))
			})
		}),
	}
	lf.bind(list)
	list.Flags().StringVar(&category, "category", "", "category id")

	var (
		title        string
		docCategory  string
		client       string
		tags         []string
		confidential bool
	)
	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "open file", err)
			}
			defer f.Close()

			name := filepath.Base(args[0])
			if title == "" {
				title = strings.TrimSuffix(name, filepath.Ext(name))
			}
			u := hubapi.DocumentUpload{
				Title:       title,
				Category:    docCategory,
				Client:      client,
				Tags:        tags,
				FileName:    name,
				ContentType: mime.TypeByExtension(filepath.Ext(name)),
				File:        f,
			}
			if cmd.Flags().Changed("confidential") {
				u.IsConfidential = &confidential
			}

			doc, err := a.api.Documents.Upload(cmd.Context(), u)
			if err != nil {
				return apiFailure("upload", err)
			}
			return a.printer(cmd).Print(doc, func(w io.Writer) {
				fmt.Fprintf(w, "Uploaded\t%s\t%s\n", doc.ID, doc.Title)
			})
		}),
	}
	upload.Flags().StringVar(&title, "title", "", "document title (defaults to the file name)")
	upload.Flags().StringVar(&docCategory, "category", "", "category id")
	upload.Flags().StringVar(&client, "client", "", "client id")
	upload.Flags().StringSliceVar(&tags, "tag", nil, "tag, repeatable")
	upload.Flags().BoolVar(&confidential, "confidential", false, "mark as confidential")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			if err := a.api.Documents.Delete(cmd.Context(), args[0]); err != nil {
				return apiFailure("delete document", err)
			}
			return a.printer(cmd).Message("Deleted %s", args[0])
		}),
	}

	cmd.AddCommand(list, upload, del)
	return cmd
}

func newBriefingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "briefings", Short: "Review and send client briefings"}

	var lf listFlags
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List briefings",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.api.Briefings.List(cmd.Context(), lf.params("status", status))
			if err != nil {
				return apiFailure("list briefings", err)
			}
			return a.printer(cmd).Print(page, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tDELIVERY")
				for _, b := range page.Results {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Status, b.DeliveryMethod)
				}
				pageFooter(w, page.Count, len(page.Results))
			})
		}),
	}
	lf.bind(list)
	list.Flags().StringVar(&status, "status", "", "status filter (draft, pending_review, approved, sent, failed)")

	action := func(use, short, done string, call func(*cobra.Command, string) (hubapi.Briefing, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
				b, err := call(cmd, args[0])
				if err != nil {
					return apiFailure(use, err)
				}
				return a.printer(cmd).Print(b, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%s\t%s\n", done, b.ID, b.Title)
				})
			}),
		}
	}
	approve := action("approve", "Approve a briefing", "Approved", func(cmd *cobra.Command, id string) (hubapi.Briefing, error) {
		return a.api.Briefings.Approve(cmd.Context(), id)
	})
	send := action("send", "Send an approved briefing", "Sent", func(cmd *cobra.Command, id string) (hubapi.Briefing, error) {
		return a.api.Briefings.Send(cmd.Context(), id)
	})

	cmd.AddCommand(list, approve, send)
	return cmd
}

func newNotificationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Short: "Read notifications"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List unread notifications",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			unread, err := a.api.Notifications.Unread(cmd.Context())
			if err != nil {
				return apiFailure("list notifications", err)
			}
			return a.printer(cmd).Print(unread, func(w io.Writer) {
				fmt.Fprintf(w, "%d unread\n", unread.Count)
				for _, n := range unread.Notifications {
					fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.NotificationType, n.Title)
				}
			})
		}),
	}

	read := &cobra.Command{
		Use:   "read [id...]",
		Short: "Mark notifications read, all of them when no id is given",
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			var ids []string
			if len(args) > 0 {
				ids = args
			}
			n, err := a.api.Notifications.MarkRead(cmd.Context(), ids)
			if err != nil {
				return apiFailure("mark read", err)
			}
			return a.printer(cmd).Message("Marked %d read", n)
		}),
	}

	cmd.AddCommand(list, read)
	return cmd
}

func newAuditCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Query the audit log"}

	var (
		lf        listFlags
		eventType string
		severity  string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit entries",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.api.Audit.List(cmd.Context(), lf.params("event_type", eventType, "severity", severity))
			if err != nil {
				return apiFailure("list audit log", err)
			}
			return a.printer(cmd).Print(page, func(w io.Writer) {
				fmt.Fprintln(w, "WHEN\tEVENT\tSEVERITY\tUSER\tTARGET")
				for _, l := range page.Results {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Timestamp.Format("2006-01-02 15:04"), l.EventType, l.Severity, l.UserEmail, l.TargetRepr)
				}
				pageFooter(w, page.Count, len(page.Results))
			})
		}),
	}
	lf.bind(list)
	list.Flags().StringVar(&eventType, "event-type", "", "event type filter")
	list.Flags().StringVar(&severity, "severity", "", "severity filter")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export matching audit entries (json or yaml)",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			logs, err := a.api.Audit.Export(cmd.Context(), lf.params("event_type", eventType, "severity", severity))
			if err != nil {
				return apiFailure("export audit log", err)
			}
			return a.printer(cmd).Print(logs, nil)
		}),
	}
	export.Flags().StringVar(&eventType, "event-type", "", "event type filter")
	export.Flags().StringVar(&severity, "severity", "", "severity filter")

	cmd.AddCommand(list, export)
	return cmd
}

func newUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage hub users"}

	var lf listFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.api.Users.List(cmd.Context(), lf.params())
			if err != nil {
				return apiFailure("list users", err)
			}
			return a.printer(cmd).Print(page, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tEMAIL\tROLE\tACTIVE")
				for _, u := range page.Results {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.ID, u.Email, u.Role, u.IsActive)
				}
				pageFooter(w, page.Count, len(page.Results))
			})
		}),
	}
	lf.bind(list)

	statusAction := func(use, short, done string, call func(*cobra.Command, string) (hubapi.Status, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: signedIn(a, func(cmd *cobra.Command, args []string) error {
				if _, err := call(cmd, args[0]); err != nil {
					return apiFailure(use, err)
				}
				return a.printer(cmd).Message("%s %s", done, args[0])
			}),
		}
	}

	cmd.AddCommand(list,
		statusAction("activate", "Activate a user", "Activated", func(cmd *cobra.Command, id string) (hubapi.Status, error) {
			return a.api.Users.Activate(cmd.Context(), id)
		}),
		statusAction("deactivate", "Deactivate a user", "Deactivated", func(cmd *cobra.Command, id string) (hubapi.Status, error) {
			return a.api.Users.Deactivate(cmd.Context(), id)
		}),
		statusAction("reset-password", "Email a user a password reset link", "Reset link sent to", func(cmd *cobra.Command, id string) (hubapi.Status, error) {
			return a.api.Users.ResetPassword(cmd.Context(), id)
		}),
	)
	return cmd
}
