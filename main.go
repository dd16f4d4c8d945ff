package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"library-admin/library"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type rootOptions struct {
	apiURL   string
	token    string
	journal  string
	timeout  time.Duration
	askToken bool
	verbose  bool
}

// app is one wired admin session.
type app struct {
	cfg     library.Config
	client  *library.Client
	journal *library.Database
	mgr     *library.AdminManager
}

func (a *app) Close() {
	if a.journal != nil {
		a.journal.Close()
	}
}

// readPassword reads a secret from the terminal without echo.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(b)), nil
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (library.Config, error) {
	cfg, err := library.LoadConfig()
	if err != nil {
		return library.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = strings.TrimRight(opts.apiURL, "/")
	}
	if flags.Changed("token") {
		cfg.Token = opts.token
	}
	if flags.Changed("journal") {
		cfg.JournalPath = opts.journal
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if opts.askToken {
		tok, err := readPassword("API token: ")
		if err != nil {
			return library.Config{}, fmt.Errorf("read token: %w", err)
		}
		cfg.Token = tok
	}
	if err := cfg.Validate(time.Now()); err != nil {
		return library.Config{}, err
	}
	return cfg, nil
}

func openApp(cmd *cobra.Command, opts *rootOptions, screen library.Screen) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, client: library.NewClient(cfg.APIURL, cfg.Token, cfg.Timeout)}

	var rec library.Recorder
	if cfg.JournalEnabled() {
		db, err := library.NewDatabase(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = db
		rec = db
	}
	a.mgr = library.NewAdminManager(a.client, screen, rec)
	return a, nil
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	sc := bufio.NewScanner(in)

	root := &cobra.Command{
		Use:          "library-admin",
		Short:        "Manage the book catalogue of a library API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts, sc)
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.apiURL, "api-url", "", "API base URL (overrides "+library.EnvAPIURL+")")
	pf.StringVar(&opts.token, "token", "", "bearer token (overrides "+library.EnvAPIToken+")")
	pf.StringVar(&opts.journal, "journal", "", "journal sqlite path, or 'off' (overrides "+library.EnvJournal+")")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout")
	pf.BoolVar(&opts.askToken, "ask-token", false, "prompt for the API token")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Interactive admin shell (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShell(cmd, opts, sc)
			},
		},
		newListCmd(opts, sc),
		newAddCmd(opts, sc),
		newUpdateCmd(opts, sc),
		newDeleteCmd(opts, sc),
		newHistoryCmd(opts),
	)
	return root
}

func runShell(cmd *cobra.Command, opts *rootOptions, sc *bufio.Scanner) error {
	out := cmd.OutOrStdout()
	screen := library.NewConsoleScreen(sc, out)
	a, err := openApp(cmd, opts, screen)
	if err != nil {
		return err
	}
	defer a.Close()

	sh := &shell{sc: sc, out: out, app: a}
	return sh.run(cmd.Context())
}

// ------------------ One-shot commands ------------------

func newListCmd(opts *rootOptions, sc *bufio.Scanner) *cobra.Command {
	var (
		search string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a, err := openApp(cmd, opts, library.NewConsoleScreen(sc, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.mgr.LoadBooks(cmd.Context()); err != nil {
				return err
			}
			a.mgr.SetSearch(search)
			books := a.mgr.Visible()
			if asJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(books)
			}
			printBooks(out, a.client, books)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive filter on title, author or category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type formFlags struct {
	title, author, category, pdf, cover string
}

func (f *formFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "book title")
	fl.StringVar(&f.author, "author", "", "author")
	fl.StringVar(&f.category, "category", "", "category, e.g. Education, Novel, Technology")
	fl.StringVar(&f.pdf, "pdf", "", "path to the PDF")
	fl.StringVar(&f.cover, "cover", "", "path to the cover image")
}

// apply copies the flags that were set onto the draft.
func (f *formFlags) apply(cmd *cobra.Command, mgr *library.AdminManager) error {
	fl := cmd.Flags()
	if fl.Changed("title") {
		mgr.SetTitle(f.title)
	}
	if fl.Changed("author") {
		mgr.SetAuthor(f.author)
	}
	if fl.Changed("category") {
		mgr.SetCategory(f.category)
	}
	if f.pdf != "" {
		if _, err := mgr.SelectPDF(f.pdf); err != nil {
			return fmt.Errorf("pdf: %w", err)
		}
	}
	if f.cover != "" {
		if _, err := mgr.SelectCover(f.cover); err != nil {
			return fmt.Errorf("cover: %w", err)
		}
	}
	return nil
}

func newAddCmd(opts *rootOptions, sc *bufio.Scanner) *cobra.Command {
	var ff formFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Upload a new book with its PDF and cover",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, library.NewConsoleScreen(sc, cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := ff.apply(cmd, a.mgr); err != nil {
				return err
			}
			return a.mgr.Submit(cmd.Context())
		},
	}
	ff.bind(cmd)
	return cmd
}

func newUpdateCmd(opts *rootOptions, sc *bufio.Scanner) *cobra.Command {
	var ff formFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a book's fields or replace its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, library.NewConsoleScreen(sc, cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.mgr.LoadBooks(ctx); err != nil {
				return err
			}
			if _, err := a.mgr.EditByID(args[0]); err != nil {
				return err
			}
			if err := ff.apply(cmd, a.mgr); err != nil {
				return err
			}
			return a.mgr.Submit(ctx)
		},
	}
	ff.bind(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions, sc *bufio.Scanner) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var screen library.Screen = library.NewConsoleScreen(sc, cmd.OutOrStdout())
			if yes {
				screen = library.AutoConfirm{Screen: screen}
			}
			a, err := openApp(cmd, opts, screen)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.mgr.Delete(cmd.Context(), args[0])
			if errors.Is(err, library.ErrDeclined) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var f library.HistoryFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the local journal of admin actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if !cfg.JournalEnabled() {
				return errors.New("journal is disabled")
			}
			db, err := library.NewDatabase(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return printHistory(cmd.Context(), cmd.OutOrStdout(), db, f)
		},
	}
	cmd.Flags().StringVar(&f.BookID, "book", "", "only actions on this book ID")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "only this kind: load, create, update, delete")
	cmd.Flags().UintVarP(&f.Limit, "limit", "n", 20, "maximum rows")
	return cmd
}

// ------------------ Output ------------------

func printBooks(out io.Writer, client *library.Client, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(out, "No books found.")
		return
	}
	fmt.Fprintf(out, "%-26s %-30s %-20s %-15s %s\n", "ID", "Title", "Author", "Category", "Cover")
	fmt.Fprintln(out, strings.Repeat("-", 120))
	for _, b := range books {
		fmt.Fprintf(out, "%-26s %-30s %-20s %-15s %s\n",
			truncateString(b.ID, 26),
			truncateString(b.Title, 30),
			truncateString(b.Author, 20),
			truncateString(b.Category, 15),
			client.CoverURL(b))
	}
}

func printHistory(ctx context.Context, out io.Writer, db *library.Database, f library.HistoryFilter) error {
	actions, err := db.History(ctx, f)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Fprintln(out, "No recorded actions.")
		return nil
	}
	fmt.Fprintf(out, "%-20s %-7s %-7s %-26s %-30s %s\n", "When", "Kind", "Result", "Book", "Title", "Detail")
	fmt.Fprintln(out, strings.Repeat("-", 120))
	for _, a := range actions {
		fmt.Fprintf(out, "%-20s %-7s %-7s %-26s %-30s %s\n",
			a.At().Format("2006-01-02 15:04:05"),
			a.Kind,
			a.Outcome,
			truncateString(a.BookID, 26),
			truncateString(a.Title, 30),
			a.Detail)
	}
	return nil
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
