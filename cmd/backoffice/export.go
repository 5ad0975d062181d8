package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"backoffice/internal/access"
	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
)

type exportFlags struct {
	from     string
	to       string
	category string
	user     string
	out      string
}

func exportCmd() *cobra.Command {
	flags := &exportFlags{}
	cmd := &cobra.Command{
		Use:       "export csv|html",
		Short:     "Export expenses with the admin view and filters",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"csv", "html"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args[0], flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&flags.to, "to", "", "Last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&flags.category, "category", "", "Category name")
	cmd.Flags().StringVar(&flags.user, "user", "", "Author username")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Write to file instead of stdout; a directory gets the default file name")
	return cmd
}

func runExport(ctx context.Context, format string, flags *exportFlags, stdout io.Writer) error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	filter := access.ExpenseFilter{Category: flags.category}
	for _, bound := range []struct {
		raw string
		dst *string
	}{{flags.from, &filter.From}, {flags.to, &filter.To}} {
		if bound.raw == "" {
			continue
		}
		day, err := editor.ParseDate(bound.raw)
		if err != nil {
			return err
		}
		*bound.dst = day
	}
	if flags.user != "" {
		user, err := a.users.FindByUsername(ctx, flags.user)
		if err != nil {
			return fmt.Errorf("find user %q: %w", flags.user, err)
		}
		filter.UserID = user.ID
	}

	expenses, err := a.expenses.ListAll(ctx)
	if err != nil {
		return err
	}
	users, err := a.users.ListAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now().In(a.cfg.Location)
	admin := model.User{Role: model.RoleAdmin}
	rows := access.VisibleExpenses(expenses, users, admin, filter, now)

	var doc export.Document
	switch format {
	case "csv":
		doc = export.CSVDocument(export.CSVFilename(now), export.CSV(rows))
	case "html":
		report, err := export.HTMLReport(export.ReportInput{
			Rows:        rows,
			Filter:      filter,
			Users:       users,
			GeneratedAt: now,
			Formatter:   export.Formatter{Currency: a.cfg.Currency},
		})
		if err != nil {
			return err
		}
		doc = export.HTMLDocument("expense_report_"+now.Format(model.DateLayout)+".html", report)
	}

	if flags.out == "" {
		_, err := stdout.Write(doc.Body)
		return err
	}
	path := flags.out
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, doc.Filename)
	}
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return err
	}
	a.logger.Info().Str("path", path).Int("rows", len(rows)).Msg("export written")
	return nil
}
