package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"backoffice/internal/editor"
	"backoffice/internal/export"
	"backoffice/internal/model"
)

// Sales are created by the storefront; these commands cover manual entry.
func saleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Record and list sales orders that tasks can reference",
	}

	var customer, total string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			sale := model.Sale{Customer: customer, Total: editor.ParseAmount(total)}
			if err := a.sales.Create(cmd.Context(), &sale); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%s %s\n", sale.ShortID(), sale.ID)
			return nil
		},
	}
	add.Flags().StringVar(&customer, "customer", "", "Customer name")
	add.Flags().StringVar(&total, "total", "0", "Order total")
	_ = add.MarkFlagRequired("customer")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			sales, err := a.sales.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			formatter := export.Formatter{Currency: a.cfg.Currency}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tCUSTOMER\tTOTAL\tCREATED")
			for _, s := range sales {
				fmt.Fprintf(w, "#%s\t%s\t%s\t%s\n", s.ShortID(), s.Customer, formatter.Amount(s.Total), s.CreatedAt.Format(model.DateLayout))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
