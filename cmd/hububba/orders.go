package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"hububba-utils/internal/config"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	statusFilter string
	exportPath   string
)

func newOrdersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and move commission orders",
		Long:  `Read, export and import orders in the configured store without connecting to Discord.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print orders newest first",
		RunE:  runOrdersList,
	}
	list.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show orders with this status")

	export := &cobra.Command{
		Use:   "export",
		Short: "Write every order as CSV",
		RunE:  runOrdersExport,
	}
	export.Flags().StringVarP(&exportPath, "out", "o", "", "Output file (default: stdout)")

	cmd.AddCommand(
		list,
		export,
		&cobra.Command{
			Use:   "import FILE",
			Short: "Import a legacy orders CSV",
			Long:  `Import orders from a CSV in the export layout. Imported orders get new IDs; the mapping is printed.`,
			Args:  cobra.ExactArgs(1),
			RunE:  runOrdersImport,
		},
	)
	return cmd
}

// withStore opens the configured order store for a one-shot command.
func withStore(fn func(ctx context.Context, store storage.OrderStore) error) error {
	cfg, err := config.LoadOffline()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Stdout carries CSV and tables here, so store logs are dropped.
	store, err := storage.Open(ctx, cfg.Storage, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	filter := orders.Filter{}
	if statusFilter != "" {
		status, err := storage.ParseStatus(statusFilter)
		if err != nil {
			return fmt.Errorf("%w (use one of: %s)", err, storage.StatusLabels())
		}
		filter.Status = status
	}
	return withStore(func(ctx context.Context, store storage.OrderStore) error {
		list, err := orders.NewService(store, zap.NewNop()).List(ctx, filter)
		if err != nil {
			return err
		}
		return printOrders(cmd.OutOrStdout(), list)
	})
}

func printOrders(w io.Writer, list []storage.Order) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No orders found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tUSER\tTITLE\tBUDGET\tDEADLINE\tCREATED")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.DisplayID(), o.Status.Label(), orDash(o.UserName), o.Title,
			orDash(o.Budget), orDash(o.Deadline), o.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runOrdersExport(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store storage.OrderStore) error {
		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		if exportPath == "" {
			return storage.WriteCSV(cmd.OutOrStdout(), list)
		}
		f, err := os.Create(exportPath)
		if err != nil {
			return err
		}
		if err := storage.WriteCSV(f, list); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d orders to %s\n", len(list), exportPath)
		return nil
	})
}

func runOrdersImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return withStore(func(ctx context.Context, store storage.OrderStore) error {
		n, err := importOrders(ctx, store, f, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d orders\n", n)
		return nil
	})
}

// importOrders copies every CSV row into store, printing old -> new IDs.
// Rows are parsed up front so a malformed file imports nothing.
func importOrders(ctx context.Context, store storage.OrderStore, r io.Reader, out io.Writer) (int, error) {
	rows, err := storage.ReadCSV(r)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	for i, row := range rows {
		oldID := row.DisplayID()
		order := row
		order.ID = 0
		if order.Type == "" {
			order.Type = storage.OrderTypeCommission
		}
		if order.CreatedAt.IsZero() {
			order.CreatedAt = now
		}
		if err := store.Create(ctx, &order); err != nil {
			return i, fmt.Errorf("import %s: %w", oldID, err)
		}
		fmt.Fprintf(out, "%s -> %s\n", oldID, order.DisplayID())
	}
	return len(rows), nil
}
