package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/MikeMC777/autoparts-payments/internal/cache"
	"github.com/MikeMC777/autoparts-payments/internal/gateway"
	ord "github.com/MikeMC777/autoparts-payments/internal/order"
	"github.com/MikeMC777/autoparts-payments/internal/payment"
	"github.com/MikeMC777/autoparts-payments/internal/product"
)

func openLedger(ctx context.Context, dsn string) (*pgxpool.Pool, *ord.PGRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return pool, ord.NewPGRepo(pool, product.NewPGRepo(pool)), nil
}

func reconcileCmd(g *globals) *cobra.Command {
	var (
		orderID   int64
		txID      string
		skipCache bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ask the gateway for a transaction and apply the result to its order",
		Long: `Polls the gateway for one transaction and applies the verified outcome,
exactly as a browser redirect would. Use it for orders stuck in pending.

Examples:
  paymentsctl reconcile --order 55 --transaction 1234567`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.resolve()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, orders, err := openLedger(ctx, g.dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			var verifications *cache.Verifications
			if !skipCache && cfg.RedisAddr != "" {
				rdb := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
				defer rdb.Close()
				verifications = cache.NewVerifications(rdb, cfg.VerifyCacheTTL)
			}

			rec := payment.NewReconciler(gateway.NewClient(cfg.Gateway), orders, verifications)
			out, err := rec.Poll(ctx, orderID, txID)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&orderID, "order", 0, "order id")
	cmd.Flags().StringVar(&txID, "transaction", "", "gateway transaction id")
	cmd.Flags().BoolVar(&skipCache, "no-cache", false, "always ask the gateway")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("transaction")
	return cmd
}

func orderCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect orders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print an order with its items and latest payment transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			g.resolve()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			pool, orders, err := openLedger(ctx, g.dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			o, items, err := orders.GetByID(ctx, id)
			if err != nil {
				return err
			}
			txn, err := orders.LatestTransaction(ctx, id)
			if err != nil && !errors.Is(err, ord.ErrNotFound) {
				return err
			}
			// product status tells whether a paid order was fully marked sold
			products := product.NewPGRepo(pool)
			statuses := make(map[int64]string, len(items))
			for _, it := range items {
				p, err := products.GetByID(ctx, it.ProductID)
				if err != nil {
					statuses[it.ProductID] = "error: " + err.Error()
					continue
				}
				statuses[it.ProductID] = p.Status
			}
			return printJSON(cmd, map[string]any{
				"order":             o,
				"items":             items,
				"latestTransaction": txn,
				"productStatus":     statuses,
			})
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
