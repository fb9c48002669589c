package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/payment/adapters/stripe"
	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"github.com/spf13/cobra"
)

type pageFlags struct {
	limit         int64
	startingAfter string
	fromFile      string
}

func (f *pageFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.limit, "limit", 100, "page size, 1-100")
	cmd.Flags().StringVar(&f.startingAfter, "starting-after", "", "resume after this object id")
	cmd.Flags().StringVar(&f.fromFile, "from-file", "", "read a saved list response instead of calling Stripe")
}

// readPage loads --from-file through decode, or returns nil to fetch remotely.
func readPage[T any](path string, decode func([]byte) (*T, error)) (*T, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func printResult(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull one page of Stripe objects into the local database",
	}
	cmd.AddCommand(
		newSyncCustomersCmd(opts),
		newSyncSubscriptionsCmd(opts),
		newSyncProductsCmd(opts),
		newSyncPricesCmd(opts),
	)
	return cmd
}

func newSyncCustomersCmd(opts *rootOptions) *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Link Stripe customers to local users, creating users where allowed",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readPage(flags.fromFile, stripe.DecodeCustomerList)
			if err != nil {
				return err
			}

			var svc customerdomain.Service
			return runOneShot(opts.configPath, func(ctx context.Context) error {
				res, err := svc.SyncCustomers(ctx, customerdomain.CustomerSyncRequest{
					Limit:         flags.limit,
					StartingAfter: flags.startingAfter,
					Page:          page,
				})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			}, &svc)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newSyncSubscriptionsCmd(opts *rootOptions) *cobra.Command {
	var (
		flags            pageFlags
		status           string
		skipMissingUsers bool
	)
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Upsert Stripe subscriptions and their items",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readPage(flags.fromFile, stripe.DecodeSubscriptionList)
			if err != nil {
				return err
			}
			mode := subscriptiondomain.FailOnMissingUser
			if skipMissingUsers {
				mode = subscriptiondomain.SkipMissingUser
			}

			var svc subscriptiondomain.Service
			return runOneShot(opts.configPath, func(ctx context.Context) error {
				res, err := svc.SyncSubscriptions(ctx, subscriptiondomain.SyncRequest{
					Status:        status,
					Limit:         flags.limit,
					StartingAfter: flags.startingAfter,
					Page:          page,
					MissingUsers:  mode,
				})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			}, &svc)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&status, "status", "", "only this Stripe status (all, active, canceled, ...)")
	cmd.Flags().BoolVar(&skipMissingUsers, "skip-missing-users", false, "skip subscriptions whose customer has no local user")
	return cmd
}

func newSyncProductsCmd(opts *rootOptions) *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Upsert Stripe products and their feature lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readPage(flags.fromFile, stripe.DecodeProductList)
			if err != nil {
				return err
			}

			var svc productdomain.Service
			return runOneShot(opts.configPath, func(ctx context.Context) error {
				res, err := svc.SyncProducts(ctx, productdomain.SyncRequest{
					Limit:         flags.limit,
					StartingAfter: flags.startingAfter,
					Page:          page,
				})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			}, &svc)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newSyncPricesCmd(opts *rootOptions) *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Upsert Stripe prices of synced products",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readPage(flags.fromFile, stripe.DecodePriceList)
			if err != nil {
				return err
			}

			var svc pricedomain.Service
			return runOneShot(opts.configPath, func(ctx context.Context) error {
				res, err := svc.SyncPrices(ctx, pricedomain.SyncRequest{
					Limit:         flags.limit,
					StartingAfter: flags.startingAfter,
					Page:          page,
				})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			}, &svc)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newMigrateLegacyBillingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-legacy-billing",
		Short: "Move user-held subscriptions onto billing accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc subscriptiondomain.Service
			return runOneShot(opts.configPath, func(ctx context.Context) error {
				res, err := svc.MigrateLegacyBilling(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			}, &svc)
		},
	}
}
