// Command drawctl is the operator's command-line tool for the racing10
// draw pipeline: schema migration, manual draw and settlement, rebate
// retries and commission reversal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/app"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/spf13/cobra"
)

const commandTimeout = 2 * time.Minute

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loader returns the configuration the commands run against.
type loader func() (*config.Config, error)

func newRootCmd(load loader) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "drawctl",
		Short:        "Operate the racing10 draw pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")

	// open is shared by every subcommand; the app is closed by the caller.
	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		out := io.Discard
		if verbose {
			out = cmd.ErrOrStderr()
		}
		return app.Open(cmd.Context(), cfg, slog.New(slog.NewTextHandler(out, nil)))
	}

	root.AddCommand(
		newMigrateCmd(open),
		newDrawCmd(open),
		newSettleCmd(open),
		newPendingCmd(open),
		newRebatesCmd(open),
		newCommissionCmd(open),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)

// run opens the app, applies the command timeout and closes the app after fn.
func run(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app.App) error) error {
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, a)
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := repository.Migrate(ctx, a.DB); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newDrawCmd(open opener) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Draw a round's outcome (returns the recorded one if already drawn)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				out, err := a.Outcomes.GenerateOutcome(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "round %s drawn: %s\n", p, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "round period, e.g. 20261018042")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newSettleCmd(open opener) *cobra.Command {
	var period, outcome string
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle a round against its recorded draw or an explicit outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}
			var perm domain.Permutation
			if outcome != "" {
				if perm, err = domain.ParsePermutation(outcome); err != nil {
					return err
				}
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				sum, err := a.Settlement.SettleRound(ctx, p, perm)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if sum.AlreadySettled {
					fmt.Fprintf(w, "round %s already settled\n", p)
					return nil
				}
				fmt.Fprintf(w, "round %s settled: wagers=%d wins=%d audited=%d stake=%s payout=%s\n",
					p, sum.SettledCount, sum.WinCount, sum.AuditCount,
					sum.TotalStake.StringFixed(domain.CurrencyPlaces),
					sum.TotalPayout.StringFixed(domain.CurrencyPlaces))

				failed, err := a.Rebates.AllocateRound(ctx, p)
				if err != nil {
					return err
				}
				if failed > 0 {
					fmt.Fprintf(w, "%d rebates failed; run `drawctl rebates retry`\n", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "round period, e.g. 20261018042")
	cmd.Flags().StringVar(&outcome, "outcome", "", "comma-separated ten-number outcome (default: recorded draw)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newPendingCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List rounds waiting for a draw or a settlement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				draw, settle, err := a.Rounds.Pending(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, rd := range draw {
					fmt.Fprintf(w, "%s\tawaiting draw\n", rd.Period)
				}
				for _, rd := range settle {
					fmt.Fprintf(w, "%s\tawaiting settlement\t%s\n", rd.Period, rd.Outcome)
				}
				return nil
			})
		},
	}
}

func newRebatesCmd(open opener) *cobra.Command {
	rebates := &cobra.Command{
		Use:   "rebates",
		Short: "Agent commission commands",
	}

	var limit int
	retry := &cobra.Command{
		Use:   "retry",
		Short: "Retry failed and pending rebates of settled wagers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				attempted, failed, err := a.Rebates.RetryFailed(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retried %d wagers, %d still failing\n", attempted, failed)
				return nil
			})
		},
	}
	retry.Flags().IntVar(&limit, "limit", 200, "maximum wagers to retry")

	allocate := &cobra.Command{
		Use:   "allocate WAGER_ID",
		Short: "Allocate one settled wager's rebates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid wager id: %w", err)
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				alloc, err := a.Rebates.AllocateRebates(ctx, id)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, e := range alloc.Entries {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.AgentID, e.Amount.StringFixed(domain.CurrencyPlaces), e.Reason)
				}
				fmt.Fprintf(w, "pool=%s retained=%s\n", alloc.Pool.StringFixed(domain.CurrencyPlaces), alloc.Retained.StringFixed(domain.CurrencyPlaces))
				return nil
			})
		},
	}

	rebates.AddCommand(retry, allocate)
	return rebates
}

func newCommissionCmd(open opener) *cobra.Command {
	commission := &cobra.Command{
		Use:   "commission",
		Short: "Commission ledger commands",
	}

	var reason string
	reverse := &cobra.Command{
		Use:   "reverse ENTRY_ID",
		Short: "Write a compensating entry for a rebate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id: %w", err)
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				e, err := a.Compensation.ReverseCommission(ctx, id, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reversal %s written: %s\n", e.ID, e.Amount.StringFixed(domain.CurrencyPlaces))
				return nil
			})
		},
	}
	reverse.Flags().StringVar(&reason, "reason", "", "why the commission is reversed")
	_ = reverse.MarkFlagRequired("reason")

	commission.AddCommand(reverse)
	return commission
}
