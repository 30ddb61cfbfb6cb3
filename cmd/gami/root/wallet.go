package root

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/gami-engine/progression"
)

func newWalletCmd(open opener) *cobra.Command {
	var ledger bool

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show the wallet derived from progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			w := app.Manager.RefreshBalance(commandContext(cmd))
			if w == nil {
				return progression.ErrNotAuthenticated
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(iconWallet, "Wallet"))
			fmt.Fprintln(out, labelValue("Address", w.Address))
			fmt.Fprintln(out, labelValue("Balance", w.Balance.StringFixed(2)+" "+w.Network))
			fmt.Fprintln(out, labelValue("Portfolio", "$"+w.PortfolioValue().StringFixed(2)))
			fmt.Fprintln(out, "")
			for _, t := range w.Tokens {
				fmt.Fprintf(out, "- %s %s %s\n",
					keyStyle.Render(t.Symbol),
					t.Balance.String(),
					mutedStyle.Render(fmt.Sprintf("(%s, $%s each)", t.Name, t.Value.StringFixed(2))),
				)
			}

			if ledger {
				balances, err := app.Manager.LedgerBalances(commandContext(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, h2Style.Render("Ledger"))
				for _, sym := range progression.TokenSymbols {
					fmt.Fprintf(out, "- %s %s\n", keyStyle.Render(sym), balances[sym].String())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ledger, "ledger", false, "also show balances held by the ledger canister")
	return cmd
}

func newTransactionsCmd(open opener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List reward and transfer transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			txs := app.Manager.Transactions(commandContext(cmd))
			if limit > 0 && len(txs) > limit {
				txs = txs[:limit]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(iconScroll, "Transactions"))
			if len(txs) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no transactions yet"))
				return nil
			}
			for _, tx := range txs {
				ref := tx.QuestID
				if tx.Type == progression.TxTokenTransfer {
					ref = "to " + tx.To
				}
				fmt.Fprintf(out, "%s %s %s %s %s\n",
					mutedStyle.Render(tx.Timestamp.Format("2006-01-02 15:04")),
					string(tx.Type),
					tx.Amount.String()+" "+tx.Token,
					statusText(string(tx.Status)),
					mutedStyle.Render(ref),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many")
	return cmd
}

func newTransferCmd(open opener) *cobra.Command {
	var token, memo string

	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Send tokens through the ledger canister",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errors.New("recipient and amount are required")
			}
			if _, err := decimal.NewFromString(args[1]); err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tx, err := app.Manager.TransferTokens(commandContext(cmd), progression.TransferRequest{
				To:     args[0],
				Token:  token,
				Amount: decimal.RequireFromString(args[1]),
				Memo:   memo,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), goodStyle.Render(fmt.Sprintf("%s sent %s %s to %s", iconDone, tx.Amount, tx.Token, tx.To)))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "GAMI", "token symbol")
	cmd.Flags().StringVar(&memo, "memo", "", "transfer memo")
	return cmd
}
