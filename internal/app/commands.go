package app

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avelasquez/swapdesk/internal/chain"
	clierr "github.com/avelasquez/swapdesk/internal/errors"
	"github.com/avelasquez/swapdesk/internal/model"
	"github.com/avelasquez/swapdesk/internal/swap"
	"github.com/avelasquez/swapdesk/internal/version"
)

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var (
		sourceChain string
		targetChain string
		recipient   string
	)
	cmd := &cobra.Command{
		Use:   "swap <amount> <source-token> to <target-token>",
		Short: "Initiate a custodial cross-chain swap",
		Long: `Initiate a custodial swap: the amount moves from your wallet to the escrow
on the source chain, and the fee-adjusted output is paid out on the target
chain. Both balances are verified before any transfer intent is created.

Examples:
  swapdesk swap 5 USDC to DAI --source-chain ethereum --target-chain base
  swapdesk swap 0.5 WETH to WETH --source-chain arbitrum --target-chain polygon --recipient 0xabc...`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.EqualFold(args[2], "to") {
				return clierr.New(clierr.CodeUsage, "expected: swap <amount> <source-token> to <target-token>")
			}
			engine, err := s.buildEngine()
			if err != nil {
				return err
			}
			result, err := engine.InitiateSwap(cmd.Context(), swap.SwapRequest{
				SourceChain: sourceChain,
				SourceToken: args[1],
				TargetChain: targetChain,
				TargetToken: args[3],
				Amount:      args[0],
				Recipient:   recipient,
			})
			if err != nil {
				return err
			}
			s.printHuman(color.FgGreen, result.Summary)
			return s.emitSuccess("swap", result)
		},
	}
	cmd.Flags().StringVar(&sourceChain, "source-chain", "", "source chain (required)")
	cmd.Flags().StringVar(&targetChain, "target-chain", "", "target chain (required)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient address on the target chain (defaults to sender)")
	_ = cmd.MarkFlagRequired("source-chain")
	_ = cmd.MarkFlagRequired("target-chain")
	return cmd
}

func (s *runtimeState) newReceiptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt [swap-id]",
		Short: "Show the receipt for a swap (defaults to the most recent)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := s.buildEngine()
			if err != nil {
				return err
			}
			swapID := ""
			if len(args) == 1 {
				swapID = args[0]
			}
			receipt, err := engine.Receipt(swapID)
			if err != nil {
				return err
			}
			s.printHuman(colorForStatus(receipt.Status), receipt.Message)
			return s.emitSuccess("receipt", receipt)
		},
	}
}

func (s *runtimeState) newDepositCommand() *cobra.Command {
	var depositChain string
	cmd := &cobra.Command{
		Use:   "deposit <amount> <token>",
		Short: "Create an escrow liquidity deposit on one chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := s.buildEngine()
			if err != nil {
				return err
			}
			txID, err := engine.CreateEscrowDeposit(cmd.Context(), swap.DepositRequest{
				Chain:  depositChain,
				Token:  args[1],
				Amount: args[0],
			})
			if err != nil {
				return err
			}
			s.printHuman(color.FgGreen, fmt.Sprintf("Deposit intent %s created; sign it to fund the escrow.", txID))
			return s.emitSuccess("deposit", map[string]string{"pending_tx_id": txID})
		},
	}
	cmd.Flags().StringVar(&depositChain, "chain", "", "chain to deposit on (required)")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func (s *runtimeState) newSettleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <swap-id>",
		Short: "Pay the target leg of a pending swap from the escrow wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := s.buildEngine()
			if err != nil {
				return err
			}
			record, err := engine.Settle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s.printHuman(color.FgGreen, fmt.Sprintf("Swap %s settled: %s %s paid to %s on %s.",
				record.SwapID, record.TargetAmount, record.TargetToken, record.RecipientAddress, record.TargetChain))
			return s.emitSuccess("settle", record)
		},
	}
}

func (s *runtimeState) newSwapsCommand() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "swaps",
		Short: "List recorded swaps, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.buildEngine(); err != nil {
				return err
			}
			records, err := s.ledger.List(swap.Status(strings.ToLower(strings.TrimSpace(status))), limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list swaps", err)
			}
			return s.emitSuccess("swaps", records)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|completed|failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to return")
	return cmd
}

func (s *runtimeState) newTxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Pending transaction operations",
	}

	var (
		txStatus string
		txHash   string
	)
	update := &cobra.Command{
		Use:   "update <tx-id>",
		Short: "Report a signing outcome for a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := s.buildEngine()
			if err != nil {
				return err
			}
			tx, err := engine.ReportTx(args[0], swap.TxStatus(strings.ToLower(txStatus)), txHash)
			if err != nil {
				return err
			}
			return s.emitSuccess("tx update", tx)
		},
	}
	update.Flags().StringVar(&txStatus, "status", "", "new status (pending|signed|rejected|completed)")
	update.Flags().StringVar(&txHash, "hash", "", "broadcast transaction hash")
	_ = update.MarkFlagRequired("status")

	cmd.AddCommand(update)
	return cmd
}

func (s *runtimeState) newChainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List supported chains and their token registries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]model.ChainInfo, 0, 4)
			for _, c := range chain.Supported() {
				rpcURL, _ := chain.DefaultRPCURL(c)
				info := model.ChainInfo{Name: c.Name, Slug: c.Slug, ChainID: c.ChainID, RPCURL: rpcURL}
				for _, t := range chain.Tokens(c) {
					info.Tokens = append(info.Tokens, model.TokenInfo{
						Symbol:   t.Symbol,
						Address:  t.Address,
						Decimals: t.Decimals,
						Native:   t.IsNative(),
					})
				}
				infos = append(infos, info)
			}
			return s.emitSuccess("chains", infos)
		},
	}
}

func (s *runtimeState) newTokensCommand() *cobra.Command {
	var tokenChain string
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List the token registry for one chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := chain.Parse(tokenChain)
			if err != nil {
				return err
			}
			tokens := chain.Tokens(c)
			infos := make([]model.TokenInfo, 0, len(tokens))
			for _, t := range tokens {
				infos = append(infos, model.TokenInfo{
					Symbol:   t.Symbol,
					Address:  t.Address,
					Decimals: t.Decimals,
					Native:   t.IsNative(),
				})
			}
			return s.emitSuccess("tokens", infos)
		},
	}
	cmd.Flags().StringVar(&tokenChain, "chain", "", "chain to list (required)")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess("version", map[string]string{
				"name":    version.CLIName,
				"version": version.Long(),
			})
		},
	}
}

// printHuman writes a colored one-line summary to stderr so stdout stays a
// clean envelope for tool callers.
func (s *runtimeState) printHuman(attr color.Attribute, msg string) {
	c := color.New(attr)
	_, _ = c.Fprintln(s.runner.stderr, msg)
}

func colorForStatus(status swap.Status) color.Attribute {
	switch status {
	case swap.StatusCompleted:
		return color.FgGreen
	case swap.StatusPending:
		return color.FgYellow
	default:
		return color.FgRed
	}
}
