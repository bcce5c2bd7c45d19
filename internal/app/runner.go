package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avelasquez/swapdesk/internal/chain"
	"github.com/avelasquez/swapdesk/internal/config"
	clierr "github.com/avelasquez/swapdesk/internal/errors"
	"github.com/avelasquez/swapdesk/internal/model"
	"github.com/avelasquez/swapdesk/internal/out"
	"github.com/avelasquez/swapdesk/internal/rates"
	"github.com/avelasquez/swapdesk/internal/signer"
	"github.com/avelasquez/swapdesk/internal/swap"
	"github.com/avelasquez/swapdesk/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr, now: time.Now}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	log         *logrus.Logger
	lastCommand string

	engine  *swap.Engine
	ledger  swap.Ledger
	tracker *swap.Tracker
	clients *chain.RPCClients
	store   *swap.Store
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.close()
	if err == nil {
		return 0
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Custodial cross-chain swap desk",
		Long:  "swapdesk verifies balances on both legs of a custodial swap, tracks pending transfers awaiting wallet signature, and keeps the swap ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(settings.LogLevel, s.runner.stderr)
			s.lastCommand = trimRootPath(cmd.CommandPath())
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&s.flags.ConfigPath, "config", "", "path to config.yaml")
	flags.BoolVar(&s.flags.JSON, "json", false, "render results as JSON (default)")
	flags.BoolVar(&s.flags.Plain, "plain", false, "render results as plain k=v lines")
	flags.StringVar(&s.flags.EscrowAddr, "escrow", "", "escrow wallet address override")
	flags.StringVar(&s.flags.Sender, "from", "", "active wallet (sender) address override")
	flags.StringVar(&s.flags.ActiveChain, "network", "", "active wallet network, enforced for single-chain flows")
	flags.StringVar(&s.flags.FeePct, "fee", "", "swap fee percentage override")
	flags.StringVar(&s.flags.LedgerPath, "ledger", "", "swap ledger sqlite path override")
	flags.BoolVar(&s.flags.SyncPayout, "sync-payout", false, "pay the target leg immediately for same-chain swaps")
	flags.StringVar(&s.flags.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(
		s.newSwapCommand(),
		s.newReceiptCommand(),
		s.newDepositCommand(),
		s.newSettleCommand(),
		s.newSwapsCommand(),
		s.newTxCommand(),
		s.newChainsCommand(),
		s.newTokensCommand(),
		s.newVersionCommand(),
	)
	return cmd
}

// buildEngine constructs the engine and its collaborators on first use.
// The ledger is the sqlite store so receipts survive across invocations;
// the tracker stays process-local.
func (s *runtimeState) buildEngine() (*swap.Engine, error) {
	if s.engine != nil {
		return s.engine, nil
	}

	feePct, ok := new(big.Rat).SetString(strings.TrimSpace(s.settings.FeePct))
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid fee percentage %q", s.settings.FeePct))
	}
	table, err := rates.Defaults(feePct)
	if err != nil {
		return nil, err
	}

	store, err := swap.OpenStore(s.settings.LedgerPath, s.settings.LedgerLock)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open swap ledger", err)
	}
	s.store = store
	s.ledger = store

	defaultChain := chain.MustParse("ethereum")
	if s.settings.ActiveChain != "" {
		if c, err := chain.Parse(s.settings.ActiveChain); err == nil {
			defaultChain = c
		}
	}
	s.tracker = swap.NewTracker(defaultChain, s.log)
	s.clients = chain.NewRPCClients(s.settings.RPCOverrides)

	var escrowSigner signer.Signer
	if local, err := signer.NewLocalSignerFromEnv(); err == nil {
		escrowSigner = local
	}

	engine, err := swap.NewEngine(swap.EngineConfig{
		EscrowAddress: s.settings.EscrowAddress,
		SenderAddress: s.settings.SenderAddress,
		ActiveChain:   s.settings.ActiveChain,
		SyncPayout:    s.settings.SyncPayout,
		MinAmount:     s.settings.MinAmount,
		MaxAmount:     s.settings.MaxAmount,
		Rates:         table,
		Ledger:        s.ledger,
		Tracker:       s.tracker,
		Verifier:      swap.NewVerifier(s.clients, s.log),
		Clients:       s.clients,
		Signer:        escrowSigner,
		Logger:        s.log,
	})
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return engine, nil
}

func (s *runtimeState) close() {
	if s.clients != nil {
		s.clients.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.Code(code))
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newLogger(level string, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
	return log
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return swap.ToCLIError(err)
}

func isLikelyUsageError(err error) bool {
	msg := err.Error()
	for _, needle := range []string{"unknown command", "unknown flag", "invalid argument", "requires at least", "accepts at most", "accepts "} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func trimRootPath(path string) string {
	parts := strings.SplitN(strings.TrimSpace(path), " ", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return parts[0]
}
