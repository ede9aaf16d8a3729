package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"deposit-bridge/pkg/classify"
	"deposit-bridge/pkg/history"
	"deposit-bridge/pkg/parser"
	"deposit-bridge/pkg/session"
	"deposit-bridge/pkg/types"
)

var (
	noConfirm    bool
	quoteTimeout time.Duration
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount> <token> [on <chain>]",
	Short: "Deposit a holding into the settlement account",
	Long: `Deposit a holding into the settlement account.

The settlement asset on the settlement chain is transferred directly. Any
other holding is priced by the quote provider and bridged. Use "max" to
deposit the full balance.

Examples:
  deposit-bridge deposit 10 USDC on base
  deposit-bridge deposit 0.5 SOL
  deposit-bridge deposit max USDC on arbitrum --yes`,
	Args: cobra.MinimumNArgs(2),
	Run:  runDeposit,
}

func init() {
	rootCmd.AddCommand(depositCmd)

	depositCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	depositCmd.Flags().DurationVar(&quoteTimeout, "quote-timeout", 30*time.Second, "How long to wait for a quote")
}

func runDeposit(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	command, err := parser.ParseDepositCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	token, input, err := resolveHolding(cmd, a, command, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	ctrl := a.newController(spinnerStatus(s, jsonOutput))
	defer ctrl.Close()

	ctrl.SelectToken(token)
	sess := ctrl.SetAmount(input)
	if sess.Amount != input && !jsonOutput {
		color.Yellow("\nAmount capped at your balance: %s %s", sess.Amount, token.Symbol)
	}

	if sess.NeedsQuote() {
		sess, err = awaitQuote(ctx, ctrl, s, jsonOutput)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	display := quoteDisplay(token, sess.Amount, a.destination, sess.Quote)
	if !jsonOutput {
		displayQuote(display)
	}

	if !noConfirm && !jsonOutput {
		if !confirm("\nProceed with deposit? (y/N): ") {
			fmt.Println("\nDeposit cancelled.")
			return
		}
	}

	if !jsonOutput {
		s.Suffix = " Submitting deposit..."
		s.Start()
	}
	sess, err = ctrl.Execute(ctx)
	if !jsonOutput {
		s.Stop()
	}

	for err != nil && !jsonOutput && sess.Step == session.StepError && sess.ErrorKind.Retryable() {
		displayFailure(sess)
		recordDeposit(a, sess)
		if !confirm("\nRetry? (y/N): ") {
			os.Exit(1)
		}
		s.Suffix = " Retrying deposit..."
		s.Start()
		sess, err = ctrl.Retry(ctx)
		s.Stop()
	}

	if err == nil && !sess.Step.Terminal() {
		err = fmt.Errorf("deposit did not complete (step %s)", sess.Step)
	}
	record := recordDeposit(a, sess)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(struct {
			Quote  types.QuoteDisplay `json:"quote"`
			Record *history.Record    `json:"record"`
		}{display, record}, "", "  ")
		fmt.Println(string(jsonData))
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if err != nil {
		if sess.Step != session.StepError {
			printError(err)
		} else {
			displayFailure(sess)
		}
		os.Exit(1)
	}

	displaySuccess(sess)
}

// spinnerStatus shows session status messages as the spinner suffix. Updates
// arrive from executor goroutines while the spinner is rendering.
func spinnerStatus(s *spinner.Spinner, quiet bool) func(session.Session) {
	return func(sess session.Session) {
		if quiet || sess.StatusMessage == "" {
			return
		}
		s.Lock()
		s.Suffix = " " + sess.StatusMessage
		s.Unlock()
	}
}

// awaitQuote skips the debounce and waits for the first quote outcome
func awaitQuote(ctx context.Context, ctrl *session.Controller, s *spinner.Spinner, quiet bool) (session.Session, error) {
	if !quiet {
		s.Suffix = " Fetching quote..."
		s.Start()
		defer s.Stop()
	}

	ctrl.RefreshQuote()

	waitCtx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()
	sess, err := ctrl.Await(waitCtx, func(sess session.Session) bool {
		return sess.Quote != nil || (!sess.QuoteLoading && sess.QuoteError != "")
	})
	if err != nil {
		return sess, fmt.Errorf("no quote received: %w", err)
	}
	if sess.Quote == nil {
		return sess, fmt.Errorf("quote failed: %s", sess.QuoteError)
	}
	return sess, nil
}

// recordDeposit appends the outcome to history once a hash exists or the
// attempt failed. The record for a session is updated on retries.
func recordDeposit(a *app, sess session.Session) *history.Record {
	if !sess.Step.Terminal() {
		return nil
	}

	record := &history.Record{
		SessionID: sess.ID,
		Chain:     sess.Token.Chain.Name,
		Symbol:    sess.Token.Symbol,
		Amount:    sess.Amount,
		Direct:    sess.Direct(),
		Hash:      sess.TxHash,
		Confirmed: sess.Confirmed,
		Attempts:  sess.Attempts,
		Status:    history.StatusSubmitted,
	}
	switch {
	case sess.Step == session.StepError:
		record.Status = history.StatusFailed
		record.ErrorKind = string(sess.ErrorKind)
		record.Error = sess.Error
	case sess.Confirmed:
		record.Status = history.StatusConfirmed
	}

	var err error
	if existing := findSession(a.history, sess.ID); existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		err = a.history.Update(record)
	} else {
		err = a.history.Append(record)
	}
	if err != nil {
		logger.Warn().Err(err).Str("session", sess.ID).Msg("Failed to save deposit history")
	}
	return record
}

func findSession(store *history.Store, sessionID string) *history.Record {
	for _, r := range store.List() {
		if r.SessionID == sessionID {
			return r
		}
	}
	return nil
}

func displaySuccess(sess session.Session) {
	color.Green("\n✓ Deposit sent successfully!")
	fmt.Printf("  Transaction: %s\n", color.CyanString(sess.TxHash))
	if !sess.Confirmed {
		color.Yellow("  Not yet confirmed. Check later with:")
		color.Cyan("    deposit-bridge status %s --chain %s\n", sess.TxHash, sess.Token.Chain.Name)
		return
	}
	fmt.Printf("  Status:      %s\n\n", color.GreenString("confirmed"))
}

func displayFailure(sess session.Session) {
	color.Red("\n✗ %s", sess.Error)
	if sess.TxHash != "" {
		fmt.Printf("  Transaction: %s\n", color.CyanString(sess.TxHash))
	}
	if sess.ErrorKind != classify.KindNone && sess.ErrorKind != classify.KindUnclassified {
		fmt.Printf("  Reason:      %s\n", sess.ErrorKind)
	}
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
