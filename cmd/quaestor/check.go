package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/spf13/cobra"

	"steward-hq/quaestor/pkg/telemetry/logging"
	"steward-hq/quaestor/pkg/throttle"
)

var checkFlags struct {
	operation string
	cost      float64
	tokens    int
	user      string
	session   string
	policy    string
	apply     bool
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a single operation against the configured policies",
	Long: `Evaluate one operation against the budget policies and throttle
configuration, printing the combined decision as JSON.

By default the evaluation is a dry run: nothing is charged to the budget
and throttle backoff state is untouched. With --apply the operation's cost
is recorded and backoff state advances, exactly as on the hot path.

Examples:
  # Would a $0.05 LLM call be admitted?
  quaestor check --operation llm_call --cost 0.05

  # Check against a specific policy for a specific session
  quaestor check --operation llm_call --cost 0.05 \
    --policy default_episode --session demo-session

  # Record the cost as well
  quaestor check --operation llm_call --cost 0.05 --apply`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.operation, "operation", "o", "llm_call", "operation class")
	checkCmd.Flags().Float64Var(&checkFlags.cost, "cost", 0, "operation cost in USD")
	checkCmd.Flags().IntVar(&checkFlags.tokens, "tokens", 0, "token count attributed to the operation")
	checkCmd.Flags().StringVarP(&checkFlags.user, "user", "u", "", "user id")
	checkCmd.Flags().StringVarP(&checkFlags.session, "session", "s", "", "session (episode) id")
	checkCmd.Flags().StringVarP(&checkFlags.policy, "policy", "p", "", "budget policy name")
	checkCmd.Flags().BoolVar(&checkFlags.apply, "apply", false, "record the cost and advance backoff state")
}

// checkOutput is the JSON shape printed by the check command.
type checkOutput struct {
	Allowed         bool    `json:"allowed"`
	Action          string  `json:"action"`
	Policy          string  `json:"policy"`
	UsagePercentage float64 `json:"usage_percentage"`
	RemainingUSD    float64 `json:"remaining_usd"`
	Message         string  `json:"message"`

	ShouldThrottle bool    `json:"should_throttle"`
	ThrottleLevel  string  `json:"throttle_level"`
	DelayMS        int64   `json:"delay_ms"`
	QualityFactor  float64 `json:"quality_factor"`
	Reason         string  `json:"reason"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	// The one-shot command keeps stdout clean for the JSON decision:
	// engine logs go to stderr, at warn unless --verbose.
	cfg.Logging.Level = "warn"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Format = "text"
	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	_, service, err := buildEngine(cfg, false)
	if err != nil {
		return err
	}

	policy := checkFlags.policy
	if policy == "" {
		policy = cfg.Budget.DefaultPolicy
	}

	req := throttle.Request{
		Operation: checkFlags.operation,
		CostUSD:   checkFlags.cost,
		Tokens:    checkFlags.tokens,
		UserID:    checkFlags.user,
		SessionID: checkFlags.session,
		Policy:    policy,
	}

	var decision *throttle.Decision
	if checkFlags.apply {
		decision = service.Apply(cmd.Context(), req)
	} else {
		decision = service.Decide(cmd.Context(), req)
	}

	// Unknown policies fail open with unlimited remaining budget, which
	// JSON cannot represent; report it as -1.
	remaining := decision.Budget.RemainingUSD
	if math.IsInf(remaining, 1) {
		remaining = -1
	}

	out := checkOutput{
		Allowed:         decision.Budget.Allowed,
		Action:          string(decision.Budget.Action),
		Policy:          decision.Budget.PolicyName,
		UsagePercentage: decision.Budget.UsagePercentage,
		RemainingUSD:    remaining,
		Message:         decision.Budget.Message,
		ShouldThrottle:  decision.ShouldThrottle,
		ThrottleLevel:   decision.Level.String(),
		DelayMS:         decision.Delay.Milliseconds(),
		QualityFactor:   decision.QualityFactor,
		Reason:          decision.Reason,
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if decision.ShouldThrottle && checkFlags.apply && decision.Delay > 0 {
		// Honor the assigned delay so repeated --apply invocations pace
		// themselves the way an embedded caller would.
		if err := throttle.Wait(cmd.Context(), decision.Delay); err != nil {
			return err
		}
	}

	return nil
}
