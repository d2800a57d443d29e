package proposer

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"steward-hq/quaestor/pkg/budget"
)

// ErrNoAmount indicates no dollar amount could be extracted from the text.
var ErrNoAmount = errors.New("no amount detected in budget text")

// Proposal is the parsed intent extracted from free text.
type Proposal struct {
	// LimitUSD is the extracted amount.
	LimitUSD float64

	// Period is the detected budget period (per_episode when the text
	// names none).
	Period budget.Period

	// Action is the detected overflow action (warn when the text names
	// none).
	Action budget.Action

	// Name is the generated policy name: user_<period>_<cents>.
	Name string

	// Description summarizes the proposal for operators.
	Description string
}

var amountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)`)

// Keyword patterns checked in order; the first match wins.
var periodPatterns = []struct {
	period  budget.Period
	pattern *regexp.Regexp
}{
	{budget.PeriodPerOperation, regexp.MustCompile(`operation|single|individual|per call`)},
	{budget.PeriodPerEpisode, regexp.MustCompile(`episode|session|run`)},
	{budget.PeriodPerHour, regexp.MustCompile(`hour|hourly`)},
	{budget.PeriodPerDay, regexp.MustCompile(`day|daily`)},
	{budget.PeriodPerWeek, regexp.MustCompile(`week|weekly`)},
	{budget.PeriodPerMonth, regexp.MustCompile(`month|monthly`)},
}

var actionPatterns = []struct {
	action  budget.Action
	pattern *regexp.Regexp
}{
	{budget.ActionBlock, regexp.MustCompile(`block|stop|forbid|hard limit`)},
	{budget.ActionThrottle, regexp.MustCompile(`throttle|slow|rate`)},
	{budget.ActionDegrade, regexp.MustCompile(`degrade|quality|cheaper`)},
	{budget.ActionWarn, regexp.MustCompile(`warn|notify|alert`)},
}

// Parse extracts a policy proposal from free text.
func Parse(text string) (*Proposal, error) {
	lower := strings.ToLower(text)

	match := amountPattern.FindStringSubmatch(lower)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoAmount, text)
	}

	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNoAmount, text)
	}

	period := budget.PeriodPerEpisode
	for _, candidate := range periodPatterns {
		if candidate.pattern.MatchString(lower) {
			period = candidate.period
			break
		}
	}

	action := budget.ActionWarn
	for _, candidate := range actionPatterns {
		if candidate.pattern.MatchString(lower) {
			action = candidate.action
			break
		}
	}

	return &Proposal{
		LimitUSD:    amount,
		Period:      period,
		Action:      action,
		Name:        fmt.Sprintf("user_%s_%d", period, int(amount*100)),
		Description: fmt.Sprintf("User policy: $%.2f %s", amount, periodPhrase(period)),
	}, nil
}

// periodPhrase renders a period for descriptions.
func periodPhrase(period budget.Period) string {
	switch period {
	case budget.PeriodPerOperation:
		return "per operation"
	case budget.PeriodPerEpisode:
		return "per episode"
	case budget.PeriodPerHour:
		return "per hour"
	case budget.PeriodPerDay:
		return "per day"
	case budget.PeriodPerWeek:
		return "per week"
	case budget.PeriodPerMonth:
		return "per month"
	}
	return string(period)
}

// Proposer installs parsed proposals through a budget manager.
type Proposer struct {
	manager *budget.Manager
	logger  *slog.Logger
}

// New creates a proposer bound to a manager.
func New(manager *budget.Manager) *Proposer {
	return &Proposer{
		manager: manager,
		logger:  slog.Default().With("component", "proposer"),
	}
}

// CreateFromText parses the text and installs the resulting policy on
// behalf of userID. The manager validates invariants and applies the RBAC
// gate; parse failures and gate rejections surface unchanged.
func (p *Proposer) CreateFromText(text, userID string) (*budget.Policy, error) {
	proposal, err := Parse(text)
	if err != nil {
		return nil, err
	}

	policy, err := budget.NewPolicy(
		proposal.Name,
		proposal.Period,
		proposal.LimitUSD,
		proposal.Action,
		budget.WithDescription(proposal.Description),
	)
	if err != nil {
		return nil, err
	}

	installed, err := p.manager.InstallPolicy(policy, userID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("policy created from text",
		"user_id", userID,
		"policy", installed.Name,
		"limit_usd", installed.LimitUSD,
		"period", string(installed.Period),
	)

	return installed, nil
}
