package upload

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of balance polls after a deposit.
	DefaultMaxRetries = 120
	// DefaultPollInterval is the delay between balance polls.
	DefaultPollInterval = time.Second
)

// Node is the storage node side of funding.
type Node interface {
	DepositAddress(ctx context.Context) (string, error)
	Balance(ctx context.Context) (*big.Int, error)
	NotifyDeposit(ctx context.Context, txID string) error
}

// Funder moves amount to the deposit address and returns the id of the
// confirmed transaction.
type Funder interface {
	Transfer(ctx context.Context, to string, amount *big.Int) (string, error)
}

// PollState is the state of a balance poll after a deposit.
type PollState int

const (
	Polling PollState = iota
	Confirmed
	Exhausted
)

func (s PollState) String() string {
	switch s {
	case Polling:
		return "polling"
	case Confirmed:
		return "confirmed"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("PollState(%d)", int(s))
	}
}

// balancePoll tracks attempts against a fixed budget. Failed queries consume
// an attempt but leave the observed balance unchanged.
type balancePoll struct {
	attempt  int
	limit    int
	required *big.Int
	observed *big.Int
	state    PollState
}

func newBalancePoll(required, observed *big.Int, limit int) *balancePoll {
	return &balancePoll{limit: limit, required: required, observed: observed, state: Polling}
}

// observe records the outcome of one balance query and returns the new state.
func (p *balancePoll) observe(balance *big.Int, err error) PollState {
	if p.state != Polling {
		return p.state
	}
	p.attempt++
	if err == nil && balance != nil {
		p.observed = balance
	}
	switch {
	case p.observed.Cmp(p.required) >= 0:
		p.state = Confirmed
	case p.attempt >= p.limit:
		p.state = Exhausted
	}
	return p.state
}

// FundingResult reports what the gate did.
type FundingResult struct {
	Funded   bool
	Notified bool
	TxID     string
	Amount   *big.Int
	Balance  *big.Int
	Attempts int
}

// FundingGate makes sure the storage node holds at least the required amount
// before uploads start.
type FundingGate struct {
	Node         Node
	Funder       Funder
	MaxRetries   int
	PollInterval time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Ensure compares required against current, the freshly observed balance.
// When the balance is short it transfers the difference once, notifies the
// node, and polls the balance until it covers required or the retry budget is
// spent. Transient poll failures count as an attempt without an update.
func (g *FundingGate) Ensure(ctx context.Context, required, current *big.Int) (*FundingResult, error) {
	if current.Cmp(required) >= 0 {
		zap.L().Debug("Balance sufficient, no funding needed",
			zap.String("balance", current.String()),
			zap.String("required", required.String()))
		return &FundingResult{Balance: current}, nil
	}

	amount := new(big.Int).Sub(required, current)
	to, err := g.Node.DepositAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("get deposit address: %w", err)
	}
	txID, err := g.Funder.Transfer(ctx, to, amount)
	if err != nil {
		return nil, fmt.Errorf("fund storage balance: %w", err)
	}
	zap.L().Info("Deposit submitted",
		zap.String("txId", txID),
		zap.String("amount", amount.String()),
		zap.String("to", to))

	// The transfer is final once confirmed; the balance decides whether it
	// was credited, so a rejected notification does not stop the poll.
	res := &FundingResult{Funded: true, TxID: txID, Amount: amount, Notified: true}
	if err := g.Node.NotifyDeposit(ctx, txID); err != nil {
		res.Notified = false
		zap.L().Warn("Deposit notification failed, polling balance anyway", zap.String("txId", txID), zap.Error(err))
	}
	poll := newBalancePoll(required, current, g.maxRetries())
	for {
		balance, err := g.Node.Balance(ctx)
		if err != nil {
			zap.L().Debug("Balance query failed, retrying", zap.Int("attempt", poll.attempt+1), zap.Error(err))
		}
		state := poll.observe(balance, err)
		res.Attempts, res.Balance = poll.attempt, poll.observed

		switch state {
		case Confirmed:
			zap.L().Info("Deposit confirmed", zap.String("balance", poll.observed.String()), zap.Int("attempts", poll.attempt))
			return res, nil
		case Exhausted:
			zap.L().Error("Balance still insufficient after deposit",
				zap.String("balance", poll.observed.String()),
				zap.String("required", required.String()),
				zap.Int("attempts", poll.attempt))
			return res, &UploadError{
				Kind: KindInsufficientBalance,
				Err: fmt.Errorf("%w: balance %s below required %s after %d attempts",
					ErrInsufficientBalance, poll.observed, required, poll.attempt),
			}
		}

		if err := g.wait(ctx); err != nil {
			return res, err
		}
	}
}

func (g *FundingGate) maxRetries() int {
	if g.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return g.MaxRetries
}

func (g *FundingGate) wait(ctx context.Context) error {
	d := g.PollInterval
	if d <= 0 {
		d = DefaultPollInterval
	}
	if g.sleep != nil {
		return g.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
