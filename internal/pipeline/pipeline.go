// Package pipeline drives a transaction from intent to final ledger
// outcome: autofill, external signing, submission with bounded retries
// and polling until the transaction is validated, rejected or expired.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"xrpl-gateway/internal/nodepool"
	"xrpl-gateway/internal/xrpl"
)

// State is a lifecycle stage of a transaction inside the pipeline.
type State string

const (
	StateBuilding  State = "building"
	StateFilled    State = "filled"
	StateSigned    State = "signed"
	StateSubmitted State = "submitted"
	StateValidated State = "validated"
	StateRejected  State = "rejected"
	StateExpired   State = "expired"
)

const (
	DefaultFeeMultiplier           = 5
	DefaultLedgerOffset            = 20
	DefaultAutofillMaxRetry        = 3
	DefaultPlaceOrderMaxRetry      = 3
	DefaultPlaceOrderRetryInterval = 3 * time.Second
	DefaultVerifyMaxRetry          = 5
	DefaultVerifyRetryInterval     = 2 * time.Second
)

// Config bounds the retry behaviour of every pipeline stage.
type Config struct {
	FeeMultiplier           int64
	LedgerOffset            int64
	AutofillMaxRetry        int
	PlaceOrderMaxRetry      int
	PlaceOrderRetryInterval time.Duration
	VerifyMaxRetry          int
	VerifyRetryInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		FeeMultiplier:           DefaultFeeMultiplier,
		LedgerOffset:            DefaultLedgerOffset,
		AutofillMaxRetry:        DefaultAutofillMaxRetry,
		PlaceOrderMaxRetry:      DefaultPlaceOrderMaxRetry,
		PlaceOrderRetryInterval: DefaultPlaceOrderRetryInterval,
		VerifyMaxRetry:          DefaultVerifyMaxRetry,
		VerifyRetryInterval:     DefaultVerifyRetryInterval,
	}
}

// Wallet signs a rendered transaction and reports the blob plus its hash.
// Key handling stays outside the pipeline.
type Wallet interface {
	Address() string
	Sign(tx map[string]interface{}) (blob string, hash string, err error)
}

// Outcome describes a transaction that reached a final ledger state.
type Outcome struct {
	Hash                 string
	EngineResult         string
	ValidatedLedgerIndex int64
	SubmitAttempts       int
}

// SubmitError reports a transaction the network refused, either at
// submission time or in the validated ledger.
type SubmitError struct {
	Attempts     int
	EngineResult string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission failed after %d attempt(s): engine result %s", e.Attempts, e.EngineResult)
}

// ExpiredError reports a transaction whose LastLedgerSequence passed
// without the transaction appearing in a validated ledger. The final
// state on the network is unknown.
type ExpiredError struct {
	Hash               string
	LastLedgerSequence int64
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("transaction %s not found and ledger passed %d: final outcome unknown", e.Hash, e.LastLedgerSequence)
}

// Pipeline submits transactions through a node pool.
type Pipeline struct {
	pool      *nodepool.Pool
	wallet    Wallet
	config    Config
	sleep     func(ctx context.Context, d time.Duration) error
	onState   func(State)
	onOutcome func(result string, attempts int)
}

type Option func(*Pipeline)

// WithSleep replaces the inter-retry sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// WithStateFunc registers a callback invoked on every state transition.
func WithStateFunc(fn func(State)) Option {
	return func(p *Pipeline) { p.onState = fn }
}

// WithOutcomeFunc registers a callback invoked once per Run with the final
// engine result (or "expired") and the submit attempts used.
func WithOutcomeFunc(fn func(result string, attempts int)) Option {
	return func(p *Pipeline) { p.onOutcome = fn }
}

func New(pool *nodepool.Pool, wallet Wallet, config Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		pool:   pool,
		wallet: wallet,
		config: config,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) transition(s State) {
	if p.onState != nil {
		p.onState(s)
	}
}

func (p *Pipeline) finish(result string, attempts int) {
	if p.onOutcome != nil {
		p.onOutcome(result, attempts)
	}
}

// Run drives tx through the full lifecycle and blocks until a final
// outcome. On success the transaction is in a validated ledger; every
// error path names whether the failure is definitive or unknown.
func (p *Pipeline) Run(ctx context.Context, tx *Transaction) (*Outcome, error) {
	p.transition(StateBuilding)
	if err := p.Autofill(ctx, tx); err != nil {
		return nil, err
	}
	p.transition(StateFilled)

	blob, hash, err := p.wallet.Sign(tx.WireJSON())
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	p.transition(StateSigned)
	log.Printf("[pipeline] signed %s %s hash=%s", tx.TransactionType, tx.Account, hash)

	attempts, err := p.Submit(ctx, blob)
	if err != nil {
		p.transition(StateRejected)
		var submitErr *SubmitError
		if errors.As(err, &submitErr) {
			p.finish(submitErr.EngineResult, attempts)
		}
		return nil, err
	}
	p.transition(StateSubmitted)

	outcome, err := p.WaitForFinalOutcome(ctx, hash, tx.LastLedgerSequence)
	if err != nil {
		var expired *ExpiredError
		var submitErr *SubmitError
		switch {
		case errors.As(err, &expired):
			p.transition(StateExpired)
			p.finish("expired", attempts)
		case errors.As(err, &submitErr):
			p.transition(StateRejected)
			p.finish(submitErr.EngineResult, attempts)
		default:
			p.transition(StateRejected)
		}
		return nil, err
	}
	outcome.SubmitAttempts = attempts
	p.transition(StateValidated)
	p.finish(outcome.EngineResult, attempts)
	log.Printf("[pipeline] validated %s in ledger %d (%s)", outcome.Hash, outcome.ValidatedLedgerIndex, outcome.EngineResult)
	return outcome, nil
}

// withNode runs fn against the current pool endpoint, consuming one
// rate-limit slot first. Any failure demotes the endpoint so the next
// call lands on an alternative. The endpoint that served the call is
// returned so callers can demote it on a domain-level refusal too.
func (p *Pipeline) withNode(ctx context.Context, useBurst bool, fn func(rpc xrpl.RPC) error) (*nodepool.Endpoint, error) {
	ep, err := p.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := ep.Acquire(ctx, useBurst); err != nil {
		return ep, err
	}
	rpc, err := ep.RPC(ctx)
	if err != nil {
		p.pool.MarkBad(ep.URL())
		return ep, err
	}
	if err := fn(rpc); err != nil {
		if ctx.Err() == nil {
			p.pool.MarkBad(ep.URL())
		}
		return ep, err
	}
	return ep, nil
}

// Autofill resolves fee, sequence, expiry ledger and network id from
// the current node, rotating on failure up to AutofillMaxRetry times.
func (p *Pipeline) Autofill(ctx context.Context, tx *Transaction) error {
	var lastErr error
	for attempt := 1; attempt <= p.config.AutofillMaxRetry; attempt++ {
		_, err := p.withNode(ctx, true, func(rpc xrpl.RPC) error {
			return p.fill(ctx, rpc, tx)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		log.Printf("[pipeline] autofill attempt %d/%d failed: %v", attempt, p.config.AutofillMaxRetry, err)
	}
	return fmt.Errorf("autofill failed after %d attempts: %w", p.config.AutofillMaxRetry, lastErr)
}

func (p *Pipeline) fill(ctx context.Context, rpc xrpl.RPC, tx *Transaction) error {
	info, err := rpc.ServerInfo(ctx)
	if err != nil {
		return fmt.Errorf("server_info: %w", err)
	}
	fee, err := rpc.Fee(ctx)
	if err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	account, err := rpc.AccountInfo(ctx, tx.Account)
	if err != nil {
		return fmt.Errorf("account_info %s: %w", tx.Account, err)
	}
	current, err := rpc.LedgerCurrent(ctx)
	if err != nil {
		return fmt.Errorf("ledger_current: %w", err)
	}

	baseFee, err := decimal.NewFromString(fee.BaseFee)
	if err != nil {
		return fmt.Errorf("parse base fee %q: %w", fee.BaseFee, err)
	}
	tx.Fee = baseFee.Mul(decimal.NewFromInt(p.config.FeeMultiplier)).String()
	tx.Sequence = account.Sequence
	tx.LastLedgerSequence = current + p.config.LedgerOffset
	tx.NetworkID = info.NetworkID
	return nil
}

// Submit pushes a signed blob until a node accepts it with a tes
// preliminary result. Resubmitting the same blob is safe: the network
// deduplicates by hash. Returns the number of attempts used.
func (p *Pipeline) Submit(ctx context.Context, blob string) (int, error) {
	lastResult := "unavailable"
	for attempt := 1; attempt <= p.config.PlaceOrderMaxRetry; attempt++ {
		var result *xrpl.SubmitResult
		ep, err := p.withNode(ctx, true, func(rpc xrpl.RPC) error {
			r, err := rpc.Submit(ctx, blob)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		switch {
		case err == nil && isSuccess(result.EngineResult):
			return attempt, nil
		case err == nil:
			lastResult = result.EngineResult
			log.Printf("[pipeline] submit attempt %d/%d refused: %s (%s)",
				attempt, p.config.PlaceOrderMaxRetry, result.EngineResult, result.EngineResultMessage)
			// A refused preliminary result still has to land on a
			// different node next time around: demote the node that
			// answered, not whichever is current by now.
			p.pool.MarkBad(ep.URL())
		default:
			if ctx.Err() != nil {
				return attempt, ctx.Err()
			}
			log.Printf("[pipeline] submit attempt %d/%d failed: %v", attempt, p.config.PlaceOrderMaxRetry, err)
		}
		if attempt < p.config.PlaceOrderMaxRetry {
			if serr := p.sleep(ctx, p.config.PlaceOrderRetryInterval); serr != nil {
				return attempt, serr
			}
		}
	}
	return p.config.PlaceOrderMaxRetry, &SubmitError{
		Attempts:     p.config.PlaceOrderMaxRetry,
		EngineResult: lastResult,
	}
}

// WaitForFinalOutcome polls the transaction by hash until it appears in
// a validated ledger or the expiry ledger passes. A not-yet-found
// transaction is only declared expired once the current ledger index is
// beyond lastLedgerSequence; until then the poll keeps going.
func (p *Pipeline) WaitForFinalOutcome(ctx context.Context, hash string, lastLedgerSequence int64) (*Outcome, error) {
	failures := 0
	for {
		var tx *xrpl.TransactionResult
		_, err := p.withNode(ctx, false, func(rpc xrpl.RPC) error {
			t, err := rpc.Tx(ctx, hash)
			if err != nil {
				return err
			}
			tx = t
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures > p.config.VerifyMaxRetry {
				return nil, fmt.Errorf("verify transaction %s: %w", hash, err)
			}
			if serr := p.sleep(ctx, p.config.VerifyRetryInterval); serr != nil {
				return nil, serr
			}
			continue
		}
		failures = 0

		if tx != nil && tx.Validated {
			engineResult := ""
			if tx.Meta != nil {
				engineResult = tx.Meta.TransactionResult
			}
			if !isSuccess(engineResult) {
				return nil, &SubmitError{Attempts: 1, EngineResult: engineResult}
			}
			return &Outcome{
				Hash:                 hash,
				EngineResult:         engineResult,
				ValidatedLedgerIndex: tx.LedgerIndex,
			}, nil
		}

		var current int64
		_, err = p.withNode(ctx, false, func(rpc xrpl.RPC) error {
			c, err := rpc.LedgerCurrent(ctx)
			if err != nil {
				return err
			}
			current = c
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures > p.config.VerifyMaxRetry {
				return nil, fmt.Errorf("verify transaction %s: %w", hash, err)
			}
		} else if tx == nil && current > lastLedgerSequence {
			return nil, &ExpiredError{Hash: hash, LastLedgerSequence: lastLedgerSequence}
		}

		if serr := p.sleep(ctx, p.config.VerifyRetryInterval); serr != nil {
			return nil, serr
		}
	}
}

func isSuccess(engineResult string) bool {
	return strings.HasPrefix(engineResult, "tes")
}
