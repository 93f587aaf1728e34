// Package stream consumes validated ledger and transaction notifications and
// converts them into normalized offer events and trade fills.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/ledger"
	"xrpl-gateway/internal/nodepool"
	"xrpl-gateway/internal/observability"
	"xrpl-gateway/internal/storage"
	"xrpl-gateway/internal/xrpl"
)

const (
	baseResubscribeDelay = 1 * time.Second
	maxResubscribeDelay  = 30 * time.Second
	eventBuffer          = 1000
)

// rippleEpochOffset converts ripple epoch seconds to Unix seconds.
const rippleEpochOffset = 946684800

// Config configures a Listener.
type Config struct {
	// Streams selects the protocol streams. Defaults to ledger + transactions.
	Streams []string
	// Accounts limits transaction notifications to these accounts. Empty
	// subscribes to the full transaction stream.
	Accounts []string
}

// Listener drives one long-lived subscription against the node pool, failing
// over to another endpoint when the stream dies.
type Listener struct {
	pool       *nodepool.Pool
	cfg        Config
	offerStore storage.OfferEventStore
	fillStore  storage.TradeFillStore
	metrics    *observability.Metrics
	now        func() time.Time

	events chan *domain.OfferEvent
}

// Option configures a Listener.
type Option func(*Listener)

// WithOfferEventStore persists normalized offer events.
func WithOfferEventStore(s storage.OfferEventStore) Option {
	return func(l *Listener) { l.offerStore = s }
}

// WithTradeFillStore persists per-transaction fills.
func WithTradeFillStore(s storage.TradeFillStore) Option {
	return func(l *Listener) { l.fillStore = s }
}

// WithMetrics wires the Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

// New creates a Listener.
func New(pool *nodepool.Pool, cfg Config, opts ...Option) *Listener {
	if len(cfg.Streams) == 0 {
		cfg.Streams = []string{"ledger", "transactions"}
	}
	l := &Listener{
		pool:   pool,
		cfg:    cfg,
		now:    time.Now,
		events: make(chan *domain.OfferEvent, eventBuffer),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Events returns the live feed of normalized offer events. The channel is
// closed when Run returns.
func (l *Listener) Events() <-chan *domain.OfferEvent {
	return l.events
}

// Run subscribes and processes notifications until ctx is cancelled. A dead
// stream demotes the endpoint and resubscribes elsewhere with backoff.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.events)

	delay := baseResubscribeDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ep, err := l.pool.Get(ctx)
		if err != nil {
			return err
		}

		msgCh, err := l.subscribe(ctx, ep)
		if err != nil {
			log.Printf("[stream] subscribe on %s failed: %v", ep.URL(), err)
			l.countError("subscribe")
			l.pool.MarkBad(ep.URL())
			if serr := sleepCtx(ctx, delay); serr != nil {
				return serr
			}
			delay = backoff(delay)
			continue
		}

		log.Printf("[stream] subscribed on %s (streams=%v accounts=%d)", ep.URL(), l.cfg.Streams, len(l.cfg.Accounts))
		delay = baseResubscribeDelay

		if err := l.consume(ctx, msgCh); err != nil {
			return err
		}

		// Stream closed underneath us; rotate and resubscribe.
		log.Printf("[stream] stream on %s closed, resubscribing", ep.URL())
		l.countError("stream_closed")
		l.pool.MarkBad(ep.URL())
		if serr := sleepCtx(ctx, delay); serr != nil {
			return serr
		}
		delay = backoff(delay)
	}
}

func (l *Listener) subscribe(ctx context.Context, ep *nodepool.Endpoint) (<-chan xrpl.StreamMessage, error) {
	if err := ep.Acquire(ctx, false); err != nil {
		return nil, err
	}
	rpc, err := ep.RPC(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.Subscribe(ctx, xrpl.SubscribeRequest{
		Streams:  l.cfg.Streams,
		Accounts: l.cfg.Accounts,
	})
}

// consume drains one subscription channel. Returns nil when the channel
// closes, or ctx.Err() on cancellation.
func (l *Listener) consume(ctx context.Context, msgCh <-chan xrpl.StreamMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			l.handleMessage(ctx, msg)
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, msg xrpl.StreamMessage) {
	switch msg.Type {
	case "ledgerClosed":
		if msg.Ledger == nil {
			return
		}
		if l.metrics != nil {
			l.metrics.LedgersProcessed.Inc()
			l.metrics.LastValidatedLedger.Set(float64(msg.Ledger.LedgerIndex))
		}
	case "transaction":
		if msg.Transaction == nil {
			return
		}
		l.handleTransaction(ctx, msg.Transaction)
	}
}

// txCommon is the subset of transaction fields the listener needs.
type txCommon struct {
	Account         string `json:"Account"`
	TransactionType string `json:"TransactionType"`
	Sequence        uint32 `json:"Sequence"`
	Hash            string `json:"hash"`
	Date            int64  `json:"date"`
}

func (l *Listener) handleTransaction(ctx context.Context, ev *xrpl.TransactionEvent) {
	// Only validated transactions carry final metadata.
	if !ev.Validated || ev.Meta == nil {
		return
	}
	if l.metrics != nil {
		l.metrics.TransactionsProcessed.Inc()
	}

	var tx txCommon
	if len(ev.Transaction) > 0 {
		if err := json.Unmarshal(ev.Transaction, &tx); err != nil {
			log.Printf("[stream] malformed transaction body: %v", err)
			l.countError("decode")
			return
		}
	}

	observedAt := l.now().UnixMilli()
	txIndex := uint32(ev.Meta.TransactionIndex)

	changes := ledger.ComputeOrderBookChanges(ev.Meta)
	offerEvents := make([]*domain.OfferEvent, 0, len(changes))
	for _, byAccount := range changes {
		for _, change := range byAccount.Changes {
			e := offerEventFromChange(byAccount.Account, change)
			e.LedgerIndex = ev.LedgerIndex
			e.TxHash = tx.Hash
			e.TxIndex = txIndex
			e.ObservedAt = observedAt
			offerEvents = append(offerEvents, e)
		}
	}

	for _, e := range offerEvents {
		select {
		case l.events <- e:
		default:
			// Consumer is behind; drop rather than stall the read loop.
			l.countError("event_backlog")
		}
	}

	if l.offerStore != nil && len(offerEvents) > 0 {
		if err := l.offerStore.InsertBulk(ctx, offerEvents); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			log.Printf("[stream] store offer events for %s: %v", tx.Hash, err)
			l.countError("store_offer_events")
		} else if err == nil && l.metrics != nil {
			l.metrics.OfferEventsStored.Add(float64(len(offerEvents)))
		}
	}

	if l.fillStore != nil && tx.TransactionType == "OfferCreate" {
		l.storeFill(ctx, ev, tx, observedAt)
	}
}

func (l *Listener) storeFill(ctx context.Context, ev *xrpl.TransactionEvent, tx txCommon, observedAt int64) {
	fill := ledger.ParseOfferCreateTransaction(&xrpl.TransactionResult{
		Hash:            tx.Hash,
		Account:         tx.Account,
		TransactionType: tx.TransactionType,
		Sequence:        tx.Sequence,
		LedgerIndex:     ev.LedgerIndex,
		Validated:       ev.Validated,
		Meta:            ev.Meta,
	})
	if fill.TakerGetsTransferred == nil || fill.TakerPaysTransferred == nil {
		return
	}

	executedAt := observedAt
	if tx.Date > 0 {
		executedAt = (tx.Date + rippleEpochOffset) * 1000
	}

	record := &domain.TradeFill{
		TxHash:      tx.Hash,
		LedgerIndex: ev.LedgerIndex,
		Account:     tx.Account,
		Sequence:    tx.Sequence,
		ExecutedAt:  executedAt,
	}
	record.GetsCurrency, record.GetsIssuer, record.GetsValue = amountColumns(*fill.TakerGetsTransferred)
	record.PaysCurrency, record.PaysIssuer, record.PaysValue = amountColumns(*fill.TakerPaysTransferred)
	if fill.Quality != nil {
		q := fill.Quality.String()
		record.Quality = &q
	}

	if err := l.fillStore.InsertBulk(ctx, []*domain.TradeFill{record}); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		log.Printf("[stream] store trade fill %s: %v", tx.Hash, err)
		l.countError("store_trade_fill")
	} else if err == nil && l.metrics != nil {
		l.metrics.TradeFillsStored.Inc()
	}
}

func offerEventFromChange(account string, change ledger.OfferChange) *domain.OfferEvent {
	e := &domain.OfferEvent{
		Maker:         account,
		OfferSequence: change.Sequence,
		Status:        string(change.Status),
		Expiration:    change.Expiration,
	}
	e.GetsCurrency, e.GetsIssuer, e.GetsDelta = amountColumns(change.TakerGetsDelta)
	e.PaysCurrency, e.PaysIssuer, e.PaysDelta = amountColumns(change.TakerPaysDelta)
	if change.Quality != nil {
		q := change.Quality.String()
		e.Quality = &q
	}
	return e
}

func amountColumns(a xrpl.Amount) (currency, issuer, value string) {
	if a.Native {
		return "XRP", "", a.Value.String()
	}
	return a.Currency, a.Issuer, a.Value.String()
}

func (l *Listener) countError(stage string) {
	if l.metrics != nil {
		l.metrics.StreamErrors.WithLabelValues(stage).Inc()
	}
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

func backoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxResubscribeDelay {
		return maxResubscribeDelay
	}
	return d
}
