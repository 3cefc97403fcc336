// Package pipeline executes a validated trade: build, sign, broadcast,
// confirm and record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/soltrade/service/ledger"
	"github.com/brojonat/soltrade/service/metrics"
	natspkg "github.com/brojonat/soltrade/service/nats"
	"github.com/brojonat/soltrade/service/solana"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/brojonat/soltrade/service/tradeapi"
	"github.com/brojonat/soltrade/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
)

// TransactionBuilder requests unsigned trade transactions.
type TransactionBuilder interface {
	BuildTransaction(ctx context.Context, req tradeapi.TradeRequest) (string, error)
}

// Network submits signed transactions and tracks them to confirmation.
type Network interface {
	LatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
	Broadcast(ctx context.Context, tx *solanago.Transaction, policy solana.RetryPolicy) (solanago.Signature, error)
	Confirm(ctx context.Context, sig solanago.Signature, bh solana.Blockhash, opts solana.ConfirmOptions) (*solana.Confirmation, error)
}

// Signer is the wallet session a trade is signed with.
type Signer interface {
	State() wallet.State
	Sign(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error)
}

// Config bounds broadcast retries and confirmation polling.
type Config struct {
	Retry   solana.RetryPolicy
	Confirm solana.ConfirmOptions
}

// Pipeline runs trades end to end. It is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	builder   TransactionBuilder
	network   Network
	ledger    *ledger.Ledger
	publisher natspkg.Publisher
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a pipeline. publisher and m may be nil. A nil notifier logs outcomes.
func New(
	cfg Config,
	builder TransactionBuilder,
	network Network,
	trades *ledger.Ledger,
	publisher natspkg.Publisher,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Pipeline{
		cfg:       cfg,
		builder:   builder,
		network:   network,
		ledger:    trades,
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs one trade. It always appends exactly one record to the ledger
// and returns it. On failure the returned error wraps one of the package's
// sentinels and the record carries the matching reason.
func (p *Pipeline) Execute(ctx context.Context, intent *trade.Intent, signer Signer) (*ledger.Record, error) {
	var state wallet.State
	if signer != nil {
		state = signer.State()
	}

	rec := ledger.NewRecord(intent, "", p.now())
	if state.Connected() {
		rec.WalletAddress = state.Address.String()
	}

	logger := p.logger.With(
		"trade_id", rec.ID,
		"direction", string(intent.Direction),
		"token", intent.Token.Symbol,
		"amount", intent.Amount.String(),
	)
	logger.InfoContext(ctx, "executing trade", "wallet", rec.WalletAddress)

	sig, err := p.run(ctx, logger, intent, signer, state, rec)
	if sig != (solanago.Signature{}) {
		rec.Signature = sig.String()
	}

	if err != nil {
		rec.Status = ledger.StatusFailed
		rec.Reason = Reason(err)
		rec.Error = err.Error()
		logger.WarnContext(ctx, "trade failed", "reason", rec.Reason, "error", err)
	} else {
		rec.Status = ledger.StatusCompleted
		logger.InfoContext(ctx, "trade completed", "signature", rec.Signature)
	}

	stored, added := p.ledger.Append(rec)
	if !added {
		logger.WarnContext(ctx, "completed trade already recorded", "signature", rec.Signature)
	}

	if p.metrics != nil {
		p.metrics.RecordTrade(string(intent.Direction), string(stored.Status), stored.Reason)
	}

	eventType := natspkg.EventTradeCompleted
	if err != nil {
		eventType = natspkg.EventTradeFailed
	}
	p.publish(ctx, logger, eventType, stored)
	p.notifier.Notify(ctx, notificationFor(stored, err))

	return &stored, err
}

// run performs the stages in order and returns the broadcast signature, if
// any, with the first failure.
func (p *Pipeline) run(
	ctx context.Context,
	logger *slog.Logger,
	intent *trade.Intent,
	signer Signer,
	state wallet.State,
	draft ledger.Record,
) (solanago.Signature, error) {
	var noSig solanago.Signature

	if signer == nil || !state.Connected() {
		return noSig, ErrNoWalletSession
	}

	amount, err := intent.BaseUnits()
	if err != nil {
		return noSig, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}

	var payload string
	err = p.stage("quote", func() error {
		var buildErr error
		payload, buildErr = p.builder.BuildTransaction(ctx, tradeapi.TradeRequest{
			Action:        actionFor(intent.Direction),
			TokenAddress:  intent.Token.Address,
			WalletAddress: state.Address.String(),
			Slippage:      intent.Slippage(),
			Amount:        amount,
		})
		return buildErr
	})
	if err != nil {
		return noSig, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}

	var tx *solanago.Transaction
	err = p.stage("decode", func() error {
		var decodeErr error
		if tx, decodeErr = solana.DecodeTransaction(payload); decodeErr != nil {
			return decodeErr
		}
		return solana.RequireSigner(tx, state.Address)
	})
	if err != nil {
		return noSig, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	summary := solana.Inspect(tx)
	logger.DebugContext(ctx, "decoded trade transaction",
		"instructions", summary.InstructionCount,
		"signers", len(summary.Signers),
		"versioned", summary.Versioned,
	)

	var signed *solanago.Transaction
	err = p.stage("sign", func() error {
		var signErr error
		signed, signErr = signer.Sign(ctx, tx)
		return signErr
	})
	switch {
	case errors.Is(err, wallet.ErrSigningRejected):
		return noSig, fmt.Errorf("%w: %v", ErrSigningRejected, err)
	case errors.Is(err, wallet.ErrNotConnected):
		return noSig, fmt.Errorf("%w: wallet disconnected before signing", ErrNoWalletSession)
	case err != nil:
		return noSig, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	var sig solanago.Signature
	err = p.stage("broadcast", func() error {
		var sendErr error
		sig, sendErr = p.network.Broadcast(ctx, signed, p.cfg.Retry)
		return sendErr
	})
	if err != nil {
		return noSig, fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}

	draft.Signature = sig.String()
	logger.InfoContext(ctx, "trade broadcast", "signature", draft.Signature)
	p.publish(ctx, logger, natspkg.EventTradePending, draft)

	var bh *solana.Blockhash
	err = p.stage("blockhash", func() error {
		var bhErr error
		bh, bhErr = p.network.LatestBlockhash(ctx)
		return bhErr
	})
	if err != nil {
		return sig, fmt.Errorf("%w: no blockhash to confirm against: %v", ErrConfirmationTimeout, err)
	}

	err = p.stage("confirm", func() error {
		_, confirmErr := p.network.Confirm(ctx, sig, *bh, p.cfg.Confirm)
		return confirmErr
	})
	switch {
	case errors.Is(err, solana.ErrTransactionFailed):
		return sig, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	case err != nil:
		return sig, fmt.Errorf("%w: %v", ErrConfirmationTimeout, err)
	}

	return sig, nil
}

// stage runs fn and records its duration.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if p.metrics != nil {
		p.metrics.RecordStage(name, err, time.Since(start).Seconds())
	}
	return err
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, eventType string, rec ledger.Record) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishTrade(ctx, natspkg.FromRecord(eventType, rec)); err != nil {
		// Event delivery is best effort; the ledger is the record of truth.
		logger.WarnContext(ctx, "failed to publish trade event", "type", eventType, "error", err)
	}
}

func actionFor(d trade.Direction) tradeapi.Action {
	if d == trade.Sell {
		return tradeapi.ActionSell
	}
	return tradeapi.ActionBuy
}
