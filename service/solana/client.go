package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/soltrade/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	SendRawTransaction(
		ctx context.Context,
		raw []byte,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetBlockHeight(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (uint64, error)
}

// ClientOptions tunes how the client talks to its RPC endpoint.
type ClientOptions struct {
	// Commitment used for blockhash, block height and confirmation checks. Defaults to confirmed.
	Commitment rpc.CommitmentType
	// RequestsPerSecond throttles outgoing RPC calls. Zero disables throttling.
	RequestsPerSecond int
}

// Client submits signed transactions and tracks them to confirmation.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc        RPCClient
	limiter    *rate.Limiter
	commitment rpc.CommitmentType
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, opts ClientOptions, m *metrics.Metrics, logger *slog.Logger) *Client {
	commitment := opts.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = opts.RequestsPerSecond
	}

	return &Client{
		rpc:        rpcClient,
		limiter:    rate.NewLimiter(limit, burst),
		commitment: commitment,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
	}
}

// Broadcast submits a signed transaction, retrying under policy.
// Returns the signature reported by the node on the first accepted submission.
func (c *Client) Broadcast(ctx context.Context, tx *solana.Transaction, policy RetryPolicy) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	maxAttempts := max(policy.MaxAttempts, 1)
	sendOpts := rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: c.commitment,
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts++

		var sig solana.Signature
		err := c.call(ctx, "SendTransaction", func() error {
			var sendErr error
			sig, sendErr = c.rpc.SendRawTransaction(ctx, raw, sendOpts)
			return sendErr
		})
		if err == nil {
			if c.metrics != nil {
				c.metrics.RecordBroadcastAttempts("success", attempts)
			}
			c.logger.InfoContext(ctx, "transaction broadcast",
				"signature", sig.String(),
				"attempts", attempts,
			)
			return sig, nil
		}

		lastErr = err
		if ctx.Err() != nil || attempt == maxAttempts-1 {
			break
		}

		reason := "error"
		backoff := policy.Backoff(attempt)
		if isRateLimited(err) {
			// Handle rate limiting (429 Too Many Requests) with the longest backoff
			reason = "rate_limit"
			backoff = max(backoff, policy.MaxBackoff)
		}

		c.logger.WarnContext(ctx, "broadcast attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"error", err,
			"backoff", backoff.String(),
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("SendTransaction", reason)
		}

		if err := sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	if c.metrics != nil {
		c.metrics.RecordBroadcastAttempts("error", attempts)
	}
	c.logger.ErrorContext(ctx, "broadcast failed",
		"attempts", attempts,
		"error", lastErr,
	)
	return solana.Signature{}, fmt.Errorf("broadcast failed after %d attempts: %w", attempts, lastErr)
}

// LatestBlockhash fetches a recent blockhash and its last valid block height.
func (c *Client) LatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var result *rpc.GetLatestBlockhashResult
	err := c.call(ctx, "GetLatestBlockhash", func() error {
		var callErr error
		result, callErr = c.rpc.GetLatestBlockhash(ctx, c.commitment)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("failed to get latest blockhash: empty response")
	}

	return &Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// Confirm polls until the signature reaches the client's commitment, the
// network reports it failed, the blockhash's validity window passes, or the
// timeout elapses.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, bh Blockhash, opts ConfirmOptions) (*Confirmation, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		conf, done, err := c.checkConfirmation(ctx, sig, bh)
		if done {
			outcome := "confirmed"
			switch {
			case errors.Is(err, ErrTransactionFailed):
				outcome = "failed"
			case errors.Is(err, ErrBlockhashExpired):
				outcome = "expired"
			}
			if c.metrics != nil {
				c.metrics.RecordConfirmation(outcome, time.Since(start).Seconds())
			}
			return conf, err
		}

		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return nil, parent.Err()
			}
			if c.metrics != nil {
				c.metrics.RecordConfirmation("timeout", time.Since(start).Seconds())
			}
			return nil, fmt.Errorf("%w after %s: %s", ErrConfirmTimeout, timeout, sig)
		case <-ticker.C:
		}
	}
}

// checkConfirmation performs one poll. done is false when the outcome is still unknown.
func (c *Client) checkConfirmation(ctx context.Context, sig solana.Signature, bh Blockhash) (*Confirmation, bool, error) {
	// Block height is read before the status so a transaction that lands
	// between the two calls is never reported as expired.
	var height uint64
	heightErr := c.call(ctx, "GetBlockHeight", func() error {
		var callErr error
		height, callErr = c.rpc.GetBlockHeight(ctx, c.commitment)
		return callErr
	})

	var result *rpc.GetSignatureStatusesResult
	err := c.call(ctx, "GetSignatureStatuses", func() error {
		var callErr error
		result, callErr = c.rpc.GetSignatureStatuses(ctx, false, sig)
		return callErr
	})
	if err != nil {
		c.logger.WarnContext(ctx, "signature status check failed",
			"signature", sig.String(),
			"error", err,
		)
		return nil, false, nil
	}

	if result != nil && len(result.Value) > 0 && result.Value[0] != nil {
		status := result.Value[0]
		if status.Err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
		}
		if c.satisfiesCommitment(status.ConfirmationStatus) {
			c.logger.InfoContext(ctx, "transaction confirmed",
				"signature", sig.String(),
				"slot", status.Slot,
				"status", string(status.ConfirmationStatus),
			)
			return &Confirmation{
				Signature: sig,
				Slot:      status.Slot,
				Status:    string(status.ConfirmationStatus),
			}, true, nil
		}
	}

	if heightErr == nil && bh.LastValidBlockHeight > 0 && height > bh.LastValidBlockHeight {
		return nil, true, fmt.Errorf("%w: block height %d passed %d", ErrBlockhashExpired, height, bh.LastValidBlockHeight)
	}

	return nil, false, nil
}

func (c *Client) satisfiesCommitment(status rpc.ConfirmationStatusType) bool {
	switch c.commitment {
	case rpc.CommitmentProcessed:
		return status != ""
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// call throttles and instruments a single RPC call.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
		if err != nil && isRateLimited(err) {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
	}
	return err
}

func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), "429")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
