// Package gateway brokers authenticated contract calls to a remote
// blockchain node: request shaping, retry with backoff, idempotent
// resubmission and error classification.
package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/internal/metrics"
	"github.com/pharos-rwa/pharos/ports"
)

// Config holds the gateway's tunables. Zero values fall back to the
// documented defaults.
type Config struct {
	ContractAddress common.Address
	ABIJSON         string // defaults to InvoiceABI
	SignerKey       *ecdsa.PrivateKey

	Backoff         BackoffPolicy
	AttemptTimeout  time.Duration // per-attempt deadline, distinct from backoff
	MaxInFlight     int           // admission limit for concurrent submissions
	SubmitRate      rate.Limit    // submissions per second towards the node
	ConfirmInterval time.Duration // receipt poll interval
	ConfirmTimeout  time.Duration // how long to poll before giving up on a receipt
	DedupRetention  time.Duration // completed-record retention window
}

func (c *Config) applyDefaults() {
	if c.ABIJSON == "" {
		c.ABIJSON = InvoiceABI
	}
	if c.Backoff.MaxAttempts == 0 {
		c.Backoff = DefaultBackoffPolicy()
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 8
	}
	if c.SubmitRate == 0 {
		c.SubmitRate = 5
	}
	if c.ConfirmInterval == 0 {
		c.ConfirmInterval = 2 * time.Second
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = 2 * time.Minute
	}
	if c.DedupRetention == 0 {
		c.DedupRetention = time.Hour
	}
}

// Gateway executes contract calls against one configured contract at
// one configured node, signing writes with one held credential.
type Gateway struct {
	node    ports.NodeClient
	cfg     Config
	abi     abi.ABI
	from    common.Address
	dedup   *Deduplicator
	sem     chan struct{}
	limiter *rate.Limiter
	signer  types.Signer
	log     zerolog.Logger

	// txMu serializes nonce acquisition and submission so concurrent
	// writes do not race for the same account nonce.
	txMu sync.Mutex
}

// New creates a gateway. The chain ID is fetched once from the node to
// derive the transaction signer.
func New(ctx context.Context, node ports.NodeClient, cfg Config, log zerolog.Logger) (*Gateway, error) {
	cfg.applyDefaults()

	if cfg.SignerKey == nil {
		return nil, fmt.Errorf("signing key is required")
	}

	parsed, err := abi.JSON(strings.NewReader(cfg.ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	chainID, err := node.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Gateway{
		node:    node,
		cfg:     cfg,
		abi:     parsed,
		from:    crypto.PubkeyToAddress(cfg.SignerKey.PublicKey),
		dedup:   NewDeduplicator(cfg.DedupRetention, time.Minute),
		sem:     make(chan struct{}, cfg.MaxInFlight),
		limiter: rate.NewLimiter(cfg.SubmitRate, cfg.MaxInFlight),
		log:     log.With().Str("component", "gateway").Logger(),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// Close releases the deduplicator's background resources.
func (g *Gateway) Close() {
	g.dedup.Close()
}

// Read executes a read-only call. Transient node failures are retried
// with bounded backoff; an invalid call is surfaced immediately.
func (g *Gateway) Read(ctx context.Context, req core.ContractCallRequest) (*core.ContractCallResult, error) {
	method, ok := g.abi.Methods[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownMethod, req.Method)
	}

	args, err := coerceArgs(method, req.Params)
	if err != nil {
		return nil, err
	}

	data, err := g.abi.Pack(req.Method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}

	var raw []byte
	err = g.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()

		out, err := g.node.CallContract(attemptCtx, ethereum.CallMsg{
			From: g.from,
			To:   &g.cfg.ContractAddress,
			Data: data,
		})
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("read", string(core.StatusFailed)).Inc()
		return nil, err
	}

	values, err := method.Outputs.UnpackValues(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack return data: %w", err)
	}

	metrics.GatewayCalls.WithLabelValues("read", string(core.StatusSuccess)).Inc()
	return &core.ContractCallResult{
		Status:     core.StatusSuccess,
		ReturnData: values,
	}, nil
}

// Write executes a state-changing call at most once per idempotency
// key. The returned result is Pending once the node accepts the
// transaction; the confirmation poller settles it to Success or
// Reverted.
func (g *Gateway) Write(ctx context.Context, req core.ContractCallRequest) (*core.ContractCallResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("write calls require an idempotency key")
	}

	method, ok := g.abi.Methods[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownMethod, req.Method)
	}
	if method.IsConstant() {
		return nil, fmt.Errorf("method %s is read-only", req.Method)
	}

	args, err := coerceArgs(method, req.Params)
	if err != nil {
		return nil, err
	}

	if req.Gas.Mode == "" && req.Gas.Multiplier.IsZero() {
		req.Gas = core.DefaultGasPolicy()
	}

	guard, cached, err := g.dedup.Begin(req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		g.log.Debug().Str("key", req.IdempotencyKey).Msg("returning cached write result")
		return cached, nil
	}

	// Admission limit: reject rather than queue unboundedly.
	select {
	case g.sem <- struct{}{}:
	default:
		guard.Abandon()
		return nil, core.ErrAdmissionLimitExceeded
	}
	metrics.GatewayInFlight.Inc()
	defer func() {
		<-g.sem
		metrics.GatewayInFlight.Dec()
	}()

	if err := g.limiter.Wait(ctx); err != nil {
		guard.Abandon()
		return nil, Classify(err)
	}

	data, err := g.abi.Pack(req.Method, args...)
	if err != nil {
		guard.Abandon()
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}

	txHash, err := g.submit(ctx, req.Gas, data)
	if err != nil {
		return g.completeFailedWrite(guard, req, err)
	}

	pending := &core.ContractCallResult{
		Status: core.StatusPending,
		TxHash: txHash.Hex(),
	}
	guard.Complete(pending)
	metrics.GatewayCalls.WithLabelValues("write", string(core.StatusPending)).Inc()

	g.log.Info().
		Str("key", req.IdempotencyKey).
		Str("method", req.Method).
		Str("tx_hash", pending.TxHash).
		Msg("transaction submitted")

	// The submission was accepted by the node; caller cancellation
	// must not abandon tracking of its true outcome.
	go g.trackConfirmation(context.WithoutCancel(ctx), req.IdempotencyKey, *txHash)

	return cloneResult(pending), nil
}

// completeFailedWrite maps a submission error onto the record state: a
// revert is cached as terminal, everything else frees the key so the
// caller may retry.
func (g *Gateway) completeFailedWrite(guard *Guard, req core.ContractCallRequest, err error) (*core.ContractCallResult, error) {
	if errors.Is(err, core.ErrContractReverted) {
		res := &core.ContractCallResult{
			Status:      core.StatusReverted,
			ErrorDetail: err.Error(),
		}
		guard.Complete(res)
		metrics.GatewayCalls.WithLabelValues("write", string(core.StatusReverted)).Inc()
		return cloneResult(res), err
	}

	guard.Abandon()
	metrics.GatewayCalls.WithLabelValues("write", string(core.StatusFailed)).Inc()

	return &core.ContractCallResult{
		Status:      core.StatusFailed,
		ErrorDetail: err.Error(),
	}, err
}

// submit builds, signs and sends the transaction, retrying transient
// failures. Nonce acquisition and send happen under txMu so retries
// and concurrent writes never reuse an account nonce.
func (g *Gateway) submit(ctx context.Context, gas core.GasPolicy, data []byte) (*common.Hash, error) {
	var txHash common.Hash

	err := g.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()

		g.txMu.Lock()
		defer g.txMu.Unlock()

		nonce, err := g.node.PendingNonceAt(attemptCtx, g.from)
		if err != nil {
			return err
		}

		gasLimit, gasPrice, err := g.gasParams(attemptCtx, gas, ethereum.CallMsg{
			From: g.from,
			To:   &g.cfg.ContractAddress,
			Data: data,
		})
		if err != nil {
			return err
		}

		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &g.cfg.ContractAddress,
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     data,
		})

		signed, err := types.SignTx(tx, g.signer, g.cfg.SignerKey)
		if err != nil {
			return fmt.Errorf("failed to sign transaction: %w", err)
		}

		if err := g.node.SendTransaction(attemptCtx, signed); err != nil {
			return err
		}

		txHash = signed.Hash()
		return nil
	})
	if err != nil {
		// Gas estimation failures are terminal and keep their own
		// sentinel; the backoff loop never retried them.
		return nil, err
	}

	return &txHash, nil
}

// trackConfirmation polls for the transaction receipt and settles the
// deduplication record once the outcome is known.
func (g *Gateway) trackConfirmation(ctx context.Context, key string, txHash common.Hash) {
	deadline := time.Now().Add(g.cfg.ConfirmTimeout)
	ticker := time.NewTicker(g.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.node.TransactionReceipt(ctx, txHash)
		if err == nil {
			res := &core.ContractCallResult{
				TxHash:      txHash.Hex(),
				BlockNumber: receipt.BlockNumber.Uint64(),
			}
			if receipt.Status == types.ReceiptStatusSuccessful {
				res.Status = core.StatusSuccess
			} else {
				res.Status = core.StatusReverted
				res.ErrorDetail = core.ErrContractReverted.Error()
			}

			g.dedup.Update(key, res)
			metrics.GatewayCalls.WithLabelValues("write", string(res.Status)).Inc()
			g.log.Info().
				Str("key", key).
				Str("tx_hash", res.TxHash).
				Uint64("block", res.BlockNumber).
				Str("status", string(res.Status)).
				Msg("transaction confirmed")
			return
		}

		if !errors.Is(err, ethereum.NotFound) && !core.Transient(Classify(err)) {
			g.log.Warn().Err(err).Str("tx_hash", txHash.Hex()).Msg("receipt poll failed")
		}

		if time.Now().After(deadline) {
			g.log.Warn().
				Str("key", key).
				Str("tx_hash", txHash.Hex()).
				Msg("gave up polling for receipt; record stays pending")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Status returns the recorded result for an idempotency key.
func (g *Gateway) Status(key string) (*core.ContractCallResult, error) {
	if res, ok := g.dedup.Lookup(key); ok {
		return res, nil
	}
	return nil, core.ErrCallNotFound
}

// Await blocks until the call recorded for key reaches a terminal
// state, or ctx is done.
func (g *Gateway) Await(ctx context.Context, key string) (*core.ContractCallResult, error) {
	return g.dedup.Await(ctx, key)
}
