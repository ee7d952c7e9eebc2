// Package chain is the transaction submission boundary: it resolves,
// signs and submits programmable transactions to a Sui fullnode.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vaultflow/internal/model"
	"vaultflow/internal/ptb"
	"vaultflow/internal/sui"
)

var (
	ErrSubmission      = errors.New("transaction submission failed")
	ErrExecutionFailed = errors.New("transaction execution failed")
	ErrInspection      = errors.New("transaction inspection failed")
)

// Signer signs transaction data for one address.
type Signer interface {
	Address() sui.Address
	SignTransaction(txBytes []byte) (string, error)
}

// Config tunes read retries. Submission itself is never retried.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
	PollInterval time.Duration
}

// Submitter submits and inspects transactions through a Client.
type Submitter struct {
	client *Client
	cfg    Config
	logger *zap.Logger
}

func NewSubmitter(client *Client, cfg Config, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Submitter{client: client, cfg: cfg, logger: logger}
}

// Submit resolves, signs and executes tx as one atomic unit. The object
// inputs of tx are resolved in place. A committed-but-aborted transaction
// returns its result together with ErrExecutionFailed.
func (s *Submitter) Submit(ctx context.Context, signer Signer, tx *ptb.Transaction, budget uint64) (model.SubmitResult, error) {
	if s.client == nil {
		return model.SubmitResult{}, fmt.Errorf("%w: chain client is nil", ErrSubmission)
	}
	if signer == nil {
		return model.SubmitResult{}, fmt.Errorf("%w: signer is nil", ErrSubmission)
	}
	sender := signer.Address()

	gas, err := s.resolve(ctx, sender, tx, budget)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: resolve: %v", ErrSubmission, err)
	}
	txBytes, err := ptb.TransactionData{Tx: tx, Sender: sender, Gas: gas}.MarshalBCS()
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: encode: %v", ErrSubmission, err)
	}
	signature, err := signer.SignTransaction(txBytes)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: sign: %v", ErrSubmission, err)
	}

	resp, err := s.client.executeTransactionBlock(ctx, txBytes, []string{signature})
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: execute: %v", ErrSubmission, err)
	}
	result := toSubmitResult(resp)
	s.logger.Debug("transaction executed",
		zap.String("digest", result.Digest),
		zap.String("status", result.Status),
		zap.Int("commands", len(tx.Commands)),
		zap.Int("object_changes", len(result.ObjectChanges)),
	)
	if !result.Succeeded() {
		return result, fmt.Errorf("%w: %s", ErrExecutionFailed, result.Error)
	}
	return result, nil
}

// Inspect dev-inspects tx as sender and returns each command's return values.
func (s *Submitter) Inspect(ctx context.Context, sender sui.Address, tx *ptb.Transaction) ([]model.CallResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: chain client is nil", ErrInspection)
	}
	if err := s.resolveObjects(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInspection, err)
	}
	kind, err := tx.MarshalKindBCS()
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrInspection, err)
	}

	var resp devInspectResponse
	err = withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		resp, err = s.client.devInspectTransactionBlock(ctx, sender, kind)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInspection, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrInspection, resp.Error)
	}
	if resp.Effects != nil && resp.Effects.Status.Status != model.StatusSuccess {
		return nil, fmt.Errorf("%w: %s", ErrInspection, resp.Effects.Status.Error)
	}
	return toCallResults(resp), nil
}

// WaitForConfirmation polls until digest is visible to the fullnode or timeout elapses.
func (s *Submitter) WaitForConfirmation(ctx context.Context, digest string, timeout time.Duration) (model.SubmitResult, error) {
	if s.client == nil {
		return model.SubmitResult{}, fmt.Errorf("chain client is nil")
	}
	if timeout <= 0 {
		return model.SubmitResult{Digest: digest}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp transactionResponse
	retries := int(timeout / s.cfg.PollInterval)
	err := withRetry(ctx, retries, s.cfg.PollInterval, func(ctx context.Context) error {
		var err error
		resp, err = s.client.getTransactionBlock(ctx, digest)
		if err == nil && resp.Effects == nil {
			err = fmt.Errorf("transaction %s has no effects yet", digest)
		}
		return err
	})
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("wait for %s: %w", digest, err)
	}
	return toSubmitResult(resp), nil
}
