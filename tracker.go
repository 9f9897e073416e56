package relays

import (
	"errors"
	"fmt"
	"time"

	"github.com/KyberNetwork/logger"
)

// spawnTracker starts a supervised confirmation tracker for (tx, handle).
// The caller returns immediately; the outcome reaches the supervisor's
// counters and the OutcomeHook.
func (e *Engine) spawnTracker(tx *UnsignedTx, handle string, ticks int) {
	e.mu.Lock()
	e.stats.Active++
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.recordOutcome(e.track(tx, handle, ticks))
	}()
}

// track is the per-transaction polling loop. Each iteration waits one poll
// interval, queries the receipt (skipped while the handle is unknown), and on
// no receipt recomputes the escalated price. A strictly higher price triggers
// a resubmission at the same nonce: the resubmission owns a fresh tracker and
// this one ends as superseded, so resubmission depth never nests.
func (e *Engine) track(tx *UnsignedTx, handle string, ticks int) TrackOutcome {
	for poll := 0; poll < e.cfg.MaxPolls; poll++ {
		select {
		case <-e.ctx.Done():
			return TrackOutcome{State: TrackAbandoned, Tx: tx, Handle: handle}
		case <-time.After(e.cfg.PollInterval):
		}

		if handle != "" {
			receipt, err := e.client.TransactionReceipt(e.ctx, handle)
			if err != nil {
				logger.WithFields(logger.Fields{
					"handle": handle,
					"error":  err,
				}).Debug("receipt query failed, treating as unmined")
			}
			if receipt != nil {
				logger.WithFields(logger.Fields{
					"handle": handle,
					"nonce":  tx.Nonce,
					"status": receipt.Status,
				}).Info("receipt observed")
				if receipt.Succeeded() {
					return TrackOutcome{State: TrackConfirmed, Tx: tx, Handle: handle}
				}
				// Mined but reverted: gas was spent for no effect. Always
				// surfaced, never swallowed.
				return TrackOutcome{
					State:  TrackFailed,
					Tx:     tx,
					Handle: handle,
					Err: errors.Join(ErrRevertedTransaction, fmt.Errorf(
						"tx %s at nonce %d mined with status %d",
						receipt.TxHash, tx.Nonce, receipt.Status,
					)),
				}
			}
		}

		ticks++
		escalated := e.pricer.Escalate(tx.Nonce, ticks, e.alloc.Highest())
		if escalated.Cmp(tx.GasPrice) > 0 {
			logger.WithFields(logger.Fields{
				"handle":    handle,
				"nonce":     tx.Nonce,
				"ticks":     ticks,
				"old_price": tx.GasPrice.String(),
				"new_price": escalated.String(),
			}).Info("escalating stuck transaction")

			next := tx.WithGasPrice(escalated)
			if err := e.Broadcast(e.ctx, next, true, ticks); err != nil {
				return TrackOutcome{State: TrackFailed, Tx: next, Handle: handle, Err: err}
			}
			return TrackOutcome{State: TrackSuperseded, Tx: tx, Handle: handle}
		}
	}

	return TrackOutcome{
		State:  TrackTimedOut,
		Tx:     tx,
		Handle: handle,
		Err: errors.Join(ErrStuckTransaction, fmt.Errorf(
			"no receipt for tx %q at nonce %d after %d polls, last gas price %s wei",
			handle, tx.Nonce, e.cfg.MaxPolls, tx.GasPrice,
		)),
	}
}

// recordOutcome updates the supervisor's counters, logs failures so abandoned
// capital is never silent, and invokes the outcome hook.
func (e *Engine) recordOutcome(out TrackOutcome) {
	e.mu.Lock()
	e.stats.Active--
	switch out.State {
	case TrackConfirmed:
		e.stats.Confirmed++
	case TrackFailed:
		e.stats.Failed++
	case TrackSuperseded:
		e.stats.Superseded++
	case TrackTimedOut:
		e.stats.TimedOut++
	case TrackAbandoned:
		e.stats.Abandoned++
	}
	e.mu.Unlock()

	if out.Err != nil {
		logger.WithFields(logger.Fields{
			"state":     out.State.String(),
			"handle":    out.Handle,
			"nonce":     out.Tx.Nonce,
			"gas_price": out.Tx.GasPrice.String(),
			"error":     out.Err,
		}).Error("transaction tracking ended in failure")
	}

	if e.outcomeHook != nil {
		e.outcomeHook(out)
	}
}

// Stats returns a snapshot of the tracker counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Wait blocks until every confirmation tracker has reached a terminal state.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close abandons in-flight trackers and waits for them to exit. In-flight
// transactions are left to the chain; a restart re-derives state via Init.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}
