package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Reconcile replays writes captured by the fallback store against the
// primary store, oldest first. It stops at the first transient failure so
// ordering is preserved; replayed ops are removed from the queue. A debit
// that no longer fits the primary balance is dropped and logged loudly
// rather than poisoning the queue.
func (s *Service) Reconcile(ctx context.Context) error {
	ops := s.fallback.PendingOps()
	if len(ops) == 0 {
		return nil
	}

	replayed := 0
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpCredit:
			_, err = s.balances.CreditCoins(op.StudentID, op.Amount)
		case OpDebit:
			_, err = s.balances.DebitCoins(op.StudentID, op.Amount)
			if errors.Is(err, ErrInsufficientFunds) {
				s.logger.Error("dropping unreplayable debit, balance diverged while degraded",
					"student_id", op.StudentID, "amount", op.Amount, "queued_at", op.At)
				err = nil
			}
		case OpAddEntry:
			_, err = s.collections.InsertEntry(op.StudentID, op.PokemonID, op.Source)
		default:
			s.logger.Error("dropping unknown pending op", "kind", op.Kind)
		}

		if err != nil {
			if taxonomyError(err) {
				// Definitive failure (e.g. the student was removed); the op
				// can never succeed, so drop it.
				s.logger.Error("dropping unreplayable pending op",
					"kind", op.Kind, "student_id", op.StudentID, "error", err)
			} else {
				break
			}
		}
		replayed++

		if ctx.Err() != nil {
			break
		}
	}

	if replayed > 0 {
		if err := s.fallback.MarkReplayed(replayed); err != nil {
			return fmt.Errorf("mark replayed: %w", err)
		}
		s.logger.Info("reconciled fallback writes", "replayed", replayed, "remaining", len(ops)-replayed)
	}
	return nil
}
