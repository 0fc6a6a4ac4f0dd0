package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/sequence"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// TxRepository exposes the transactional operations the state machine
// composes. Line updates replace the whole row under its lock so the
// embedded batch arrays never drift.
type TxRepository interface {
	batch.TxLedger
	GetBatches(ctx context.Context, ids []int64) (map[int64]batch.Batch, error)
	NextSequence(ctx context.Context, docType sequence.DocType) (string, error)
	InsertTransfer(ctx context.Context, t Transfer) (int64, error)
	InsertLines(ctx context.Context, transferID int64, lines []Line) error
	GetTransfer(ctx context.Context, id int64) (Transfer, error)
	GetLineForUpdate(ctx context.Context, transferID, lineID int64) (Line, error)
	UpdateLine(ctx context.Context, line Line) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransfer(ctx context.Context, id int64) (Transfer, error)
}

// SettingsPort supplies the inventory configuration.
type SettingsPort interface {
	Inventory(ctx context.Context) (settings.Inventory, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against duplicate submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service drives transfers through their lifecycle. A line starts fully in
// transit and closes once receives and returns account for every unit;
// both moves are partial and repeatable.
type Service struct {
	repo        RepositoryPort
	settings    SettingsPort
	audit       AuditPort
	idempotency IdempotencyPort
}

// NewService builds Service. Audit and idempotency may be nil.
func NewService(repo RepositoryPort, settingsPort SettingsPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, settings: settingsPort, audit: audit, idempotency: idem}
}

// Send allocates stock at the sender under the configured policy and puts
// it in transit toward the receiver.
func (s *Service) Send(ctx context.Context, input SendInput) (Transfer, error) {
	if err := input.validate(); err != nil {
		return Transfer{}, err
	}

	inv, err := s.settings.Inventory(ctx)
	if err != nil {
		return Transfer{}, err
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if _, err := uuid.Parse(input.IdempotencyKey); err != nil {
			return Transfer{}, fmt.Errorf("idempotency key must be a uuid: %w", shared.ErrValidation)
		}
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "transfer"); err != nil {
			return Transfer{}, err
		}
		insertedKey = true
	}

	var result Transfer
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seqID, err := tx.NextSequence(ctx, sequence.DocTransfer)
		if err != nil {
			return err
		}
		header := Transfer{
			SequenceID:         seqID,
			SenderLocationID:   input.SenderLocationID,
			ReceiverLocationID: input.ReceiverLocationID,
			CreatedBy:          input.ActorID,
		}
		transferID, err := tx.InsertTransfer(ctx, header)
		if err != nil {
			return err
		}

		lines := make([]Line, 0, len(input.Lines))
		for _, in := range input.Lines {
			allocated, err := batch.StockOut(ctx, tx, in.ProductID, input.SenderLocationID,
				in.Quantity, inv.Method, inv.ConsiderExpiryDate)
			if err != nil {
				return err
			}
			sending := make([]SendingBatch, 0, len(allocated))
			for _, al := range allocated {
				sending = append(sending, SendingBatch{
					BatchID:     al.BatchID,
					Quantity:    al.Quantity,
					ReceivedQty: decimal.Zero,
				})
			}
			lines = append(lines, Line{
				TransferID:       transferID,
				ProductID:        in.ProductID,
				TotalQuantity:    in.Quantity,
				ReturnedQuantity: decimal.Zero,
				SendingBatches:   sending,
			})
		}
		if err := tx.InsertLines(ctx, transferID, lines); err != nil {
			return err
		}

		header.ID = transferID
		header.Lines = lines
		result = header
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Transfer{}, err
	}

	s.auditAction(ctx, input.ActorID, "transfer:send", result.SequenceID, map[string]any{
		"sender_location_id":   input.SenderLocationID,
		"receiver_location_id": input.ReceiverLocationID,
		"lines":                len(result.Lines),
	})
	return result, nil
}

// Receive materialises in-transit stock at the receiver. It walks the
// sending batches in send order and creates one new batch per consumed
// entry, carrying the source batch's unit cost and expiry date. Partial
// receives are fine; call again for the rest.
func (s *Service) Receive(ctx context.Context, input MoveInput) (Line, error) {
	if err := input.validate(); err != nil {
		return Line{}, err
	}

	var result Line
	var seqID string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, err := tx.GetTransfer(ctx, input.TransferID)
		if err != nil {
			return err
		}
		line, err := tx.GetLineForUpdate(ctx, input.TransferID, input.LineID)
		if err != nil {
			return err
		}
		if input.Quantity.GreaterThan(line.InTransit()) {
			return fmt.Errorf("requested %s exceeds in-transit %s: %w",
				input.Quantity, line.InTransit(), shared.ErrInsufficientRemainingQuantity)
		}

		ids := make([]int64, 0, len(line.SendingBatches))
		for _, sb := range line.SendingBatches {
			ids = append(ids, sb.BatchID)
		}
		sources, err := tx.GetBatches(ctx, ids)
		if err != nil {
			return err
		}

		want := input.Quantity
		for i := range line.SendingBatches {
			if want.IsZero() {
				break
			}
			sb := &line.SendingBatches[i]
			unreceived := sb.Unreceived()
			if unreceived.Sign() <= 0 {
				continue
			}
			take := decimal.Min(unreceived, want)

			source, ok := sources[sb.BatchID]
			if !ok {
				return fmt.Errorf("source batch %d: %w", sb.BatchID, shared.ErrNotFound)
			}
			created, err := batch.StockIn(ctx, tx, batch.CreateParams{
				ProductID:  line.ProductID,
				LocationID: header.ReceiverLocationID,
				Quantity:   take,
				UnitCost:   source.UnitCost,
				ExpiryDate: source.ExpiryDate,
			})
			if err != nil {
				return err
			}

			sb.ReceivedQty = sb.ReceivedQty.Add(take)
			line.ReceivingBatches = append(line.ReceivingBatches, batch.AllocationLine{
				BatchID:  created.ID,
				Quantity: take,
			})
			want = want.Sub(take)
		}
		if !want.IsZero() {
			return fmt.Errorf("sending batches cannot cover %s more: %w",
				want, shared.ErrInsufficientRemainingQuantity)
		}

		if err := tx.UpdateLine(ctx, line); err != nil {
			return err
		}
		seqID = header.SequenceID
		result = line
		return nil
	})
	if err != nil {
		return Line{}, err
	}

	s.auditAction(ctx, input.ActorID, "transfer:receive", seqID, map[string]any{
		"line_id":  input.LineID,
		"quantity": input.Quantity.String(),
	})
	return result, nil
}

// Return restores in-transit stock to its original sender batches. The walk
// runs in reverse send order, last out first back, regardless of the
// inventory method used at send time. Entries that never contributed to a
// receipt disappear once fully returned; partially received entries shrink
// in place so the receive history stays intact.
func (s *Service) Return(ctx context.Context, input MoveInput) (Line, error) {
	if err := input.validate(); err != nil {
		return Line{}, err
	}

	var result Line
	var seqID string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, err := tx.GetTransfer(ctx, input.TransferID)
		if err != nil {
			return err
		}
		line, err := tx.GetLineForUpdate(ctx, input.TransferID, input.LineID)
		if err != nil {
			return err
		}
		if input.Quantity.GreaterThan(line.InTransit()) {
			return fmt.Errorf("requested %s exceeds in-transit %s: %w",
				input.Quantity, line.InTransit(), shared.ErrInsufficientRemainingQuantity)
		}

		remaining := input.Quantity
		for i := len(line.SendingBatches) - 1; i >= 0; i-- {
			sb := line.SendingBatches[i]
			if remaining.IsZero() {
				continue
			}
			unreceived := sb.Unreceived()
			if unreceived.Sign() <= 0 {
				continue
			}
			take := decimal.Min(unreceived, remaining)
			if err := batch.Restore(ctx, tx, sb.BatchID, take); err != nil {
				return err
			}
			line.SendingBatches[i].Quantity = sb.Quantity.Sub(take)
			remaining = remaining.Sub(take)
		}
		if !remaining.IsZero() {
			return fmt.Errorf("sending batches cannot cover %s more: %w",
				remaining, shared.ErrInsufficientRemainingQuantity)
		}

		// Drop entries that never fed a receipt and are now empty.
		compacted := line.SendingBatches[:0]
		for _, sb := range line.SendingBatches {
			if sb.Quantity.IsZero() && sb.ReceivedQty.IsZero() {
				continue
			}
			compacted = append(compacted, sb)
		}
		line.SendingBatches = compacted
		line.ReturnedQuantity = line.ReturnedQuantity.Add(input.Quantity)

		if err := tx.UpdateLine(ctx, line); err != nil {
			return err
		}
		seqID = header.SequenceID
		result = line
		return nil
	})
	if err != nil {
		return Line{}, err
	}

	s.auditAction(ctx, input.ActorID, "transfer:return", seqID, map[string]any{
		"line_id":  input.LineID,
		"quantity": input.Quantity.String(),
	})
	return result, nil
}

// Get loads a transfer with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

func (s *Service) auditAction(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transfer",
		EntityID: entityID,
		Meta:     meta,
	})
}
