package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/sequence"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// TxRepository exposes the transactional operations the recorder composes:
// the batch ledger plus document writes, all inside one unit of work.
type TxRepository interface {
	batch.TxLedger
	NextSequence(ctx context.Context, docType sequence.DocType) (string, error)
	InsertTransaction(ctx context.Context, trx Transaction) (int64, error)
	InsertLines(ctx context.Context, transactionID int64, lines []Line) error
	InsertPayment(ctx context.Context, payment Payment) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
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

// Service records purchases and sales.
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

// RecordPurchase records a stock-in trade document: one new batch per line,
// optionally with an initial PAID payment.
func (s *Service) RecordPurchase(ctx context.Context, input RecordInput) (Transaction, error) {
	return s.record(ctx, TypePurchase, input)
}

// RecordSale records a stock-out trade document. The caller is expected to
// have pre-checked aggregate availability; a race that consumed stock in the
// meantime surfaces as ErrInsufficientStock, never as partial application.
func (s *Service) RecordSale(ctx context.Context, input RecordInput) (Transaction, error) {
	return s.record(ctx, TypeSale, input)
}

func (s *Service) record(ctx context.Context, typ Type, input RecordInput) (Transaction, error) {
	if err := input.validate(typ); err != nil {
		return Transaction{}, err
	}

	var inv settings.Inventory
	if typ == TypeSale {
		var err error
		inv, err = s.settings.Inventory(ctx)
		if err != nil {
			return Transaction{}, err
		}
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if _, err := uuid.Parse(input.IdempotencyKey); err != nil {
			return Transaction{}, fmt.Errorf("idempotency key must be a uuid: %w", shared.ErrValidation)
		}
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "transaction"); err != nil {
			return Transaction{}, err
		}
		insertedKey = true
	}

	docType := sequence.DocPurchase
	paymentType := PaymentPaid
	if typ == TypeSale {
		docType = sequence.DocSale
		paymentType = PaymentReceived
	}

	var result Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seqID, err := tx.NextSequence(ctx, docType)
		if err != nil {
			return err
		}
		header := Transaction{
			SequenceID: seqID,
			Type:       typ,
			ContactID:  input.ContactID,
			LocationID: input.LocationID,
			Note:       input.Note,
			CreatedBy:  input.ActorID,
		}
		trxID, err := tx.InsertTransaction(ctx, header)
		if err != nil {
			return err
		}

		lines := make([]Line, 0, len(input.Lines))
		for _, in := range input.Lines {
			line := Line{
				TransactionID: trxID,
				ProductID:     in.ProductID,
				Quantity:      in.Quantity,
				UnitPrice:     in.UnitPrice,
				VATPercentage: in.VATPercentage,
			}
			if typ == TypePurchase {
				created, err := batch.StockIn(ctx, tx, batch.CreateParams{
					ProductID:  in.ProductID,
					LocationID: input.LocationID,
					Quantity:   in.Quantity,
					UnitCost:   in.UnitCost,
					ExpiryDate: in.ExpiryDate,
				})
				if err != nil {
					return err
				}
				line.Batches = []batch.AllocationLine{{BatchID: created.ID, Quantity: in.Quantity}}
			} else {
				allocated, err := batch.StockOut(ctx, tx, in.ProductID, input.LocationID,
					in.Quantity, inv.Method, inv.ConsiderExpiryDate)
				if err != nil {
					return err
				}
				line.Batches = allocated
			}
			lines = append(lines, line)
		}
		if err := tx.InsertLines(ctx, trxID, lines); err != nil {
			return err
		}

		if input.PaidAmount.Sign() > 0 {
			err := tx.InsertPayment(ctx, Payment{
				TransactionID: trxID,
				Amount:        input.PaidAmount,
				Type:          paymentType,
				CreatedBy:     input.ActorID,
			})
			if err != nil {
				return err
			}
		}

		header.ID = trxID
		header.Lines = lines
		result = header
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Transaction{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("transaction:%s", typ),
			Entity:   "transaction",
			EntityID: result.SequenceID,
			Meta: map[string]any{
				"location_id": input.LocationID,
				"contact_id":  input.ContactID,
				"lines":       len(result.Lines),
			},
		})
	}
	return result, nil
}

// Get loads a transaction with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}
