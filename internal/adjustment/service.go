package adjustment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/sequence"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// TxRepository exposes the transactional operations the recorder composes.
type TxRepository interface {
	batch.TxLedger
	NextSequence(ctx context.Context, docType sequence.DocType) (string, error)
	InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error)
	InsertLines(ctx context.Context, adjustmentID int64, lines []Line) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAdjustment(ctx context.Context, id int64) (Adjustment, error)
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

// Service records increase and decrease adjustments. The composition is the
// same stock movement the transaction recorder uses, without contact or
// payment.
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

// Increase records found stock or upward corrections, creating one new batch
// per line.
func (s *Service) Increase(ctx context.Context, input RecordInput) (Adjustment, error) {
	return s.record(ctx, TypeIncrease, input)
}

// Decrease writes off stock, allocating against existing batches under the
// configured ordering policy.
func (s *Service) Decrease(ctx context.Context, input RecordInput) (Adjustment, error) {
	return s.record(ctx, TypeDecrease, input)
}

func (s *Service) record(ctx context.Context, typ Type, input RecordInput) (Adjustment, error) {
	if err := input.validate(typ); err != nil {
		return Adjustment{}, err
	}

	var inv settings.Inventory
	if typ == TypeDecrease {
		var err error
		inv, err = s.settings.Inventory(ctx)
		if err != nil {
			return Adjustment{}, err
		}
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if _, err := uuid.Parse(input.IdempotencyKey); err != nil {
			return Adjustment{}, fmt.Errorf("idempotency key must be a uuid: %w", shared.ErrValidation)
		}
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "adjustment"); err != nil {
			return Adjustment{}, err
		}
		insertedKey = true
	}

	docType := sequence.DocIncrease
	if typ == TypeDecrease {
		docType = sequence.DocDecrease
	}

	var result Adjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seqID, err := tx.NextSequence(ctx, docType)
		if err != nil {
			return err
		}
		header := Adjustment{
			SequenceID: seqID,
			Type:       typ,
			LocationID: input.LocationID,
			Reason:     input.Reason,
			CreatedBy:  input.ActorID,
		}
		adjID, err := tx.InsertAdjustment(ctx, header)
		if err != nil {
			return err
		}

		lines := make([]Line, 0, len(input.Lines))
		for _, in := range input.Lines {
			line := Line{
				AdjustmentID: adjID,
				ProductID:    in.ProductID,
				Quantity:     in.Quantity,
			}
			if typ == TypeIncrease {
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
		if err := tx.InsertLines(ctx, adjID, lines); err != nil {
			return err
		}

		header.ID = adjID
		header.Lines = lines
		result = header
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Adjustment{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("adjustment:%s", typ),
			Entity:   "stock_adjustment",
			EntityID: result.SequenceID,
			Meta: map[string]any{
				"location_id": input.LocationID,
				"reason":      input.Reason,
				"lines":       len(result.Lines),
			},
		})
	}
	return result, nil
}

// Get loads an adjustment with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Adjustment, error) {
	return s.repo.GetAdjustment(ctx, id)
}
