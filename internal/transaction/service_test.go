package transaction

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian/internal/batch/batchtest"
	"github.com/meridian-pos/meridian/internal/sequence"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

type memoryRepo struct {
	*batchtest.MemoryLedger
	seqs         map[sequence.DocType]int64
	transactions map[int64]Transaction
	lines        map[int64][]Line
	payments     []Payment
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		MemoryLedger: batchtest.NewMemoryLedger(),
		seqs:         make(map[sequence.DocType]int64),
		transactions: make(map[int64]Transaction),
		lines:        make(map[int64][]Line),
	}
}

// WithTx emulates transactional atomicity: on a callback error every write
// made inside the callback is rolled back.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	ledger := r.Snapshot()
	seqs := make(map[sequence.DocType]int64, len(r.seqs))
	for k, v := range r.seqs {
		seqs[k] = v
	}
	transactions := make(map[int64]Transaction, len(r.transactions))
	for id, trx := range r.transactions {
		transactions[id] = trx
	}
	lines := make(map[int64][]Line, len(r.lines))
	for id, ls := range r.lines {
		lines[id] = append([]Line(nil), ls...)
	}
	payments := append([]Payment(nil), r.payments...)
	nextID := r.nextID

	if err := fn(ctx, r); err != nil {
		r.Rollback(ledger)
		r.seqs = seqs
		r.transactions = transactions
		r.lines = lines
		r.payments = payments
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	trx, ok := r.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	trx.Lines = r.lines[id]
	return trx, nil
}

func (r *memoryRepo) NextSequence(ctx context.Context, docType sequence.DocType) (string, error) {
	r.seqs[docType]++
	return sequence.Format(docType, r.seqs[docType]), nil
}

func (r *memoryRepo) InsertTransaction(ctx context.Context, trx Transaction) (int64, error) {
	r.nextID++
	trx.ID = r.nextID
	r.transactions[trx.ID] = trx
	return trx.ID, nil
}

func (r *memoryRepo) InsertLines(ctx context.Context, transactionID int64, lines []Line) error {
	r.lines[transactionID] = lines
	return nil
}

func (r *memoryRepo) InsertPayment(ctx context.Context, payment Payment) error {
	r.payments = append(r.payments, payment)
	return nil
}

type fixedSettings struct {
	inv settings.Inventory
}

func (s fixedSettings) Inventory(ctx context.Context) (settings.Inventory, error) {
	return s.inv, nil
}

func qty(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func fifoService(repo *memoryRepo) *Service {
	return NewService(repo, fixedSettings{inv: settings.Inventory{Method: settings.MethodFIFO}}, nil, nil)
}

func TestRecordPurchaseCreatesOneBatchPerLine(t *testing.T) {
	repo := newMemoryRepo()
	svc := fifoService(repo)
	ctx := context.Background()

	trx, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		PaidAmount: qty("150"),
		Lines: []LineInput{
			{ProductID: 1, Quantity: qty("10"), UnitCost: qty("2"), UnitPrice: qty("3")},
			{ProductID: 2, Quantity: qty("4"), UnitCost: qty("7"), UnitPrice: qty("9")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "TRXPU-000001", trx.SequenceID)
	require.Len(t, trx.Lines, 2)
	require.Len(t, trx.Lines[0].Batches, 1)

	created := repo.Batches[trx.Lines[0].Batches[0].BatchID]
	require.True(t, created.QuantityInStock.Equal(qty("10")))
	require.True(t, created.UnitCost.Equal(qty("2")))
	require.True(t, repo.Balance(1, 1).Equal(qty("10")))
	require.True(t, repo.Balance(2, 1).Equal(qty("4")))

	require.Len(t, repo.payments, 1)
	require.Equal(t, PaymentPaid, repo.payments[0].Type)
	require.True(t, repo.payments[0].Amount.Equal(qty("150")))
}

func TestRecordSaleAllocatesFIFO(t *testing.T) {
	repo := newMemoryRepo()
	svc := fifoService(repo)
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("10"), UnitCost: qty("2"), UnitPrice: qty("3")}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("10"), UnitCost: qty("3"), UnitPrice: qty("4")}},
	})
	require.NoError(t, err)

	sale, err := svc.RecordSale(ctx, RecordInput{
		LocationID: 1, ContactID: 7, ActorID: 9,
		PaidAmount: qty("60"),
		Lines:      []LineInput{{ProductID: 1, Quantity: qty("15"), UnitPrice: qty("4")}},
	})
	require.NoError(t, err)
	require.Equal(t, "TRXSA-000001", sale.SequenceID)
	require.Len(t, sale.Lines, 1)
	require.Len(t, sale.Lines[0].Batches, 2)
	require.True(t, sale.Lines[0].Batches[0].Quantity.Equal(qty("10")))
	require.True(t, sale.Lines[0].Batches[1].Quantity.Equal(qty("5")))

	require.True(t, repo.Batches[sale.Lines[0].Batches[0].BatchID].QuantityInStock.IsZero())
	require.True(t, repo.Batches[sale.Lines[0].Batches[1].BatchID].QuantityInStock.Equal(qty("5")))

	require.Equal(t, PaymentReceived, repo.payments[len(repo.payments)-1].Type)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := fifoService(repo)
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("5"), UnitCost: qty("2"), UnitPrice: qty("3")}},
	})
	require.NoError(t, err)

	_, err = svc.RecordSale(ctx, RecordInput{
		LocationID: 1, ContactID: 7, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("6"), UnitPrice: qty("4")}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.True(t, repo.Balance(1, 1).Equal(qty("5")))

	// Only the purchase survives; the aborted sale wrote nothing.
	require.Len(t, repo.transactions, 1)
	require.Len(t, repo.payments, 0)
	require.Zero(t, repo.seqs[sequence.DocSale])
}

func TestRecordSaleRollsBackEarlierLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := fifoService(repo)
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{
			{ProductID: 1, Quantity: qty("10"), UnitCost: qty("2"), UnitPrice: qty("3")},
			{ProductID: 2, Quantity: qty("3"), UnitCost: qty("5"), UnitPrice: qty("7")},
		},
	})
	require.NoError(t, err)

	// The first line allocates before the second hits its shortfall. The
	// rollback must undo the first line's stock-out too.
	_, err = svc.RecordSale(ctx, RecordInput{
		LocationID: 1, ContactID: 7, ActorID: 9,
		Lines: []LineInput{
			{ProductID: 1, Quantity: qty("4"), UnitPrice: qty("4")},
			{ProductID: 2, Quantity: qty("9"), UnitPrice: qty("8")},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.True(t, repo.Balance(1, 1).Equal(qty("10")))
	require.True(t, repo.Balance(2, 1).Equal(qty("3")))
	require.Len(t, repo.transactions, 1)
}

func TestRecordValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := fifoService(repo)
	ctx := context.Background()

	// Duplicate product within one request.
	_, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{
			{ProductID: 1, Quantity: qty("1"), UnitCost: qty("2")},
			{ProductID: 1, Quantity: qty("2"), UnitCost: qty("2")},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Purchase without a unit cost.
	_, err = svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("1")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Missing contact.
	_, err = svc.RecordSale(ctx, RecordInput{
		LocationID: 1, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("1")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Nothing was written.
	require.Empty(t, repo.transactions)
}

func TestRecordSaleUsesLIFOWhenConfigured(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedSettings{inv: settings.Inventory{Method: settings.MethodLIFO}}, nil, nil)
	ctx := context.Background()

	first, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("10"), UnitCost: qty("2"), UnitPrice: qty("3")}},
	})
	require.NoError(t, err)
	second, err := svc.RecordPurchase(ctx, RecordInput{
		LocationID: 1, ContactID: 5, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("10"), UnitCost: qty("3"), UnitPrice: qty("4")}},
	})
	require.NoError(t, err)

	sale, err := svc.RecordSale(ctx, RecordInput{
		LocationID: 1, ContactID: 7, ActorID: 9,
		Lines: []LineInput{{ProductID: 1, Quantity: qty("3"), UnitPrice: qty("4")}},
	})
	require.NoError(t, err)
	require.Equal(t, second.Lines[0].Batches[0].BatchID, sale.Lines[0].Batches[0].BatchID)
	require.NotEqual(t, first.Lines[0].Batches[0].BatchID, sale.Lines[0].Batches[0].BatchID)
}
