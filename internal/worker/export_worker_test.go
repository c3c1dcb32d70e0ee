package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casa/internal/amqp"
	"casa/internal/core"
	sheetmem "casa/internal/sheets/memory"
	"casa/internal/store"
	"casa/internal/store/memory"
)

func seed(t *testing.T, s *memory.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.CreateTransaction(context.Background(), core.Transaction{
			ID: id, UserID: "u1", Name: "item " + id, Amount: core.Money{Cents: 1000}, Category: "Food",
			Date: core.NewDate(2024, 5, 1),
		}))
	}
}

func status(t *testing.T, s *memory.Store, id string) store.ExportStatus {
	t.Helper()
	st, err := s.ExportStatus(context.Background(), id)
	require.NoError(t, err)
	return st
}

func TestHandleCreatedEvent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sheet := sheetmem.New()
	w := NewExportWorker(st, sheet, 10)
	seed(t, st, "a")

	ev := amqp.NewTransactionEvent(amqp.EventCreated, "a", "personal:u1")
	require.NoError(t, w.HandleEvent(ctx, ev))
	assert.Equal(t, []string{"a"}, sheet.IDs())
	assert.Equal(t, store.ExportDone, status(t, st, "a"))

	// Redelivery does not duplicate the row.
	require.NoError(t, w.HandleEvent(ctx, ev))
	assert.Equal(t, []string{"a"}, sheet.IDs())
}

func TestHandleCreatedEventForUnknownTransaction(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetmem.New(), 10)
	err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.EventCreated, "ghost", "personal:u1"))
	assert.NoError(t, err, "unknown ids are dropped, not requeued")
}

func TestHandleCreatedEventAfterDelete(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sheet := sheetmem.New()
	w := NewExportWorker(st, sheet, 10)
	seed(t, st, "a")
	require.NoError(t, st.DeleteTransaction(ctx, "a"))

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventCreated, "a", "personal:u1")))
	assert.Empty(t, sheet.IDs())
}

func TestHandleCreatedEventSheetFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sheet := sheetmem.New()
	sheet.Fail = errors.New("quota exceeded")
	w := NewExportWorker(st, sheet, 10)
	seed(t, st, "a")

	err := w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventCreated, "a", "personal:u1"))
	require.Error(t, err)
	assert.Equal(t, store.ExportFailed, status(t, st, "a"))

	pending, err := st.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed exports stay in the sweep")
}

func TestHandleDeletedEvent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sheet := sheetmem.New()
	w := NewExportWorker(st, sheet, 10)
	seed(t, st, "a", "b")

	_, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	require.NoError(t, st.DeleteTransaction(ctx, "a"))

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventDeleted, "a", "personal:u1")))
	assert.Equal(t, []string{"b"}, sheet.IDs())
	assert.Equal(t, store.ExportRetracted, status(t, st, "a"))

	// A late created event for the retracted row is ignored.
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventCreated, "a", "personal:u1")))
	assert.Equal(t, []string{"b"}, sheet.IDs())
}

func TestHandleUnknownEventType(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetmem.New(), 10)
	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{Type: "updated", TransactionID: "a"})
	assert.Error(t, err)
}

func TestProcessPendingBatches(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	sheet := sheetmem.New()
	w := NewExportWorker(st, sheet, 2)
	seed(t, st, "a", "b", "c")

	n, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"a", "b", "c"}, sheet.IDs())
}

func TestStartupCheckUsesLargerBatch(t *testing.T) {
	st := memory.New()
	sheet := sheetmem.New()
	w := NewExportWorker(st, sheet, 1)
	seed(t, st, "a", "b", "c", "d")

	require.NoError(t, w.StartupCheck(context.Background()))
	assert.Len(t, sheet.IDs(), 4)
}

func TestProcessorLifecycle(t *testing.T) {
	st := memory.New()
	sheet := sheetmem.New()
	seed(t, st, "a")
	p := NewProcessor(NewExportWorker(st, sheet, 10), ProcessorConfig{PollInterval: 10 * time.Millisecond})

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	assert.Error(t, p.Start(ctx), "second start is rejected")

	assert.Eventually(t, func() bool { return len(sheet.IDs()) == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	require.NoError(t, p.Stop(stopCtx), "stop is idempotent")

	require.NoError(t, p.Start(ctx), "a stopped processor can start again")
	require.NoError(t, p.Stop(stopCtx))
}
