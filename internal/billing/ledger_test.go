package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRecordIsAtMostOnce(t *testing.T) {
	db := setupBillingTestDB(t)
	led := NewLedger(db)
	ctx := context.Background()

	eventID := "evt_" + uuid.NewString()

	fresh, err := led.Record(ctx, eventID, "customer.subscription.updated")
	require.NoError(t, err)
	assert.True(t, fresh)

	replay, err := led.Record(ctx, eventID, "customer.subscription.updated")
	require.NoError(t, err)
	assert.False(t, replay, "second insert of the same event id must report a replay")

	seen, err := led.Seen(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = led.Seen(ctx, "evt_never")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLedgerRecordRollsBackWithTransaction(t *testing.T) {
	db := setupBillingTestDB(t)
	led := NewLedger(db)
	ctx := context.Background()

	eventID := "evt_" + uuid.NewString()

	tx := db.Begin()
	require.NoError(t, tx.Error)
	fresh, err := led.WithTx(tx).Record(ctx, eventID, "invoice.paid")
	require.NoError(t, err)
	require.True(t, fresh)
	require.NoError(t, tx.Rollback().Error)

	// The rolled-back entry must not block redelivery.
	fresh, err = led.Record(ctx, eventID, "invoice.paid")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestLedgerPurgeOlderThan(t *testing.T) {
	db := setupBillingTestDB(t)
	led := NewLedger(db)
	ctx := context.Background()

	oldEvent := "evt_" + uuid.NewString()
	newEvent := "evt_" + uuid.NewString()

	_, err := led.Record(ctx, oldEvent, "invoice.paid")
	require.NoError(t, err)
	_, err = led.Record(ctx, newEvent, "invoice.paid")
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-40 * 24 * time.Hour)
	require.NoError(t, db.Exec(
		"UPDATE processed_events SET processed_at = ? WHERE event_id = ?",
		stale, oldEvent,
	).Error)

	purged, err := led.PurgeOlderThan(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	seen, err := led.Seen(ctx, oldEvent)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = led.Seen(ctx, newEvent)
	require.NoError(t, err)
	assert.True(t, seen)
}
