package postgres_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"pairwatch/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingPruner struct {
	calls atomic.Int32
}

func (c *countingPruner) DeleteAlertsBefore(context.Context, time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, errors.New("relation does not exist")
}

// go test -v --run TestRunRetentionPrunesOldAlerts
func TestRunRetentionPrunesOldAlerts(t *testing.T) {
	client := newSQLiteClient(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, client.InsertAlert(ctx, postgres.ToAlertRecord(sampleAlert(1, now.Add(-48*time.Hour)))))
	require.NoError(t, client.InsertAlert(ctx, postgres.ToAlertRecord(sampleAlert(2, now.Add(-time.Minute)))))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- postgres.RunRetention(runCtx, client, 24*time.Hour, time.Hour, zaptest.NewLogger(t))
	}()

	require.Eventually(t, func() bool {
		got, err := client.ListAlerts(ctx, "BTCUSDT", "ETHUSDT", 10)
		return err == nil && len(got) == 1 && got[0].CycleID == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunRetentionKeepsGoingAfterErrors(t *testing.T) {
	pruner := &countingPruner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- postgres.RunRetention(ctx, pruner, time.Hour, 5*time.Millisecond, zaptest.NewLogger(t))
	}()

	require.Eventually(t, func() bool { return pruner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
