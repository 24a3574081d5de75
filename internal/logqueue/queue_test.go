package logqueue

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramaverify/backend/internal/docstore"
)

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	q := New(docstore.NewStore(db), 2, nil)
	q.Enqueue(docstore.ClaimLog{ID: "1"})
	q.Enqueue(docstore.ClaimLog{ID: "2"})
	q.Enqueue(docstore.ClaimLog{ID: "3"})

	assert.Equal(t, int64(1), q.Dropped())
}

func TestRunDrainsQueueAndStopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO claim_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	q := New(docstore.NewStore(db), DefaultCapacity, nil)
	q.Enqueue(docstore.ClaimLog{ID: "1", SourcesUsed: []string{}})

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
