package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/tasks/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

func redisAddress(t *testing.T) string {
	t.Helper()

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		container, err := testcontainers.Run(
			ctx, "redis:latest",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			),
		)
		if err != nil {
			redisErr = err

			return
		}

		redisAddr, redisErr = container.Endpoint(ctx, "")
	})

	require.NoError(t, redisErr)

	return redisAddr
}

func setupQueues(t *testing.T) (*queue.Queues, string) {
	t.Helper()

	queues, err := queue.Connect(context.Background(), log.Discard(), queue.Options{Addr: redisAddress(t)})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, queues.Close())
	})

	return queues, "import-" + uuid.NewString()
}

func TestQueues_SnapshotCountsEveryState(t *testing.T) {
	queues, id := setupQueues(t)
	ctx := context.Background()

	snapshot, err := queues.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, snapshot.Drained())

	for _, message := range []string{"a", "b", "c"} {
		require.NoError(t, queues.Push(ctx, id, message))
	}

	claimed, ok, err := queues.Claim(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", claimed)

	second, _, err := queues.Claim(ctx, id)
	require.NoError(t, err)
	require.NoError(t, queues.Defer(ctx, id, second, time.Now().Add(time.Hour)))

	snapshot, err = queues.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSnapshot{Visible: 1, InFlight: 1, Delayed: 1}, snapshot)
	assert.False(t, snapshot.Drained())

	require.NoError(t, queues.Ack(ctx, id, claimed))

	deleted, err := queues.Purge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	snapshot, err = queues.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.True(t, snapshot.Drained())
}

func TestQueues_PromoteDue(t *testing.T) {
	queues, id := setupQueues(t)
	ctx := context.Background()

	require.NoError(t, queues.Push(ctx, id, "late"))

	message, ok, err := queues.Claim(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, queues.Defer(ctx, id, message, time.Now().Add(-time.Second)))

	moved, err := queues.PromoteDue(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	snapshot, err := queues.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSnapshot{Visible: 1}, snapshot)

	_, ok, err = queues.Claim(ctx, id+"-empty")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFactories_ThroughRegistry(t *testing.T) {
	queues, id := setupQueues(t)
	ctx := context.Background()

	require.NoError(t, queues.Push(ctx, id, "pending"))

	r := registry.NewRegistry(log.Discard())
	r.RegisterTask(queue.NewSnapshotFactory(queues))
	r.RegisterTask(queue.NewPurgeFactory(queues))
	require.NoError(t, r.Bind("get-queue-snapshot", nil))
	require.NoError(t, r.Bind("purge-queue", nil))

	snapshotTask, err := r.Task("get-queue-snapshot")
	require.NoError(t, err)

	out, err := snapshotTask.Invoke(ctx, map[string]any{"queueId": id})
	require.NoError(t, err)
	assert.Equal(t, models.QueueSnapshot{Visible: 1}, out)

	purgeTask, err := r.Task("purge-queue")
	require.NoError(t, err)

	out, err = purgeTask.Invoke(ctx, map[string]any{"queueId": id})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"queueId": id, "purged": true}, out)

	out, err = snapshotTask.Invoke(ctx, map[string]any{"queueId": id})
	require.NoError(t, err)
	assert.Equal(t, models.QueueSnapshot{}, out)

	_, err = snapshotTask.Invoke(ctx, map[string]any{"queueId": ""})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindDomainInvalid, protocol.Classify(err).Kind)
}

func TestFactories_RequireQueues(t *testing.T) {
	_, err := queue.NewSnapshotFactory(nil).Create(nil)
	assert.ErrorIs(t, err, queue.ErrNoQueues)

	_, err = queue.NewPurgeFactory(nil).Create(nil)
	assert.ErrorIs(t, err, queue.ErrNoQueues)
}
