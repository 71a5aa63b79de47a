package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benioh/reflection-journal/internal/logging"
	"github.com/Benioh/reflection-journal/internal/models"
)

type fakeRemote struct {
	mu         sync.Mutex
	configured bool
	failIDs    map[int64]error
	appended   []*models.DeletionBackup
}

func (f *fakeRemote) IsConfigured(ctx context.Context) bool { return f.configured }

func (f *fakeRemote) LatestModifiedTime(ctx context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (f *fakeRemote) ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	return nil, nil
}

func (f *fakeRemote) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return nil
}

func (f *fakeRemote) AppendDeletionBackup(ctx context.Context, b *models.DeletionBackup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failIDs[b.Record.ID]; err != nil {
		return err
	}
	f.appended = append(f.appended, b)
	return nil
}

func (f *fakeRemote) ListDeletionBackups(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeRemote) appendedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.appended))
	for _, b := range f.appended {
		ids = append(ids, b.Record.ID)
	}
	return ids
}

func newTestQueue(configured bool) (*Queue, *fakeRemote) {
	f := &fakeRemote{configured: configured}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewQueue(f, log), f
}

func record(id int64) *models.Reflection {
	return &models.Reflection{ID: id, Content: "entry", Type: models.TypeDaily}
}

func TestQueue_Unconfigured(t *testing.T) {
	q, f := newTestQueue(false)
	assert.False(t, q.Enqueue(context.Background(), record(1)))
	assert.Zero(t, q.Pending())
	assert.Empty(t, f.appendedIDs())
}

func TestQueue_FIFOOrder(t *testing.T) {
	q, f := newTestQueue(true)

	// Queue everything before the worker starts so ordering only depends
	// on enqueue order.
	for id := int64(1); id <= 5; id++ {
		require.True(t, q.Enqueue(context.Background(), record(id)))
	}
	require.Equal(t, 5, q.Pending())

	q.Start(context.Background())
	q.Stop()

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, f.appendedIDs())
	assert.Zero(t, q.Pending())
}

func TestQueue_SequentialEnqueues(t *testing.T) {
	q, f := newTestQueue(true)
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	require.True(t, q.Enqueue(context.Background(), record(7)))
	require.Eventually(t, func() bool {
		return len(f.appendedIDs()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, q.Enqueue(context.Background(), record(8)))
	require.Eventually(t, func() bool {
		return len(f.appendedIDs()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []int64{7, 8}, f.appendedIDs())
}

func TestQueue_FailedJobIsDropped(t *testing.T) {
	q, f := newTestQueue(true)
	f.failIDs = map[int64]error{2: errors.New("write rejected")}

	for id := int64(1); id <= 3; id++ {
		require.True(t, q.Enqueue(context.Background(), record(id)))
	}

	q.Start(context.Background())
	q.Stop()

	// Job 2 is gone for good; the worker kept going.
	assert.Equal(t, []int64{1, 3}, f.appendedIDs())
}

func TestQueue_StopDrainsPendingJobs(t *testing.T) {
	q, f := newTestQueue(true)
	q.Start(context.Background())

	for id := int64(1); id <= 10; id++ {
		require.True(t, q.Enqueue(context.Background(), record(id)))
	}
	q.Stop()

	assert.Len(t, f.appendedIDs(), 10)
	assert.False(t, q.Enqueue(context.Background(), record(11)),
		"enqueue after stop must be rejected")
}

func TestQueue_CapturesRecordAtEnqueueTime(t *testing.T) {
	q, f := newTestQueue(true)

	r := record(1)
	r.Tags = []string{"keep"}
	require.True(t, q.Enqueue(context.Background(), r))

	// Mutations after enqueue must not reach the backup.
	r.Content = "changed later"
	r.Tags[0] = "mutated"

	q.Start(context.Background())
	q.Stop()

	require.Len(t, f.appended, 1)
	assert.Equal(t, "entry", f.appended[0].Record.Content)
	assert.Equal(t, []string{"keep"}, f.appended[0].Record.Tags)
	assert.False(t, f.appended[0].DeletedAt.IsZero())
}

func TestQueue_StopWithoutStart(t *testing.T) {
	q, _ := newTestQueue(true)
	q.Stop()
}
