package replay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeyza/salestrack/internal/domain/models"
	"github.com/rafaeyza/salestrack/internal/metrics"
	"github.com/rafaeyza/salestrack/pkg/clients/salesapi"
)

// memQueue is an in-memory stand-in for the SQLite store.
type memQueue struct {
	mu     sync.Mutex
	visits []models.QueuedVisit
	nextID int64
}

func (q *memQueue) add(token string) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.visits = append(q.visits, models.QueuedVisit{
		LocalID:    q.nextID,
		Token:      token,
		CustomerID: "c1",
		Latitude:   -6.2015,
		Longitude:  106.8167,
		Photo:      []byte("jpeg"),
		Lines:      []models.InventoryLine{{ProductID: "p1", InitialStock: 4}},
	})
	return q.nextID
}

func (q *memQueue) ListAll(context.Context) ([]models.QueuedVisit, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedVisit, len(q.visits))
	copy(out, q.visits)
	return out, nil
}

func (q *memQueue) Delete(_ context.Context, localID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.visits {
		if q.visits[i].LocalID == localID {
			q.visits = append(q.visits[:i], q.visits[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *memQueue) Count(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.visits)), nil
}

type countingSubmitter struct {
	mu      sync.Mutex
	calls   []salesapi.Submission
	err     error
	entered chan struct{} // closed when the first call arrives
	block   chan struct{} // when set, SubmitVisit waits until closed
}

func (s *countingSubmitter) SubmitVisit(_ context.Context, sub salesapi.Submission) (string, error) {
	if s.entered != nil {
		s.mu.Lock()
		select {
		case <-s.entered:
		default:
			close(s.entered)
		}
		s.mu.Unlock()
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sub)
	if s.err != nil {
		return "", s.err
	}
	return "v-1", nil
}

func (s *countingSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newReplayer(q Queue, s Submitter) *Replayer {
	return NewReplayer(q, s, metrics.New(prometheus.NewRegistry()), nil)
}

func TestDrain_DeliversAndDeletes(t *testing.T) {
	q := &memQueue{}
	q.add("tok-1")
	submitter := &countingSubmitter{}
	r := newReplayer(q, submitter)

	r.Drain(context.Background())

	assert.Equal(t, 1, submitter.callCount(), "exactly one POST per queued visit")
	remaining, _ := q.Count(context.Background())
	assert.EqualValues(t, 0, remaining, "store ends empty after ack")

	sub := submitter.calls[0]
	assert.Equal(t, "tok-1", sub.Token)
	assert.Equal(t, "c1", sub.CustomerID)
	assert.Equal(t, []byte("jpeg"), sub.Photo)
}

func TestDrain_InsertionOrder(t *testing.T) {
	q := &memQueue{}
	q.add("tok-1")
	q.add("tok-2")
	q.add("tok-3")
	submitter := &countingSubmitter{}

	newReplayer(q, submitter).Drain(context.Background())

	require.Len(t, submitter.calls, 3)
	assert.Equal(t, "tok-1", submitter.calls[0].Token)
	assert.Equal(t, "tok-2", submitter.calls[1].Token)
	assert.Equal(t, "tok-3", submitter.calls[2].Token)
}

func TestDrain_FailureKeepsEntry(t *testing.T) {
	q := &memQueue{}
	q.add("tok-1")
	submitter := &countingSubmitter{err: errors.New("connection refused")}
	r := newReplayer(q, submitter)

	r.Drain(context.Background())
	remaining, _ := q.Count(context.Background())
	assert.EqualValues(t, 1, remaining, "failed entry stays for the next trigger")

	// The next trigger retries the same entry; nothing is ever dropped.
	submitter.mu.Lock()
	submitter.err = nil
	submitter.mu.Unlock()

	r.Drain(context.Background())
	remaining, _ = q.Count(context.Background())
	assert.EqualValues(t, 0, remaining)
	assert.Equal(t, 2, submitter.callCount())
}

func TestDrain_EmptyQueueIsNoOp(t *testing.T) {
	q := &memQueue{}
	q.add("tok-1")
	submitter := &countingSubmitter{}
	r := newReplayer(q, submitter)

	r.Drain(context.Background())
	require.Equal(t, 1, submitter.callCount())

	// Draining again with everything already synced must do nothing.
	r.Drain(context.Background())
	r.Drain(context.Background())
	assert.Equal(t, 1, submitter.callCount())
}

func TestDrain_SingleFlight(t *testing.T) {
	q := &memQueue{}
	q.add("tok-1")

	submitter := &countingSubmitter{
		entered: make(chan struct{}),
		block:   make(chan struct{}),
	}
	r := newReplayer(q, submitter)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Drain(context.Background())
	}()

	// Wait for the first drain to reach the blocked submit, then race a
	// second one against it.
	<-submitter.entered
	r.Drain(context.Background()) // must return immediately as a no-op
	close(submitter.block)
	<-done

	assert.Equal(t, 1, submitter.callCount(), "entry processed exactly once")
}

func TestWake_Coalesces(t *testing.T) {
	r := newReplayer(&memQueue{}, &countingSubmitter{})
	r.Wake()
	r.Wake()
	r.Wake()

	// One pending wake at most; a second receive would block.
	select {
	case <-r.wake:
	default:
		t.Fatal("expected a pending wake")
	}
	select {
	case <-r.wake:
		t.Fatal("wake requests must coalesce")
	default:
	}
}
