package msg

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func newPIDs(t *testing.T, n int) []uuid.UUID {
	pids := make([]uuid.UUID, n)
	for i := range pids {
		pid, err := uuid.NewUUID()
		assert.NilError(t, err)
		pids[i] = pid
	}
	return pids
}

func TestSubscribe(t *testing.T) {
	pids := newPIDs(t, 3)
	pubsub := NewPublisher(pids[0])

	ch1, err := pubsub.Subscribe(pids[1], Status)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pids[2], Status)
	assert.NilError(t, err)

	randValue := rand.Float64()

	var wg sync.WaitGroup
	received := make([]interface{}, 2)
	for i, ch := range []<-chan Msg{ch1, ch2} {
		wg.Add(1)
		go func(i int, ch <-chan Msg) {
			defer wg.Done()
			incoming := <-ch
			assert.Check(t, incoming.PID() == pids[0])
			assert.Check(t, incoming.Topic() == Status)
			received[i] = incoming.Payload()
		}(i, ch)
	}

	pubsub.Publish(Status, randValue)
	wg.Wait()
	assert.Equal(t, received[0], randValue, "First subscriber did not receive the correct published value")
	assert.Equal(t, received[1], randValue, "Second subscriber did not receive the correct published value")
}

func TestSubscribeTwice(t *testing.T) {
	pids := newPIDs(t, 2)
	pubsub := NewPublisher(pids[0])

	_, err := pubsub.Subscribe(pids[1], Result)
	assert.NilError(t, err)
	_, err = pubsub.Subscribe(pids[1], Result)
	assert.ErrorContains(t, err, "already subscribed")

	_, err = pubsub.Subscribe(pids[1], Status)
	assert.NilError(t, err)
}

func TestTopicsAreSeparate(t *testing.T) {
	pids := newPIDs(t, 2)
	pubsub := NewPublisher(pids[0])
	ch, err := pubsub.Subscribe(pids[1], Result)
	assert.NilError(t, err)

	pubsub.Publish(Status, "solving")
	pubsub.Publish(Result, "done")

	m := <-ch
	assert.Equal(t, m.Payload(), "done")
	assert.Equal(t, len(ch), 0)
}

func TestUnsubscribe(t *testing.T) {
	pids := newPIDs(t, 2)
	pubsub := NewPublisher(pids[0])
	status, err := pubsub.Subscribe(pids[1], Status)
	assert.NilError(t, err)
	result, err := pubsub.Subscribe(pids[1], Result)
	assert.NilError(t, err)

	pubsub.Unsubscribe(pids[1])
	_, ok := <-status
	assert.Assert(t, !ok)
	_, ok = <-result
	assert.Assert(t, !ok)

	// publishing without subscribers does not block
	pubsub.Publish(Status, 1)
}

func TestClose(t *testing.T) {
	pids := newPIDs(t, 2)
	pubsub := NewPublisher(pids[0])
	ch, err := pubsub.Subscribe(pids[1], Status)
	assert.NilError(t, err)

	pubsub.Publish(Status, "last")
	pubsub.Close()
	pubsub.Publish(Status, "dropped")

	var got []interface{}
	for m := range ch {
		got = append(got, m.Payload())
	}
	assert.DeepEqual(t, got, []interface{}{"last"})

	_, err = pubsub.Subscribe(pids[1], Result)
	assert.ErrorContains(t, err, "closed")
	pubsub.Close()
}

func TestTopicString(t *testing.T) {
	assert.Equal(t, Status.String(), "status")
	assert.Equal(t, Result.String(), "result")
}
