package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"becoming/pkg/testutil"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	testutil.Given(t, "a closed publisher circuit with threshold 3", func(t *testing.T) {
		b := New("kafka", WithFailureThreshold(3))
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, "kafka", b.Name())

		testutil.When(t, "two publishes fail", func(t *testing.T) {
			for range 2 {
				open, change := b.RecordFailure()
				assert.False(t, open)
				assert.False(t, change.Opened)
			}
		})

		testutil.Then(t, "the third failure opens it exactly once", func(t *testing.T) {
			open, change := b.RecordFailure()
			assert.True(t, open)
			assert.True(t, change.Opened)

			open, change = b.RecordFailure()
			assert.True(t, open)
			assert.False(t, change.Opened)
			assert.Equal(t, "open", b.State().String())
		})
	})
}

func TestBreakerSuccessInterruptsFailureRun(t *testing.T) {
	b := New("kafka", WithFailureThreshold(3))
	b.RecordFailure()
	b.RecordFailure()

	closed, change := b.RecordSuccess()
	assert.True(t, closed)
	assert.False(t, change.Closed)

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerClosesAfterSuccessRun(t *testing.T) {
	testutil.Given(t, "an open circuit needing 3 successes", func(t *testing.T) {
		b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(3))
		b.RecordFailure()
		assert.True(t, b.IsOpen())

		testutil.When(t, "a failure interrupts the success run", func(t *testing.T) {
			b.RecordSuccess()
			b.RecordSuccess()
			b.RecordFailure()
			assert.True(t, b.IsOpen())
		})

		testutil.Then(t, "three fresh successes are needed to close", func(t *testing.T) {
			b.RecordSuccess()
			closed, _ := b.RecordSuccess()
			assert.False(t, closed)

			closed, change := b.RecordSuccess()
			assert.True(t, closed)
			assert.True(t, change.Closed)
			assert.False(t, b.IsOpen())
		})
	})
}

func TestBreakerReset(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	open, _ := b.RecordFailure()
	assert.True(t, open, "reset clears counters, not thresholds")
}

func TestBreakerIgnoresNonPositiveThresholds(t *testing.T) {
	b := New("kafka", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for range defaultFailureThreshold - 1 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("kafka", WithFailureThreshold(10))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
}
