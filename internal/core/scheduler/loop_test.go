package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l := NewLoop(opts...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func TestLoop_RunOnDesignatedInOrder(t *testing.T) {
	l := startLoop(t)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		l.RunOnDesignated(func() {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 100 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("任务未执行完")
	}
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestLoop_SingleExecutor(t *testing.T) {
	l := startLoop(t)

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go l.RunOnDesignated(func() {
			defer wg.Done()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			assert.True(t, l.Executing())
			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.False(t, l.Executing())
}

func TestLoop_RunAfterTick(t *testing.T) {
	mock := clock.NewMock()
	l := startLoop(t, WithClock(mock), WithTickInterval(50*time.Millisecond))

	ran := make(chan struct{})
	l.RunAfterTick(func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("未到 tick 就执行了")
	case <-time.After(30 * time.Millisecond):
	}
	_, after := l.Pending()
	assert.Equal(t, 1, after)

	mock.Add(50 * time.Millisecond)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("tick 后任务未执行")
	}
	assert.EqualValues(t, 1, l.Ticks())
}

func TestLoop_RecoversPanic(t *testing.T) {
	l := startLoop(t)

	done := make(chan struct{})
	l.RunOnDesignated(func() { panic("boom") })
	l.RunOnDesignated(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panic 之后的任务未执行")
	}
}

func TestLoop_StartTwice(t *testing.T) {
	l := startLoop(t)
	assert.ErrorIs(t, l.Start(context.Background()), ErrAlreadyStarted)
}

func TestLoop_StopDrainsImmediateTasks(t *testing.T) {
	mock := clock.NewMock()
	l := NewLoop(WithClock(mock))
	require.NoError(t, l.Start(context.Background()))

	var ran sync.WaitGroup
	ran.Add(1)
	l.RunOnDesignated(func() { ran.Done() })
	l.RunAfterTick(func() { t.Error("tick 任务不应在停止后执行") })

	require.NoError(t, l.Stop())
	ran.Wait()

	now, after := l.Pending()
	assert.Zero(t, now)
	assert.Zero(t, after)
}
