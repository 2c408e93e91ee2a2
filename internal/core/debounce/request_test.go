package debounce

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// invocations 记录每次执行时的模拟时间
type invocations struct {
	mu    sync.Mutex
	clk   clock.Clock
	times map[string][]time.Duration
}

func newInvocations(clk clock.Clock) *invocations {
	return &invocations{clk: clk, times: make(map[string][]time.Duration)}
}

func (iv *invocations) perform(key string) error {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.times[key] = append(iv.times[key], time.Duration(iv.clk.Now().UnixNano()))
	return nil
}

func (iv *invocations) count(key string) int {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return len(iv.times[key])
}

func (iv *invocations) at(key string) []time.Duration {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return append([]time.Duration(nil), iv.times[key]...)
}

// advance 以 step 为步长推进模拟时钟直到 cond 成立
func advance(t *testing.T, mock *clock.Mock, step time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		mock.Add(step)
		return cond()
	}, 5*time.Second, time.Millisecond)
}

// settle 让异步执行的定时回调有机会运行
func settle() {
	time.Sleep(20 * time.Millisecond)
}

// TestRequest_ConcurrentRequestsCoalesce 测试并发请求合并为一次执行
func TestRequest_ConcurrentRequestsCoalesce(t *testing.T) {
	mock := clock.NewMock()
	iv := newInvocations(mock)
	r := NewRequest("k", 500*time.Millisecond, iv.perform, WithClock(mock))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Request()
		}()
	}
	wg.Wait()
	assert.True(t, r.Pending())

	mock.Add(499 * time.Millisecond)
	settle()
	assert.Equal(t, 0, iv.count("k"))

	advance(t, mock, time.Millisecond, func() bool { return iv.count("k") == 1 })
	settle()

	assert.Equal(t, 1, iv.count("k"))
	assert.GreaterOrEqual(t, iv.at("k")[0], 500*time.Millisecond)
	assert.False(t, r.Pending())
}

// TestRequest_FixedDeadlineNotExtended 测试默认模式下截止时间不被后续请求推迟
func TestRequest_FixedDeadlineNotExtended(t *testing.T) {
	mock := clock.NewMock()
	iv := newInvocations(mock)
	r := NewRequest("k", 500*time.Millisecond, iv.perform, WithClock(mock))

	r.Request()
	mock.Add(400 * time.Millisecond)
	r.Request()
	assert.Equal(t, 500*time.Millisecond, time.Duration(r.Deadline().UnixNano()))

	advance(t, mock, 10*time.Millisecond, func() bool { return iv.count("k") == 1 })
	// 最坏延迟不超过一个窗口
	assert.Less(t, iv.at("k")[0], 900*time.Millisecond)
}

// TestRequest_KeysAreIndependent 测试不同键的调度互不影响
func TestRequest_KeysAreIndependent(t *testing.T) {
	mock := clock.NewMock()
	iv := newInvocations(mock)
	a := NewRequest("a", 500*time.Millisecond, iv.perform, WithClock(mock))
	b := NewRequest("b", 500*time.Millisecond, iv.perform, WithClock(mock))

	a.Request()
	mock.Add(200 * time.Millisecond)
	b.Request()
	a.Request()

	advance(t, mock, 10*time.Millisecond, func() bool { return iv.count("a") == 1 })
	assert.Equal(t, 0, iv.count("b"))
	assert.True(t, b.Pending())

	advance(t, mock, 10*time.Millisecond, func() bool { return iv.count("b") == 1 })
	settle()
	assert.Equal(t, 1, iv.count("a"))
	assert.GreaterOrEqual(t, iv.at("b")[0], 700*time.Millisecond)
}

// 0ms、100ms 两次请求合并为一次，600ms 的请求产生第二次调用
// TestRequest_BurstThenLateRequest 测试突发之后的迟到请求安排新的执行
func TestRequest_BurstThenLateRequest(t *testing.T) {
	mock := clock.NewMock()
	iv := newInvocations(mock)
	r := NewRequest("u1", 500*time.Millisecond, iv.perform, WithClock(mock))

	r.Request()
	mock.Add(100 * time.Millisecond)
	r.Request()

	advance(t, mock, 10*time.Millisecond, func() bool { return iv.count("u1") == 1 })
	if now := time.Duration(mock.Now().UnixNano()); now < 600*time.Millisecond {
		mock.Add(600*time.Millisecond - now)
	}
	r.Request()

	advance(t, mock, 10*time.Millisecond, func() bool { return iv.count("u1") == 2 })
	settle()
	assert.Equal(t, 2, iv.count("u1"))
}

// TestRequest_RequestDuringPerformSchedulesAgain 测试执行期间的请求安排下一次执行
func TestRequest_RequestDuringPerformSchedulesAgain(t *testing.T) {
	mock := clock.NewMock()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	r := NewRequest("k", 100*time.Millisecond, func(string) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	}, WithClock(mock))

	r.Request()
	mock.Add(100 * time.Millisecond)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("动作未执行")
	}

	// 执行期间的请求安排新的调用
	r.Request()
	assert.True(t, r.Pending())
	close(release)

	advance(t, mock, 10*time.Millisecond, func() bool { return calls.Load() == 2 })
}

// TestRequest_ErrorsAndPanicsAreContained 测试执行函数的错误与 panic 被捕获
func TestRequest_ErrorsAndPanicsAreContained(t *testing.T) {
	mock := clock.NewMock()
	var calls atomic.Int32

	r := NewRequest("k", 100*time.Millisecond, func(string) error {
		switch calls.Add(1) {
		case 1:
			return errors.New("refresh failed")
		case 2:
			panic("boom")
		}
		return nil
	}, WithClock(mock))

	for want := int32(1); want <= 3; want++ {
		r.Request()
		advance(t, mock, 10*time.Millisecond, func() bool { return calls.Load() == want })
		require.Eventually(t, func() bool { return !r.Pending() }, time.Second, time.Millisecond)
	}
}

// TestRequest_ExtendOnRequest 测试尾沿模式下请求推迟截止时间
func TestRequest_ExtendOnRequest(t *testing.T) {
	mock := clock.NewMock()
	iv := newInvocations(mock)
	r := NewRequest("k", 500*time.Millisecond, iv.perform, WithClock(mock), WithExtendOnRequest())

	r.Request()
	mock.Add(300 * time.Millisecond)
	r.Request()
	assert.Equal(t, 800*time.Millisecond, time.Duration(r.Deadline().UnixNano()))

	advance(t, mock, 10*time.Millisecond, func() bool { return iv.count("k") == 1 })
	settle()

	assert.Equal(t, 1, iv.count("k"))
	assert.GreaterOrEqual(t, iv.at("k")[0], 800*time.Millisecond)
}
