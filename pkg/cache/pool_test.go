package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewRebuildPool(2, 8)
	defer p.Close()

	done := make(chan struct{})
	ok := p.Submit(func() { close(done) })
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestPoolSaturationDropsWithoutBlocking(t *testing.T) {
	p := NewRebuildPool(1, 1)
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	// 占住唯一 worker，等它真的开始跑再填队列
	require.True(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	// 填满队列
	require.True(t, p.Submit(func() {}))

	// 第三个必须立刻被丢弃，不阻塞调用方
	start := time.Now()
	require.False(t, p.Submit(func() {}))
	require.Less(t, time.Since(start), 100*time.Millisecond)

	_, dropped := p.Stats()
	require.EqualValues(t, 1, dropped)

	close(block)
}

func TestPoolWorkerSurvivesPanic(t *testing.T) {
	p := NewRebuildPool(1, 4)
	defer p.Close()

	require.True(t, p.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.True(t, p.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestPoolCloseWaitsForInflight(t *testing.T) {
	p := NewRebuildPool(1, 4)

	done := make(chan struct{})
	require.True(t, p.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		close(done)
	}))

	p.Close()
	select {
	case <-done:
	default:
		t.Fatal("Close returned before task finished")
	}

	// 重复 Close 安全
	p.Close()
}
