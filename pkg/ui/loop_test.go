package ui

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_DrainRunsInOrder(t *testing.T) {
	l := NewLoop(zerolog.Nop())
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(nil)

	assert.Equal(t, 5, l.Drain())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Zero(t, l.Drain())
}

func TestLoop_RunUntilQuit(t *testing.T) {
	l := NewLoop(zerolog.Nop())
	var ran atomic.Int32

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	l.Post(func() { ran.Add(1) })
	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)

	l.Post(func() { ran.Add(1) })
	l.Quit()
	l.Quit()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Quit")
	}
	assert.EqualValues(t, 2, ran.Load(), "queued work runs before Run returns")
	<-l.Done()
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	l := NewLoop(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
