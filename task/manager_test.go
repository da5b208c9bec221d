package task

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/storyboard"
)

func waitForTerminal(t *testing.T, m *Manager, id string) *Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := m.Get(id)
		require.NoError(t, err)
		if got.Status == StatusCompleted || got.Status == StatusFailed {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return nil
}

func TestCreateSnapshotsInput(t *testing.T) {
	m := NewManager(nil)

	input := map[string]string{"text": "topic"}
	created, err := m.Create("video", input)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusPending, created.Status)
	assert.JSONEq(t, `{"text":"topic"}`, string(created.Input))

	// Mutating the original input after creation does not change the snapshot.
	input["text"] = "changed"
	got, err := m.Get(created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"topic"}`, string(got.Input))
}

func TestExecuteCompletes(t *testing.T) {
	m := NewManager(NewMetrics(prometheus.NewRegistry()))

	created, err := m.Create("video", nil)
	require.NoError(t, err)

	want := &storyboard.Result{VideoPath: "/out/v.mp4", Duration: 12.5}
	require.NoError(t, m.Execute(created.ID, func(context.Context) (*storyboard.Result, error) {
		return want, nil
	}))

	got := waitForTerminal(t, m, created.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, want, got.Result)
	assert.Empty(t, got.Error)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
}

func TestExecuteCapturesFailure(t *testing.T) {
	m := NewManager(nil)

	created, err := m.Create("video", nil)
	require.NoError(t, err)

	require.NoError(t, m.Execute(created.ID, func(context.Context) (*storyboard.Result, error) {
		return nil, fmt.Errorf("tts backend down")
	}))

	got := waitForTerminal(t, m, created.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "tts backend down", got.Error)
	assert.Nil(t, got.Result)
}

func TestExecuteRejectsNonPending(t *testing.T) {
	m := NewManager(nil)

	err := m.Execute("missing", func(context.Context) (*storyboard.Result, error) { return nil, nil })
	assert.ErrorContains(t, err, "not found")

	block := make(chan struct{})
	created, err := m.Create("video", nil)
	require.NoError(t, err)
	require.NoError(t, m.Execute(created.ID, func(context.Context) (*storyboard.Result, error) {
		<-block
		return nil, nil
	}))

	err = m.Execute(created.ID, func(context.Context) (*storyboard.Result, error) { return nil, nil })
	assert.ErrorContains(t, err, "not pending")
	close(block)
	waitForTerminal(t, m, created.ID)
}

func TestConcurrentTasksAreIndependent(t *testing.T) {
	m := NewManager(nil)

	const n = 10
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		created, err := m.Create("video", i)
		require.NoError(t, err)
		ids[i] = created.ID

		i := i
		wg.Add(1)
		require.NoError(t, m.Execute(created.ID, func(context.Context) (*storyboard.Result, error) {
			defer wg.Done()
			if i%2 == 1 {
				return nil, fmt.Errorf("task %d failed", i)
			}
			return &storyboard.Result{Duration: float64(i)}, nil
		}))
	}
	wg.Wait()

	for i, id := range ids {
		got := waitForTerminal(t, m, id)
		if i%2 == 1 {
			assert.Equal(t, StatusFailed, got.Status)
		} else {
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, float64(i), got.Result.Duration)
		}
	}
	assert.Len(t, m.List(), n)
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager(nil)
	created, err := m.Create("video", nil)
	require.NoError(t, err)

	got, err := m.Get(created.ID)
	require.NoError(t, err)
	got.Status = StatusFailed
	got.Error = "tampered"

	again, err := m.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
	assert.Empty(t, again.Error)
}
