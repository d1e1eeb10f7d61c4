package checkpoint

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentgraph/internal/config"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

func sampleState() *state.RunState {
	info := &project.Info{
		Name:        "demo",
		Type:        "go",
		Description: "Demo service",
		Path:        "/tmp/demo",
		TechStack:   project.NewTechStack(map[string]string{"language": "go", "linter": "golangci-lint"}),
	}
	return &state.RunState{
		Messages:       []state.Message{state.Human("Check Go version"), state.Assistant("Go 1.23")},
		CurrentProject: "demo",
		Projects:       map[string]*project.Info{"demo": info},
		ProjectContext: state.Some(&project.Context{Info: info}),
		NextAgent:      state.Architect,
		Task:           "Check Go version",
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "checkpoints.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cp := &Checkpoint{ThreadID: "demo_session", State: sampleState(), Next: "architect", Step: 1}
			require.NoError(t, s.Save(ctx, cp))
			assert.False(t, cp.UpdatedAt.IsZero())

			got, err := s.Load(ctx, "demo_session")
			require.NoError(t, err)
			assert.Equal(t, "demo_session", got.ThreadID)
			assert.Equal(t, "architect", got.Next)
			assert.Equal(t, 1, got.Step)
			assert.False(t, got.Done())
			assert.WithinDuration(t, cp.UpdatedAt, got.UpdatedAt, time.Second)

			rs := got.State
			assert.Equal(t, state.Architect, rs.NextAgent)
			assert.Equal(t, "Check Go version", rs.Task)
			require.Len(t, rs.Messages, 2)
			assert.Equal(t, cp.State.Messages[0].ID, rs.Messages[0].ID)
			assert.Equal(t, state.RoleAssistant, rs.Messages[1].Role)

			pc := rs.Context()
			require.NotNil(t, pc)
			assert.Equal(t, "demo", pc.Info.Name)
			assert.Equal(t, "golangci-lint", pc.Info.TechStack.Extra["linter"])
			assert.Contains(t, rs.Projects, "demo")
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rs := sampleState()
			require.NoError(t, s.Save(ctx, &Checkpoint{ThreadID: "t1", State: rs, Next: "architect", Step: 1}))

			rs = rs.Apply(state.Reply(state.Assistant("done")))
			require.NoError(t, s.Save(ctx, &Checkpoint{ThreadID: "t1", State: rs, Step: 2}))

			got, err := s.Load(ctx, "t1")
			require.NoError(t, err)
			assert.True(t, got.Done())
			assert.Equal(t, 2, got.Step)
			assert.Len(t, got.State.Messages, 3)
			assert.Equal(t, state.Unset, got.State.NextAgent)
		})
	}
}

func TestStore_NoProjectContext(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rs := &state.RunState{Task: "x", ProjectContext: state.None[*project.Context]()}
			require.NoError(t, s.Save(ctx, &Checkpoint{ThreadID: "t", State: rs}))

			got, err := s.Load(ctx, "t")
			require.NoError(t, err)
			assert.False(t, got.State.ProjectContext.IsSome())
			assert.Nil(t, got.State.Context())
		})
	}
}

func TestStore_Isolation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rs := sampleState()
			require.NoError(t, s.Save(ctx, &Checkpoint{ThreadID: "t", State: rs}))
			rs.Task = "mutated after save"

			got, err := s.Load(ctx, "t")
			require.NoError(t, err)
			assert.Equal(t, "Check Go version", got.State.Task)
		})
	}
}

func TestStore_DeleteAndThreads(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"b_session", "a_session"} {
				require.NoError(t, s.Save(ctx, &Checkpoint{ThreadID: id, State: sampleState()}))
			}
			ids, err := s.Threads(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a_session", "b_session"}, ids)

			require.NoError(t, s.Delete(ctx, "a_session"))
			require.NoError(t, s.Delete(ctx, "never-existed"))
			_, err = s.Load(ctx, "a_session")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_InvalidSave(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Save(context.Background(), &Checkpoint{State: sampleState()}), ErrInvalidThread)
			assert.Error(t, s.Save(context.Background(), nil))
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Close())
			_, err := s.Load(context.Background(), "t")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, s.Save(context.Background(), &Checkpoint{ThreadID: "t", State: sampleState()}), ErrClosed)
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &Checkpoint{ThreadID: "demo_session", State: sampleState(), Next: "supervisor"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	got, err := s.Load(ctx, "demo_session")
	require.NoError(t, err)
	assert.Equal(t, "supervisor", got.Next)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.CheckpointConfig{Backend: config.CheckpointMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.CheckpointConfig{Backend: config.CheckpointSQLite, Path: filepath.Join(t.TempDir(), "a.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.CheckpointConfig{Backend: "redis"}, nil)
	assert.Error(t, err)

	_, err = Open(config.CheckpointConfig{Backend: config.CheckpointSQLite}, nil)
	assert.Error(t, err)
}

func TestKeyedLocker(t *testing.T) {
	k := NewKeyedLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "thread")
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, k.Len())
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	k := NewKeyedLocker()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, "a")
	require.NoError(t, err)
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, k.Len())

	unlockA()
	unlockA() // idempotent
	unlockB()
	assert.Zero(t, k.Len())
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	k := NewKeyedLocker()
	unlock, err := k.Lock(context.Background(), "t")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "t")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, k.Len())
}
