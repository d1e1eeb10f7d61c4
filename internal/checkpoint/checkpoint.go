package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/config"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

const instrumentationName = "github.com/fyrsmithlabs/agentgraph/internal/checkpoint"

var (
	// ErrNotFound is returned when a thread has no checkpoint.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("checkpoint store is closed")

	// ErrInvalidThread is returned for an empty thread ID.
	ErrInvalidThread = errors.New("thread id is required")
)

// Checkpoint is the saved state of one thread.
type Checkpoint struct {
	// ThreadID is the opaque key of the conversation.
	ThreadID string `json:"thread_id"`

	// State is the full run state after the last completed node.
	State *state.RunState `json:"state"`

	// Next is the node that runs next; empty when the run finished.
	Next string `json:"next,omitempty"`

	// Step counts the nodes executed in the current run.
	Step int `json:"step"`

	// UpdatedAt is when the checkpoint was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether the checkpointed run reached the terminal state.
func (c *Checkpoint) Done() bool {
	return c.Next == ""
}

// Store loads and saves checkpoints by thread.
type Store interface {
	// Load returns the checkpoint of threadID or ErrNotFound.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Save overwrites the checkpoint of cp.ThreadID.
	Save(ctx context.Context, cp *Checkpoint) error

	// Delete removes the checkpoint of threadID. Deleting an unknown thread
	// is not an error.
	Delete(ctx context.Context, threadID string) error

	// Threads lists the thread IDs with a checkpoint, sorted.
	Threads(ctx context.Context) ([]string, error)

	// Close releases the store.
	Close() error
}

func encode(cp *Checkpoint) ([]byte, error) {
	if cp == nil {
		return nil, errors.New("checkpoint is nil")
	}
	if cp.ThreadID == "" {
		return nil, ErrInvalidThread
	}
	data, err := json.Marshal(cp.State)
	if err != nil {
		return nil, fmt.Errorf("encoding state for thread %s: %w", cp.ThreadID, err)
	}
	return data, nil
}

func decode(threadID string, data []byte) (*state.RunState, error) {
	var rs state.RunState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decoding state for thread %s: %w", threadID, err)
	}
	return &rs, nil
}

// Open returns the store selected by cfg.
func Open(cfg config.CheckpointConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.CheckpointMemory, "":
		return NewMemoryStore(), nil
	case config.CheckpointSQLite:
		s, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
