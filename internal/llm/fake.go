package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// ErrScriptExhausted is returned by Fake when no scripted reply is left.
var ErrScriptExhausted = errors.New("fake backend: no scripted reply left")

// Call records one Fake invocation.
type Call struct {
	Messages []state.Message
	Tools    []tools.Descriptor
}

type scripted struct {
	msg state.Message
	err error
}

// Fake is a scripted Backend for tests. Replies are consumed in order.
type Fake struct {
	mu      sync.Mutex
	script  []scripted
	calls   []Call
	Default *state.Message
}

// NewFake returns a Fake that answers with the given texts in order.
func NewFake(replies ...string) *Fake {
	f := &Fake{}
	for _, r := range replies {
		f.Reply(r)
	}
	return f
}

// Reply queues an assistant text reply.
func (f *Fake) Reply(text string) *Fake {
	return f.ReplyMessage(state.Assistant(text))
}

// ReplyMessage queues a full message.
func (f *Fake) ReplyMessage(msg state.Message) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, scripted{msg: msg})
	return f
}

// Fail queues an error.
func (f *Fake) Fail(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, scripted{err: err})
	return f
}

// Invoke records the call and returns the next scripted reply.
func (f *Fake) Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{
		Messages: append([]state.Message(nil), messages...),
		Tools:    append([]tools.Descriptor(nil), toolset...),
	})
	if err := ctx.Err(); err != nil {
		return state.Message{}, err
	}
	if len(f.script) == 0 {
		if f.Default != nil {
			msg := *f.Default
			msg.ID = uuid.NewString()
			return msg, nil
		}
		return state.Message{}, ErrScriptExhausted
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next.msg, next.err
}

// Calls returns the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns the number of invocations.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ Backend = (*Fake)(nil)
