package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/logging"
	"github.com/fyrsmithlabs/agentgraph/internal/metrics"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

// Evidence bounds.
const (
	EvidenceMessages = 5
	EvidenceRunes    = 200
)

// SupervisorName is the node name of the supervisor.
const SupervisorName = "supervisor"

// Policy is a routing mode: the labels the supervisor may choose from and
// the instruction that describes them.
type Policy struct {
	Name        string
	Labels      []state.Agent
	Instruction string
	// WorkHeading introduces the recent-work evidence in the human prompt.
	WorkHeading string
}

// Allows reports whether a is one of the policy labels.
func (p Policy) Allows(a state.Agent) bool {
	for _, l := range p.Labels {
		if l == a {
			return true
		}
	}
	return false
}

func (p Policy) labelList() string {
	names := make([]string, len(p.Labels))
	for i, l := range p.Labels {
		names[i] = l.String()
	}
	return strings.Join(names, ", ")
}

const roster = `You are a supervisor agent coordinating a team of software development agents.

Your team consists of:
- architect: Designs system architecture, analyzes requirements, answers questions about code/project structure
- developer: Implements features, fixes bugs, and writes code
- reviewer: Reviews code for quality, best practices, and issues
- tester: Designs and implements tests
`

// FirstTurn dispatches the task to exactly one worker.
var FirstTurn = Policy{
	Name:   "first_turn",
	Labels: []state.Agent{state.Architect, state.Developer, state.Reviewer, state.Tester},
	Instruction: roster + `
Routing Guidelines:
1. Information queries (checking versions, analyzing structure, reading docs) → architect
2. Implementation tasks (add feature, fix bug, write code) → developer
3. Code review requests (review code, check quality) → reviewer
4. Testing tasks (write tests, test coverage) → tester

Examples:
- "Check Go version" → architect (information query)
- "Read README file" → architect (information query)
- "Add error handling" → developer (implementation)
- "Review the HTTP client" → reviewer (code review)
- "Write unit tests" → tester (testing)

Analyze the user's task and determine which agent should handle it.
Respond with ONLY the agent name: architect, developer, reviewer, or tester
`,
	WorkHeading: "Conversation so far:",
}

// Reroute is consulted after every worker step and may end the run.
var Reroute = Policy{
	Name:   "reroute",
	Labels: []state.Agent{state.Architect, state.Developer, state.Reviewer, state.Tester, state.End},
	Instruction: roster + `- end: The work is complete and no agent needs to act

Routing Guidelines:
1. Information queries (checking versions, analyzing structure, reading docs) → architect
2. Implementation tasks (add feature, fix bug, write code) → developer
3. Code review requests (review code, check quality) → reviewer
4. Testing tasks (write tests, test coverage) → tester
5. The current line of work is finished → end
   (the architect answered a pure query, the developer finished a modification, or the tests passed)

Review the recent work against the user's task and decide which agent should act next.
Respond with ONLY the agent name: architect, developer, reviewer, tester, or end
`,
	WorkHeading: "Recent work:",
}

// Decision is the outcome of one routing step.
type Decision struct {
	Agent    state.Agent
	Reply    string
	Fallback bool
}

// Supervisor chooses the next worker.
type Supervisor struct {
	backend llm.Backend
	policy  Policy
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewSupervisor creates a supervisor using policy. m may be nil.
func NewSupervisor(backend llm.Backend, policy Policy, m *metrics.Metrics, opts ...Option) *Supervisor {
	o := buildOptions(opts)
	return &Supervisor{
		backend: backend,
		policy:  policy,
		metrics: m,
		logger:  o.logger.Named(SupervisorName),
	}
}

// Name returns the node name.
func (s *Supervisor) Name() string {
	return SupervisorName
}

// Policy returns the routing policy in use.
func (s *Supervisor) Policy() Policy {
	return s.policy
}

// Run routes the state and returns an update setting NextAgent.
func (s *Supervisor) Run(ctx context.Context, rs *state.RunState) (state.Update, error) {
	d, err := s.Decide(ctx, rs)
	if err != nil {
		return state.Update{}, err
	}
	return state.Route(d.Agent), nil
}

// Decide invokes the backend once, without tools, and parses the label.
// An unusable reply resolves through Fallback and is not an error.
func (s *Supervisor) Decide(ctx context.Context, rs *state.RunState) (Decision, error) {
	evidence := Evidence(rs.Messages)
	messages := []state.Message{
		state.System(s.policy.Instruction),
		state.Human(s.humanPrompt(rs, evidence)),
	}

	reply, err := s.backend.Invoke(ctx, messages, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("supervisor: invoking model: %w", err)
	}

	d := Decision{Reply: reply.Text()}
	label := strings.ToLower(strings.TrimSpace(d.Reply))
	if a, ok := state.ParseAgent(label); ok && a != state.Unset && s.policy.Allows(a) {
		d.Agent = a
	} else {
		d.Agent = Fallback(evidence)
		d.Fallback = true
	}

	s.metrics.RecordRouting(d.Agent.String(), d.Fallback)
	s.logger.Info(ctx, "routing decision",
		zap.String("agent", d.Agent.String()),
		zap.Bool("fallback", d.Fallback),
		zap.String("policy", s.policy.Name))
	if d.Fallback {
		s.logger.Debug(ctx, "unusable routing reply", zap.String("reply", state.Truncate(d.Reply, EvidenceRunes)))
	}
	return d, nil
}

func (s *Supervisor) humanPrompt(rs *state.RunState, evidence []string) string {
	current := rs.CurrentProject
	if current == "" {
		current = "unknown"
	}

	var b strings.Builder
	b.WriteString("Current project: ")
	b.WriteString(current)
	if pc := rs.Context(); pc != nil && pc.Info != nil {
		fmt.Fprintf(&b, "\nProject type: %s", pc.Info.Type)
		fmt.Fprintf(&b, "\nDescription: %s", pc.Info.Description)
	}
	b.WriteString("\n\nTask: ")
	b.WriteString(rs.Task)

	if len(evidence) > 0 {
		b.WriteString("\n\n")
		b.WriteString(s.policy.WorkHeading)
		for _, e := range evidence {
			b.WriteString("\n- ")
			b.WriteString(e)
		}
	}

	fmt.Fprintf(&b, "\n\nReply with exactly one of: %s", s.policy.labelList())
	return b.String()
}

// Evidence flattens the trailing messages to text, each cut to
// EvidenceRunes runes. Empty messages are skipped.
func Evidence(msgs []state.Message) []string {
	recent := state.Last(msgs, EvidenceMessages)
	out := make([]string, 0, len(recent))
	for _, m := range recent {
		text := strings.TrimSpace(state.Truncate(m.Text(), EvidenceRunes))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Fallback picks developer when the evidence shows tool use or searching,
// otherwise architect.
func Fallback(evidence []string) state.Agent {
	for _, e := range evidence {
		lower := strings.ToLower(e)
		if strings.Contains(lower, "tool") || strings.Contains(lower, "search") {
			return state.Developer
		}
	}
	return state.Architect
}
