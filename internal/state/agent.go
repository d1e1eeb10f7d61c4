package state

import (
	"fmt"
	"strings"
)

// Agent is a routing label: the value of RunState.NextAgent.
type Agent int

// Routing labels. Unset is the zero value.
const (
	Unset Agent = iota
	Architect
	Developer
	Reviewer
	Tester
	End
)

var agentNames = [...]string{
	Unset:     "",
	Architect: "architect",
	Developer: "developer",
	Reviewer:  "reviewer",
	Tester:    "tester",
	End:       "end",
}

// Workers lists the worker labels in roster order.
var Workers = []Agent{Architect, Developer, Reviewer, Tester}

func (a Agent) String() string {
	if a < 0 || int(a) >= len(agentNames) {
		return fmt.Sprintf("agent(%d)", int(a))
	}
	return agentNames[a]
}

// IsWorker reports whether a names one of the four worker nodes.
func (a Agent) IsWorker() bool {
	switch a {
	case Architect, Developer, Reviewer, Tester:
		return true
	default:
		return false
	}
}

// ParseAgent maps a label to an Agent. Matching is exact; callers normalize
// case and whitespace. Unknown labels return Unset and false.
func ParseAgent(s string) (Agent, bool) {
	for i, name := range agentNames {
		if i != int(Unset) && name == s {
			return Agent(i), true
		}
	}
	return Unset, s == ""
}

// MarshalText encodes the label as its name.
func (a Agent) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a label; unknown names decode to Unset.
func (a *Agent) UnmarshalText(b []byte) error {
	*a, _ = ParseAgent(strings.TrimSpace(string(b)))
	return nil
}
