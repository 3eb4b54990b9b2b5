package runtime

import "github.com/aretw0/parley/pkg/domain"

// Outcome tags a Decision.
type Outcome int

const (
	// None means nothing was decided: the turn only presented the current node.
	None Outcome = iota
	// Transition moves the conversation to Decision.Target.
	Transition
	// SelfLoop matched an answer without a target; the conversation stays put.
	SelfLoop
	// Escalate hands the utterance to the completion backend.
	Escalate
	// Terminal closes the conversation without consulting the backend.
	Terminal
)

func (o Outcome) String() string {
	switch o {
	case Transition:
		return "transition"
	case SelfLoop:
		return "self_loop"
	case Escalate:
		return "escalate"
	case Terminal:
		return "terminal"
	default:
		return "none"
	}
}

// Decision is the result of matching an utterance against a node.
type Decision struct {
	Outcome Outcome

	// Answer is the matched edge for Transition and SelfLoop.
	Answer *domain.Answer

	// Target is the node to move to for Transition.
	Target string

	// Utterance is the free text to escalate.
	Utterance string
}

// Decide matches utterance against the node's answers. It has no side effects.
//
// The first answer whose label equals the utterance, ignoring case, wins. Answers are
// tried in declaration order whatever the node kind. When nothing matches, terminal
// nodes close the conversation and every other kind escalates to free text.
func Decide(node *domain.Node, utterance string) Decision {
	for i := range node.Answers {
		if !node.Answers[i].Matches(utterance) {
			continue
		}
		answer := node.Answers[i]
		if answer.Target == "" {
			return Decision{Outcome: SelfLoop, Answer: &answer}
		}
		return Decision{Outcome: Transition, Answer: &answer, Target: answer.Target}
	}
	if node.IsTerminal() {
		return Decision{Outcome: Terminal}
	}
	return Decision{Outcome: Escalate, Utterance: utterance}
}
