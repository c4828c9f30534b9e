package complication

import (
	"errors"
	"fmt"
)

// Severity of a classified complication.
type Severity string

const (
	SeverityLow       Severity = "low"
	SeverityModerate  Severity = "moderate"
	SeverityHigh      Severity = "high"
	SeverityEmergency Severity = "emergency"
)

var (
	// ErrUnknownAnswer reports an answer key absent from the current node.
	ErrUnknownAnswer = errors.New("answer not recognized at this question")
	// ErrIncompleteAnswers reports a walk that ran out of answers before
	// reaching a terminal node.
	ErrIncompleteAnswers = errors.New("answers do not reach a severity")
)

// Node is one step of the triage tree: either a question with keyed answers
// pointing at the next node, or a terminal carrying a severity.
type Node struct {
	ID       string
	Question string
	Answers  map[string]string
	Severity Severity
}

// Terminal reports whether the node carries a final severity.
func (n *Node) Terminal() bool { return n.Severity != "" }

// Tree is a fixed triage decision tree walked by node id.
type Tree struct {
	root  string
	nodes map[string]*Node
}

func NewTree(root string, nodes []*Node) *Tree {
	t := &Tree{root: root, nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		t.nodes[n.ID] = n
	}
	return t
}

// Root returns the opening question node.
func (t *Tree) Root() *Node { return t.nodes[t.root] }

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id string) *Node { return t.nodes[id] }

// Walk follows the answer sequence from the root and returns the terminal
// severity plus the visited node path. Extra answers past the terminal are
// ignored; running out of answers on a question node fails.
func (t *Tree) Walk(answers []string) (Severity, []string, error) {
	node := t.Root()
	if node == nil {
		return "", nil, fmt.Errorf("triage tree has no root")
	}

	path := []string{node.ID}
	for _, a := range answers {
		if node.Terminal() {
			break
		}
		next, ok := node.Answers[a]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q at %s", ErrUnknownAnswer, a, node.ID)
		}
		node = t.nodes[next]
		if node == nil {
			return "", nil, fmt.Errorf("triage tree node missing: %s", next)
		}
		path = append(path, node.ID)
	}

	if !node.Terminal() {
		return "", nil, fmt.Errorf("%w: stopped at %s", ErrIncompleteAnswers, node.ID)
	}
	return node.Severity, path, nil
}

// PostOpTree is the fixed dental post-operative triage flow: symptom
// category, one or two follow-up questions, terminal severity.
func PostOpTree() *Tree {
	return NewTree("symptom", []*Node{
		{
			ID:       "symptom",
			Question: "What is the main problem?",
			Answers: map[string]string{
				"bleeding": "bleeding_controlled",
				"swelling": "swelling_airway",
				"pain":     "pain_medicated",
				"fever":    "fever_height",
				"numbness": "numbness_duration",
				"other":    "severity_moderate",
			},
		},
		{
			ID:       "bleeding_controlled",
			Question: "Does the bleeding stop with firm gauze pressure?",
			Answers: map[string]string{
				"yes": "severity_low",
				"no":  "bleeding_persistent",
			},
		},
		{
			ID:       "bleeding_persistent",
			Question: "Has the bleeding continued for more than twelve hours?",
			Answers: map[string]string{
				"yes": "severity_emergency",
				"no":  "severity_high",
			},
		},
		{
			ID:       "swelling_airway",
			Question: "Is there difficulty swallowing or breathing?",
			Answers: map[string]string{
				"yes": "severity_emergency",
				"no":  "swelling_spreading",
			},
		},
		{
			ID:       "swelling_spreading",
			Question: "Is the swelling spreading toward the eye or neck?",
			Answers: map[string]string{
				"yes": "severity_high",
				"no":  "severity_moderate",
			},
		},
		{
			ID:       "pain_medicated",
			Question: "Is the pain controlled by the prescribed medication?",
			Answers: map[string]string{
				"yes": "severity_low",
				"no":  "pain_worsening",
			},
		},
		{
			ID:       "pain_worsening",
			Question: "Is the pain severe and worsening past the second day?",
			Answers: map[string]string{
				"yes": "severity_high",
				"no":  "severity_moderate",
			},
		},
		{
			ID:       "fever_height",
			Question: "Is the temperature above 38.5 degrees?",
			Answers: map[string]string{
				"yes": "severity_high",
				"no":  "severity_moderate",
			},
		},
		{
			ID:       "numbness_duration",
			Question: "Has the numbness persisted beyond twenty-four hours?",
			Answers: map[string]string{
				"yes": "severity_moderate",
				"no":  "severity_low",
			},
		},
		{ID: "severity_low", Severity: SeverityLow},
		{ID: "severity_moderate", Severity: SeverityModerate},
		{ID: "severity_high", Severity: SeverityHigh},
		{ID: "severity_emergency", Severity: SeverityEmergency},
	})
}
