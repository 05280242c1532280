// Package models defines the validation result tree shared by the checkers,
// the engine, and the report layer.
//
// Results form a tree: a Branch groups named sub-results, a Leaf carries one
// CheckResult. Consumers switch on the node type instead of probing map keys,
// so a malformed tree is a compile error rather than a silent miscount.
package models

import "encoding/json"

// Status is the verdict of a single check.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusWarn    Status = "WARN"
	StatusFail    Status = "FAIL"
	StatusInfo    Status = "INFO"
	StatusSkip    Status = "SKIP"
	StatusUnknown Status = "UNKNOWN"
)

// severityRank orders statuses for worst-wins aggregation.
// Higher means worse.
var severityRank = map[Status]int{
	StatusUnknown: 0,
	StatusPass:    1,
	StatusInfo:    2,
	StatusSkip:    2,
	StatusWarn:    3,
	StatusFail:    4,
}

// Worse returns the more severe of a and b.
func Worse(a, b Status) Status {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Severity classifies a recommendation.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Recommendation is a remediation hint attached to a check result. Category
// is filled in by the report layer with the tree path of the originating
// check.
type Recommendation struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Category string   `json:"category,omitempty"`
}

// CheckResult is the outcome of one check. It is immutable once returned:
// checkers build a fresh value per run and never mutate prior results.
type CheckResult struct {
	Status          Status
	Message         string
	Details         map[string]any
	Recommendations []Recommendation
}

// Node is one position in the result tree. Exactly two implementations
// exist: Leaf and Branch.
type Node interface {
	node()
}

// Leaf wraps a single CheckResult.
type Leaf struct {
	Check CheckResult
}

func (Leaf) node() {}

// Branch maps child names to sub-results.
type Branch map[string]Node

func (Branch) node() {}

// NewLeaf builds a Leaf with the given status and message.
func NewLeaf(status Status, message string) Leaf {
	return Leaf{Check: CheckResult{Status: status, Message: message}}
}

// WithDetails returns a copy of l carrying the given detail map.
func (l Leaf) WithDetails(details map[string]any) Leaf {
	l.Check.Details = details
	return l
}

// WithRecommendations returns a copy of l carrying the given recommendations.
func (l Leaf) WithRecommendations(recs ...Recommendation) Leaf {
	l.Check.Recommendations = append(l.Check.Recommendations, recs...)
	return l
}

// FailLeaf builds a FAIL Leaf from an error, preserving the error text in
// both the message and the details so reports show what broke.
func FailLeaf(message string, err error) Leaf {
	return Leaf{Check: CheckResult{
		Status:  StatusFail,
		Message: message + ": " + err.Error(),
		Details: map[string]any{"error": err.Error()},
	}}
}

// MarshalJSON flattens the leaf into a single object: status and message
// first, then every detail key, then recommendations if present. Detail keys
// named "status" or "message" would collide and are skipped.
func (l Leaf) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Check.Details)+3)
	out["status"] = l.Check.Status
	out["message"] = l.Check.Message
	for k, v := range l.Check.Details {
		if k == "status" || k == "message" {
			continue
		}
		out[k] = v
	}
	if len(l.Check.Recommendations) > 0 {
		out["recommendations"] = l.Check.Recommendations
	}
	return json.Marshal(out)
}

// MarshalJSON renders the branch as a plain JSON object.
func (b Branch) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(b))
	for name, child := range b {
		data, err := json.Marshal(child)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return json.Marshal(out)
}

// Walk visits every leaf in the tree in depth-first order. The path is the
// dot-joined chain of branch keys leading to the leaf.
func Walk(root Node, visit func(path string, check CheckResult)) {
	walk(root, "", visit)
}

func walk(n Node, path string, visit func(string, CheckResult)) {
	switch t := n.(type) {
	case Leaf:
		visit(path, t.Check)
	case Branch:
		for name, child := range t {
			childPath := name
			if path != "" {
				childPath = path + "." + name
			}
			walk(child, childPath, visit)
		}
	}
}

// Aggregate returns the worst status across every leaf under root.
// An empty tree aggregates to UNKNOWN.
func Aggregate(root Node) Status {
	worst := StatusUnknown
	Walk(root, func(_ string, check CheckResult) {
		worst = Worse(worst, check.Status)
	})
	return worst
}
