package alerting

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/warehouseops/pipeline/internal/events"
)

// Operator is a rule condition's comparison kind.
type Operator string

const (
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpEquals      Operator = "eq"
	OpContains    Operator = "contains"
	OpRegex       Operator = "regex"
)

// MatchMode controls how a rule's conditions combine.
type MatchMode string

const (
	// AnyOf fires the rule on the first matching condition, reproducing
	// the original evaluator's early-return-true behavior (§9).
	AnyOf MatchMode = "any_of"
	// AllOf requires every condition to match.
	AllOf MatchMode = "all_of"
)

// Condition is one clause of a Rule.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Rule synthesizes an alert from incoming data when its conditions
// match, per §4.9's evaluate_rules.
type Rule struct {
	Name        string
	Title       string
	Description string
	Severity    events.Severity
	Source      string
	Conditions  []Condition
	// MatchMode defaults to AnyOf when empty.
	MatchMode MatchMode
}

func (r Rule) matchMode() MatchMode {
	if r.MatchMode == "" {
		return AnyOf
	}
	return r.MatchMode
}

// EvaluateRules runs every configured rule against data, creating (and
// deduping/notifying through) an alert for each that fires.
func (m *Manager) EvaluateRules(ctx context.Context, data map[string]any) []events.Alert {
	var fired []events.Alert
	for _, rule := range m.rules {
		if !evaluateRule(rule, data) {
			continue
		}
		fired = append(fired, m.createFromRule(ctx, rule, data))
	}
	return fired
}

func evaluateRule(rule Rule, data map[string]any) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	switch rule.matchMode() {
	case AllOf:
		for _, c := range rule.Conditions {
			if !evaluateCondition(c, data) {
				return false
			}
		}
		return true
	default: // AnyOf
		for _, c := range rule.Conditions {
			if evaluateCondition(c, data) {
				return true
			}
		}
		return false
	}
}

func evaluateCondition(c Condition, data map[string]any) bool {
	dataValue, ok := data[c.Field]
	if !ok {
		return false
	}

	switch c.Operator {
	case OpGreaterThan:
		a, okA := toFloat(dataValue)
		b, okB := toFloat(c.Value)
		return okA && okB && a > b
	case OpLessThan:
		a, okA := toFloat(dataValue)
		b, okB := toFloat(c.Value)
		return okA && okB && a < b
	case OpEquals:
		return fmt.Sprintf("%v", dataValue) == fmt.Sprintf("%v", c.Value)
	case OpContains:
		substr, ok := c.Value.(string)
		return ok && strings.Contains(fmt.Sprintf("%v", dataValue), substr)
	case OpRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprintf("%v", dataValue))
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (m *Manager) createFromRule(ctx context.Context, rule Rule, data map[string]any) events.Alert {
	correlationID, _ := data["correlation_id"].(string)
	if correlationID == "" {
		correlationID = "unknown"
	}
	alertID := fmt.Sprintf("%s_%s", rule.Name, correlationID)

	title := rule.Title
	if title == "" {
		title = fmt.Sprintf("Alert: %s", rule.Name)
	}
	description := rule.Description
	if description == "" {
		description = "Alert rule triggered"
	}
	severity := rule.Severity
	if severity == "" {
		severity = events.SeverityWarning
	}
	source := rule.Source
	if source == "" {
		source = "alert_rules"
	}

	triggeredBy, _ := data["source"].(string)
	metadata := map[string]any{
		"rule_name":      rule.Name,
		"triggered_by":   triggeredBy,
		"correlation_id": correlationID,
	}

	return m.Create(ctx, alertID, title, description, severity, source, metadata)
}
