package transferpricing

import (
	"fmt"
	"sort"

	"github.com/tpa/backend/internal/domain/shared"
)

// Pairing is a record together with the rule resolved for it. Rule is nil
// when no rule applies.
type Pairing struct {
	Record Record
	Rule   *Rule
}

// Matches reports whether every declaring key of rule holds the same value
// on rec. A rule without declaring keys matches every record.
func Matches(rule *Rule, rec Record) bool {
	return rule.Declaring.Covers(rec.Declaring)
}

// SortBySpecificity returns rules ordered by ascending lowest declaring
// segment index, the order in which they take precedence when merged. Rules
// without declaring keys come last. Ties are broken by key count, then by
// segmentation signature, then by ID, so that the order never depends on
// the input order.
func SortBySpecificity(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return moreSpecific(&sorted[i], &sorted[j])
	})
	return sorted
}

func moreSpecific(a, b *Rule) bool {
	ai, aok := a.Declaring.MinIndex()
	bi, bok := b.Declaring.MinIndex()
	if aok != bok {
		return aok
	}
	if ai != bi {
		return ai < bi
	}
	if len(a.Declaring) != len(b.Declaring) {
		return len(a.Declaring) > len(b.Declaring)
	}
	if sa, sb := a.Declaring.Signature(), b.Declaring.Signature(); sa != sb {
		return sa < sb
	}
	return a.ID < b.ID
}

// Resolve merges the candidates applicable to rec into a single rule.
// Candidates must already be sorted by specificity. Out-of-scope rules and
// rules whose validity window excludes the firm creation date are dropped;
// nil is returned when nothing survives.
func Resolve(rec Record, candidates []Rule) *Rule {
	var merged *Rule
	for i := range candidates {
		c := candidates[i]
		if c.OutOfScope() {
			continue
		}
		if rec.FirmCreationDate != nil && !c.Validity.Contains(*rec.FirmCreationDate) {
			continue
		}
		if merged == nil {
			r := c.WithFallback(Rule{})
			merged = &r
			continue
		}
		r := merged.WithFallback(c)
		merged = &r
	}
	return merged
}

// Candidates is a record together with every rule matching it, most
// specific first.
type Candidates struct {
	Record Record
	Rules  []Rule
}

// Affect lists the matching rules of every record, keeping input order.
func Affect(records []Record, rules []Rule) []Candidates {
	sorted := SortBySpecificity(rules)
	out := make([]Candidates, 0, len(records))
	for _, rec := range records {
		c := Candidates{Record: rec}
		for i := range sorted {
			if Matches(&sorted[i], rec) {
				c.Rules = append(c.Rules, sorted[i])
			}
		}
		out = append(out, c)
	}
	return out
}

// ResolveRules pairs every record with its best rule, keeping input order.
func ResolveRules(records []Record, rules []Rule) []Pairing {
	affected := Affect(records, rules)
	out := make([]Pairing, 0, len(affected))
	for _, c := range affected {
		out = append(out, Pairing{Record: c.Record, Rule: Resolve(c.Record, c.Rules)})
	}
	return out
}

// FindCounterpart returns the single output whose declaring segmentation
// carries every counterpart key of rule with the same value.
func FindCounterpart(outputs []*OutputRecord, rule *Rule) (*OutputRecord, error) {
	var found *OutputRecord
	count := 0
	for _, o := range outputs {
		if rule.Counterpart.Covers(o.Input.Declaring) {
			if found == nil {
				found = o
			}
			count++
		}
	}
	switch {
	case count == 0:
		return nil, fmt.Errorf("%w: rule %d (%s) counterpart [%s]",
			shared.ErrCounterpartNotFound, rule.ID, rule.Method, rule.Counterpart.Signature())
	case count > 1:
		return nil, fmt.Errorf("%w: rule %d (%s) counterpart [%s] matches %d records",
			shared.ErrAmbiguousCounterpart, rule.ID, rule.Method, rule.Counterpart.Signature(), count)
	}
	return found, nil
}
