package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"sheetclean/internal"
)

type RepairRule struct {
	Pattern     string
	Replacement string
}

func (r RepairRule) String() string {
	return r.Pattern + "=>" + r.Replacement
}

// DefaultRepairRules run in order; "hhttp://" only reaches the third rule
// after the first one has rewritten its inner "http://".
var DefaultRepairRules = []RepairRule{
	{Pattern: "http://", Replacement: "https://"},
	{Pattern: "hhttp://", Replacement: "https://"},
	{Pattern: "hhttps://", Replacement: "https://"},
}

// ParseRepairRules reads "pattern=>replacement;pattern=>replacement".
// An empty string yields the default rules.
func ParseRepairRules(raw string) ([]RepairRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		out := make([]RepairRule, len(DefaultRepairRules))
		copy(out, DefaultRepairRules)
		return out, nil
	}

	var rules []RepairRule
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pattern, replacement, ok := strings.Cut(part, "=>")
		if !ok || strings.TrimSpace(pattern) == "" {
			return nil, fmt.Errorf("invalid repair rule %q", part)
		}
		rules = append(rules, RepairRule{
			Pattern:     strings.TrimSpace(pattern),
			Replacement: strings.TrimSpace(replacement),
		})
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no repair rules in %q", raw)
	}
	return rules, nil
}

// ExtractProtocol returns everything before the last "//" on the first
// line, or nil when there is no such prefix.
func ExtractProtocol(url *string) *string {
	if url == nil {
		return nil
	}
	line := *url
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	idx := strings.LastIndex(line, "//")
	if idx <= 0 {
		return nil
	}
	p := line[:idx]
	return &p
}

type ProtocolNormalizer struct {
	Canonical string
	Rules     []RepairRule
}

func NewProtocolNormalizer(canonical string, rules []RepairRule) *ProtocolNormalizer {
	if canonical == "" {
		canonical = "https://"
	}
	if rules == nil {
		rules = DefaultRepairRules
	}
	return &ProtocolNormalizer{Canonical: canonical, Rules: rules}
}

func (n *ProtocolNormalizer) Normalize(urls []*string) []*string {
	out, _ := n.NormalizeWithPasses(urls)
	return out
}

// NormalizeWithPasses applies every repair rule in order, then prefixes the
// canonical protocol onto values that lack it. The protocol survey is taken
// on the input and after each rule. Missing values stay missing.
func (n *ProtocolNormalizer) NormalizeWithPasses(urls []*string) ([]*string, []internal.ProtocolPass) {
	out := make([]*string, len(urls))
	for i, u := range urls {
		if u != nil {
			v := *u
			out[i] = &v
		}
	}

	passes := make([]internal.ProtocolPass, 0, len(n.Rules)+1)
	passes = append(passes, surveyProtocols(0, "", out))

	for step, rule := range n.Rules {
		for _, u := range out {
			if u != nil && rule.Pattern != "" {
				*u = strings.ReplaceAll(*u, rule.Pattern, rule.Replacement)
			}
		}
		passes = append(passes, surveyProtocols(step+1, rule.String(), out))
	}

	for i, u := range out {
		if u != nil && !strings.HasPrefix(*u, n.Canonical) {
			v := n.Canonical + *u
			out[i] = &v
		}
	}
	return out, passes
}

// Unrepaired lists protocols still present after the last repair rule that
// do not start with the canonical protocol. The canonical prefix pass will
// stack on top of them.
func (n *ProtocolNormalizer) Unrepaired(passes []internal.ProtocolPass) []string {
	if len(passes) == 0 {
		return nil
	}
	var out []string
	for _, vc := range passes[len(passes)-1].Protocols {
		if !strings.HasPrefix(vc.Value+"//", n.Canonical) {
			out = append(out, vc.Value)
		}
	}
	sort.Strings(out)
	return out
}

func surveyProtocols(step int, rule string, urls []*string) internal.ProtocolPass {
	protocols := make([]*string, len(urls))
	for i, u := range urls {
		protocols[i] = ExtractProtocol(u)
	}
	counts, missing := CountValues(protocols)
	return internal.ProtocolPass{Step: step, Rule: rule, Protocols: counts, Missing: missing}
}
