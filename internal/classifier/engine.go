package classifier

import (
	"fmt"
	"strings"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

const (
	weightSubject    = 0.4
	weightBody       = 0.3
	weightSender     = 0.2
	weightAttachment = 0.1

	emergencyConfidence = 0.95
	secondaryConfidence = 0.6
	unknownConfidence   = 0.4
	urgentBonus         = 0.3
	maxRuleConfidence   = 0.9
)

// Input is the part of a message the engine scores.
type Input struct {
	Subject        string
	Body           string
	Sender         string
	HasAttachments bool
}

// Engine scores messages against the active rule set. It holds no state of
// its own, so identical input and rules always give identical output.
type Engine struct {
	rules RuleSource
}

func NewEngine(rules RuleSource) *Engine {
	return &Engine{rules: rules}
}

// Classify returns the category, priority and confidence for a message.
// It fails only when no rule set is available.
func (e *Engine) Classify(in Input) (domain.Classification, error) {
	rs, err := e.rules.Rules()
	if err != nil {
		return domain.Classification{}, err
	}
	text := strings.ToLower(in.Subject + " " + in.Body)
	registration := ExtractAircraftRegistration(in.Subject + " " + in.Body)

	if hits := matchAll(rs.AviationKeywords.Critical, text); len(hits) > 0 {
		return domain.Classification{
			Category:             domain.CategoryEmergency,
			Priority:             domain.PriorityCritical,
			Confidence:           emergencyConfidence,
			MatchedKeywords:      hits,
			AircraftRegistration: registration,
			IsEmergency:          true,
			Reasoning:            fmt.Sprintf("emergency keywords matched: %s", strings.Join(hits, ", ")),
		}, nil
	}

	matched := []string{}
	bonus := 0.0
	if hits := matchAll(rs.AviationKeywords.Urgent, text); len(hits) > 0 {
		matched = append(matched, hits...)
		bonus = urgentBonus
	}

	var best *CategoryRule
	bestScore := 0.0
	for i := range rs.Categories {
		rule := &rs.Categories[i]
		score := scoreRule(rule.Conditions, text, in.Sender, in.HasAttachments)
		if score > bestScore {
			best = rule
			bestScore = score
		}
	}

	if best == nil {
		if hits := matchAll(rs.SecondaryKeywords, text); len(hits) > 0 {
			return domain.Classification{
				Category:             domain.CategoryGeneric,
				Priority:             domain.PriorityNormal,
				Confidence:           secondaryConfidence,
				MatchedKeywords:      append(matched, hits...),
				AircraftRegistration: registration,
				Reasoning:            "no rule matched; secondary keywords present",
			}, nil
		}
		return domain.Classification{
			Category:             domain.CategoryUnknown,
			Priority:             domain.PriorityNormal,
			Confidence:           unknownConfidence,
			MatchedKeywords:      matched,
			AircraftRegistration: registration,
			Reasoning:            "no rule matched",
		}, nil
	}

	priority := adjustPriority(best.priority, rs.PriorityIndicators, text)
	confidence := bestScore + bonus
	if confidence > maxRuleConfidence {
		confidence = maxRuleConfidence
	}
	return domain.Classification{
		Category:             best.category,
		Priority:             priority,
		Confidence:           confidence,
		MatchedKeywords:      matched,
		AircraftRegistration: registration,
		IsEmergency:          best.category == domain.CategoryEmergency,
		RuleName:             best.Name,
		Reasoning:            fmt.Sprintf("matched rule %s (score %.2f)", best.Name, bestScore),
	}, nil
}

// scoreRule returns achieved weight over applicable weight, so a rule that
// defines fewer conditions is not penalised for the ones it leaves out.
func scoreRule(c Conditions, text, sender string, hasAttachments bool) float64 {
	total, applicable := 0.0, 0.0
	if c.SubjectContains != nil {
		applicable += weightSubject
		total += weightSubject * fraction(c.SubjectContains, text)
	}
	if c.BodyContains != nil {
		applicable += weightBody
		total += weightBody * fraction(c.BodyContains, text)
	}
	if c.SenderDomains != nil {
		applicable += weightSender
		if senderDomainMatches(c.SenderDomains, sender) {
			total += weightSender
		}
	}
	if c.HasAttachments != nil {
		applicable += weightAttachment
		if *c.HasAttachments == hasAttachments {
			total += weightAttachment
		}
	}
	if applicable == 0 {
		return 0
	}
	return total / applicable
}

func fraction(keywords KeywordList, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func senderDomainMatches(domains KeywordList, sender string) bool {
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return false
	}
	senderDomain := strings.ToLower(strings.TrimSpace(sender[at+1:]))
	for _, d := range domains {
		if strings.Contains(senderDomain, d) {
			return true
		}
	}
	return false
}

// adjustPriority raises a rule priority to HIGH when a critical indicator
// matches. It never lowers priority and never reaches CRITICAL.
func adjustPriority(p domain.Priority, indicators PriorityIndicators, text string) domain.Priority {
	if p.Rank() < domain.PriorityHigh.Rank() && len(matchAll(indicators.Critical, text)) > 0 {
		return domain.PriorityHigh
	}
	return p
}

func matchAll(keywords KeywordList, text string) []string {
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}
