package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// KeywordList accepts either a single YAML scalar or a sequence of scalars.
type KeywordList []string

func (k *KeywordList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*k = KeywordList{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(KeywordList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: keyword must be a scalar", item.Line)
			}
			out = append(out, item.Value)
		}
		*k = out
		return nil
	default:
		return fmt.Errorf("line %d: expected keyword or list of keywords", value.Line)
	}
}

// AviationKeywords drive the emergency short-circuit and the urgency bonus.
type AviationKeywords struct {
	Critical KeywordList `yaml:"critical"`
	Urgent   KeywordList `yaml:"urgent"`
}

// PriorityIndicators are free-text hints that can raise a rule's priority.
type PriorityIndicators struct {
	Critical KeywordList `yaml:"critical"`
	High     KeywordList `yaml:"high"`
}

// Conditions are the weighted checks of a category rule. A nil list or
// nil HasAttachments means the condition is not part of the rule.
type Conditions struct {
	SubjectContains KeywordList `yaml:"subject_contains"`
	BodyContains    KeywordList `yaml:"body_contains"`
	SenderDomains   KeywordList `yaml:"sender_domains"`
	HasAttachments  *bool       `yaml:"has_attachments"`
}

func (c Conditions) empty() bool {
	return c.SubjectContains == nil && c.BodyContains == nil && c.SenderDomains == nil && c.HasAttachments == nil
}

// CategoryRule maps a set of conditions onto a category and priority.
type CategoryRule struct {
	Name       string     `yaml:"name"`
	Category   string     `yaml:"category"`
	Priority   string     `yaml:"priority"`
	Conditions Conditions `yaml:"conditions"`

	category domain.Category
	priority domain.Priority
}

// RuleSet is the full classification configuration. It is read-only once
// validated; reloading swaps in a new value.
type RuleSet struct {
	Version            int                `yaml:"version"`
	AviationKeywords   AviationKeywords   `yaml:"aviation_keywords"`
	SecondaryKeywords  KeywordList        `yaml:"secondary_keywords"`
	PriorityIndicators PriorityIndicators `yaml:"priority_indicators"`
	Categories         []CategoryRule     `yaml:"categories"`
}

// ParseRules decodes and validates a YAML rule document.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, errorutil.NewConfigurationError("rules file is not valid YAML", map[string]any{"error": err.Error()})
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadRules reads a rule file from disk.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorutil.NewConfigurationError("rules file unreadable", map[string]any{"path": path, "error": err.Error()})
	}
	return ParseRules(data)
}

// Validate checks the rule set and normalizes keywords to lower case.
func (rs *RuleSet) Validate() error {
	if len(rs.Categories) == 0 {
		return errorutil.NewConfigurationError("rule set has no categories", nil)
	}
	for i := range rs.Categories {
		rule := &rs.Categories[i]
		if strings.TrimSpace(rule.Name) == "" {
			return errorutil.NewConfigurationError("category rule without a name", map[string]any{"index": i})
		}
		if rule.Conditions.empty() {
			return errorutil.NewConfigurationError("category rule has no conditions", map[string]any{"rule": rule.Name})
		}
		for field, list := range map[string]KeywordList{
			"subject_contains": rule.Conditions.SubjectContains,
			"body_contains":    rule.Conditions.BodyContains,
			"sender_domains":   rule.Conditions.SenderDomains,
		} {
			if list != nil && len(list) == 0 {
				return errorutil.NewConfigurationError("condition has an empty keyword list", map[string]any{"rule": rule.Name, "condition": field})
			}
		}
		categoryName := rule.Category
		if categoryName == "" {
			categoryName = rule.Name
		}
		category, err := domain.ParseCategory(categoryName)
		if err != nil {
			return errorutil.NewConfigurationError("category rule has an unknown category", map[string]any{"rule": rule.Name, "category": categoryName})
		}
		priorityName := rule.Priority
		if priorityName == "" {
			priorityName = string(domain.PriorityNormal)
		}
		priority, err := domain.ParsePriority(priorityName)
		if err != nil {
			return errorutil.NewConfigurationError("category rule has an unknown priority", map[string]any{"rule": rule.Name, "priority": rule.Priority})
		}
		rule.category = category
		rule.priority = priority
		rule.Conditions.SubjectContains = lower(rule.Conditions.SubjectContains)
		rule.Conditions.BodyContains = lower(rule.Conditions.BodyContains)
		rule.Conditions.SenderDomains = lower(rule.Conditions.SenderDomains)
	}
	rs.AviationKeywords.Critical = lower(rs.AviationKeywords.Critical)
	rs.AviationKeywords.Urgent = lower(rs.AviationKeywords.Urgent)
	rs.SecondaryKeywords = lower(rs.SecondaryKeywords)
	rs.PriorityIndicators.Critical = lower(rs.PriorityIndicators.Critical)
	rs.PriorityIndicators.High = lower(rs.PriorityIndicators.High)
	return nil
}

func lower(list KeywordList) KeywordList {
	if list == nil {
		return nil
	}
	out := make(KeywordList, 0, len(list))
	for _, kw := range list {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// DefaultRules is the built-in rule set used when no file is configured.
func DefaultRules() *RuleSet {
	rs := &RuleSet{
		Version: 1,
		AviationKeywords: AviationKeywords{
			Critical: KeywordList{"aog", "aircraft on ground", "grounded", "emergency", "critical", "urgent", "immediate", "stranded", "stuck"},
			Urgent:   KeywordList{"notam", "delay", "diverted", "mel", "weather", "maintenance", "repair", "inspection", "service"},
		},
		SecondaryKeywords: KeywordList{
			"maintenance", "repair", "service", "inspection", "check", "fix", "broken", "malfunction",
			"issue", "problem", "engine", "hydraulic", "electrical", "avionics", "component",
		},
		PriorityIndicators: PriorityIndicators{
			Critical: KeywordList{"critical", "emergency", "urgent", "aog", "grounded", "immediate"},
			High:     KeywordList{"high", "priority", "important", "asap", "soon"},
		},
		Categories: []CategoryRule{
			{
				Name:     "AOG",
				Category: string(domain.CategoryEmergency),
				Priority: "critical",
				Conditions: Conditions{
					SubjectContains: KeywordList{"aog", "aircraft on ground", "grounded", "emergency"},
					BodyContains:    KeywordList{"aircraft", "grounded", "emergency", "critical"},
				},
			},
			{
				Name:     "Service",
				Priority: "high",
				Conditions: Conditions{
					SubjectContains: KeywordList{"service", "maintenance", "repair", "inspection"},
					BodyContains:    KeywordList{"service", "maintenance", "repair", "fix"},
				},
			},
			{
				Name:     "Maintenance",
				Priority: "high",
				Conditions: Conditions{
					SubjectContains: KeywordList{"maintenance", "mx", "engine", "component"},
					BodyContains:    KeywordList{"maintenance", "engine", "hydraulic", "electrical"},
				},
			},
			{
				Name:     "General",
				Category: string(domain.CategoryGeneric),
				Priority: "normal",
				Conditions: Conditions{
					SubjectContains: KeywordList{"inquiry", "question", "information"},
					BodyContains:    KeywordList{"question", "information", "help"},
				},
			},
			{
				Name:     "Invoice",
				Priority: "normal",
				Conditions: Conditions{
					SubjectContains: KeywordList{"invoice", "billing", "payment"},
					BodyContains:    KeywordList{"invoice", "bill", "payment", "charge"},
				},
			},
		},
	}
	if err := rs.Validate(); err != nil {
		panic(err)
	}
	return rs
}
