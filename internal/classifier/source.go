package classifier

import (
	"sync/atomic"

	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

// RuleSource yields the active rule set.
type RuleSource interface {
	Rules() (*RuleSet, error)
}

// StaticRules serves a fixed rule set.
type StaticRules struct {
	set *RuleSet
}

func NewStaticRules(set *RuleSet) StaticRules {
	return StaticRules{set: set}
}

func (s StaticRules) Rules() (*RuleSet, error) {
	if s.set == nil {
		return nil, errorutil.NewConfigurationError("rule set is not configured", nil)
	}
	return s.set, nil
}

// FileRuleSource loads rules from a YAML file and swaps them on Reload.
// An empty path serves DefaultRules.
type FileRuleSource struct {
	path    string
	current atomic.Pointer[RuleSet]
}

// NewFileRuleSource performs the initial load.
func NewFileRuleSource(path string) (*FileRuleSource, error) {
	src := &FileRuleSource{path: path}
	if err := src.Reload(); err != nil {
		return nil, err
	}
	return src, nil
}

// Reload re-reads the file. The previous rules stay active on error.
func (s *FileRuleSource) Reload() error {
	if s.path == "" {
		s.current.Store(DefaultRules())
		return nil
	}
	rs, err := LoadRules(s.path)
	if err != nil {
		return err
	}
	s.current.Store(rs)
	return nil
}

func (s *FileRuleSource) Rules() (*RuleSet, error) {
	rs := s.current.Load()
	if rs == nil {
		return nil, errorutil.NewConfigurationError("rule set is not loaded", map[string]any{"path": s.path})
	}
	return rs, nil
}
