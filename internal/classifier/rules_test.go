package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

func TestParseRulesAcceptsScalarKeywords(t *testing.T) {
	rs, err := ParseRules([]byte(`
aviation_keywords:
  critical: AOG
categories:
  - name: Service
    priority: HIGH
    conditions:
      subject_contains: Repair
      body_contains: [Fix, " Broken "]
`))
	require.NoError(t, err)

	assert.Equal(t, KeywordList{"aog"}, rs.AviationKeywords.Critical)
	rule := rs.Categories[0]
	assert.Equal(t, KeywordList{"repair"}, rule.Conditions.SubjectContains)
	assert.Equal(t, KeywordList{"fix", "broken"}, rule.Conditions.BodyContains)
	assert.Equal(t, domain.CategoryService, rule.category)
	assert.Equal(t, domain.PriorityHigh, rule.priority)
}

func TestParseRulesValidation(t *testing.T) {
	tests := map[string]string{
		"no categories":    "version: 1\n",
		"unknown category": "categories:\n  - name: Catering\n    conditions:\n      subject_contains: food\n",
		"unknown priority": "categories:\n  - name: Service\n    priority: extreme\n    conditions:\n      subject_contains: x\n",
		"no conditions":    "categories:\n  - name: Service\n    priority: high\n",
		"empty list":       "categories:\n  - name: Service\n    conditions:\n      subject_contains: []\n",
		"nested keyword":   "categories:\n  - name: Service\n    conditions:\n      subject_contains: [[a]]\n",
		"not yaml":         "categories: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, errorutil.KindConfiguration, errorutil.KindOf(err))
		})
	}
}

func TestFileRuleSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: Invoice\n    conditions:\n      subject_contains: invoice\n"), 0o600))

	src, err := NewFileRuleSource(path)
	require.NoError(t, err)
	rs, err := src.Rules()
	require.NoError(t, err)
	require.Len(t, rs.Categories, 1)

	require.NoError(t, os.WriteFile(path, []byte("categories: ["), 0o600))
	assert.Error(t, src.Reload())
	rs, err = src.Rules()
	require.NoError(t, err)
	assert.Len(t, rs.Categories, 1, "previous rules stay active after a failed reload")

	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: Invoice\n    conditions:\n      subject_contains: invoice\n  - name: Service\n    conditions:\n      body_contains: repair\n"), 0o600))
	require.NoError(t, src.Reload())
	rs, err = src.Rules()
	require.NoError(t, err)
	assert.Len(t, rs.Categories, 2)
}

func TestFileRuleSourceDefaults(t *testing.T) {
	src, err := NewFileRuleSource("")
	require.NoError(t, err)
	rs, err := src.Rules()
	require.NoError(t, err)
	assert.Len(t, rs.Categories, 5)

	_, err = NewFileRuleSource(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
