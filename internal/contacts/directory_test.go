package contacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

func names(list []domain.Contact) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}

func TestResolveDefaults(t *testing.T) {
	dir, err := NewDirectory(Options{})
	require.NoError(t, err)

	tests := map[string]struct {
		category domain.Category
		priority domain.Priority
		want     []string
	}{
		"critical emergency appends director once": {
			category: domain.CategoryEmergency,
			priority: domain.PriorityCritical,
			want:     []string{"Operations Manager", "Maintenance Lead", "Director of Operations"},
		},
		"priority specific list": {
			category: domain.CategoryService,
			priority: domain.PriorityHigh,
			want:     []string{"Maintenance Lead", "Operations Manager"},
		},
		"category default": {
			category: domain.CategoryInvoice,
			priority: domain.PriorityLow,
			want:     []string{"Customer Service"},
		},
		"global default for unrouted category": {
			category: domain.CategoryUnknown,
			priority: domain.PriorityNormal,
			want:     []string{"Customer Service"},
		},
		"critical non emergency gets emergency contacts": {
			category: domain.CategoryMaintenance,
			priority: domain.PriorityCritical,
			want:     []string{"Maintenance Lead", "Operations Manager", "Director of Operations"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := dir.Resolve(tt.category, tt.priority)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestParseJSONCWithInlineAndSpecialRefs(t *testing.T) {
	doc := `{
  // comments are allowed
  "named_contacts": {
    "lead": {"name": "Lead", "email": "lead@example.com"},
  },
  "categories": {
    "aog": {
      "contacts": {
        "default": ["lead", {"name": "Night Desk", "phone": "+15550100"}, "internal_numbers", "ghost"]
      }
    }
  }
}`
	book, err := Parse([]byte(doc))
	require.NoError(t, err)

	dir := NewStaticDirectory(book, nil)
	dir.internalNumbers = []string{"+15550111", "+15550112"}
	got, err := dir.Resolve(domain.CategoryEmergency, domain.PriorityHigh)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Lead", got[0].Name)
	assert.Equal(t, "+15550100", got[1].Phone)
	assert.Equal(t, domain.Contact{Name: "Internal Team", Phone: "+15550111", Role: "operations"}, got[2])
}

func TestResolveWithoutContactsIsConfigurationError(t *testing.T) {
	book, err := Parse([]byte(`{"named_contacts": {}, "categories": {}}`))
	require.NoError(t, err)

	_, err = NewStaticDirectory(book, nil).Resolve(domain.CategoryService, domain.PriorityHigh)
	require.Error(t, err)
	assert.Equal(t, errorutil.KindConfiguration, errorutil.KindOf(err))
	assert.False(t, errorutil.IsRetryable(err))
}

func TestParseValidation(t *testing.T) {
	tests := map[string]string{
		"missing named contacts": `{"categories": {}}`,
		"missing categories":     `{"named_contacts": {}}`,
		"contact without name":   `{"named_contacts": {"x": {"email": "a@b.c"}}, "categories": {}}`,
		"contact without route":  `{"named_contacts": {"x": {"name": "X"}}, "categories": {}}`,
		"bad inline contact":     `{"named_contacts": {}, "categories": {"service": {"contacts": {"default": [{"name": "Y"}]}}}}`,
		"bad ref type":           `{"named_contacts": {}, "categories": {"service": {"contacts": {"default": [42]}}}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestDirectoryReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	write := func(doc string) {
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	}
	write(`{"named_contacts": {"a": {"name": "A", "email": "a@x.io"}}, "categories": {}, "global": {"default": ["a"]}}`)

	dir, err := NewDirectory(Options{Path: path})
	require.NoError(t, err)
	got, err := dir.Resolve(domain.CategoryService, domain.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(got))

	write(`not json`)
	assert.Error(t, dir.Reload())
	got, err = dir.Resolve(domain.CategoryService, domain.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(got))

	write(`{"named_contacts": {"b": {"name": "B", "phone": "+1555"}}, "categories": {}, "global": {"default": ["b"]}}`)
	require.NoError(t, dir.Reload())
	got, err = dir.Resolve(domain.CategoryService, domain.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(got))
}
