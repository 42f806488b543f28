package contacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
	"github.com/spec-kit/aviation-mailbot/pkg/util/errorutil"
)

const (
	refInternalEmails  = "internal_emails"
	refInternalNumbers = "internal_numbers"
	defaultListKey     = "default"
)

// categoryAliases lets files keep the legacy "aog" and "general" keys.
var categoryAliases = map[domain.Category][]string{
	domain.CategoryEmergency: {"emergency", "aog"},
	domain.CategoryGeneric:   {"generic", "general"},
}

// Spec is a contact as written in the directory file.
type Spec struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (s Spec) validate(label string) error {
	if strings.TrimSpace(s.Name) == "" {
		return errorutil.NewConfigurationError("contact is missing a name", map[string]any{"contact": label})
	}
	if s.Email == "" && s.Phone == "" {
		return errorutil.NewConfigurationError("contact needs an email or a phone", map[string]any{"contact": label})
	}
	return nil
}

func (s Spec) toDomain() domain.Contact {
	return domain.Contact{Name: s.Name, Email: s.Email, Phone: s.Phone, Role: s.Role}
}

// Ref is either the name of a named contact or an inline contact.
type Ref struct {
	Name   string
	Inline *Spec
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Name)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("contact reference must be a name or an object: %w", err)
	}
	r.Inline = &spec
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return json.Marshal(r.Inline)
	}
	return json.Marshal(r.Name)
}

// CategoryRouting maps priority keys (and "default") to ordered refs.
type CategoryRouting struct {
	Description string           `json:"description,omitempty"`
	Contacts    map[string][]Ref `json:"contacts"`
}

// Book is the decoded directory file.
type Book struct {
	Version       int                        `json:"version"`
	NamedContacts map[string]Spec            `json:"named_contacts"`
	Categories    map[string]CategoryRouting `json:"categories"`
	Emergency     []Ref                      `json:"emergency"`
	Global        struct {
		Default []Ref `json:"default"`
	} `json:"global"`
}

// Validate checks the required sections and every named or inline contact.
func (b *Book) Validate() error {
	if b.NamedContacts == nil {
		return errorutil.NewConfigurationError("contacts file is missing named_contacts", nil)
	}
	if b.Categories == nil {
		return errorutil.NewConfigurationError("contacts file is missing categories", nil)
	}
	names := make([]string, 0, len(b.NamedContacts))
	for name := range b.NamedContacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := b.NamedContacts[name].validate(name); err != nil {
			return err
		}
	}
	for key, routing := range b.Categories {
		for list, refs := range routing.Contacts {
			for _, ref := range refs {
				if ref.Inline != nil {
					if err := ref.Inline.validate(key + "." + list); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Parse decodes a JSON (comments and trailing commas allowed) directory.
func Parse(data []byte) (*Book, error) {
	var book Book
	if err := json.Unmarshal(jsonc.ToJSON(data), &book); err != nil {
		return nil, errorutil.NewConfigurationError("contacts file is not valid JSON", map[string]any{"error": err.Error()})
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	return &book, nil
}

// Directory resolves escalation contacts for a category and priority.
type Directory struct {
	path            string
	internalEmails  []string
	internalNumbers []string
	logger          *zap.Logger
	current         atomic.Pointer[Book]
}

// Options configure a Directory.
type Options struct {
	Path            string
	InternalEmails  []string
	InternalNumbers []string
	Logger          *zap.Logger
}

// NewDirectory loads the file at opts.Path, or the built-in book when the
// path is empty.
func NewDirectory(opts Options) (*Directory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Directory{
		path:            opts.Path,
		internalEmails:  opts.InternalEmails,
		internalNumbers: opts.InternalNumbers,
		logger:          logger,
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewStaticDirectory serves a fixed book.
func NewStaticDirectory(book *Book, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Directory{logger: logger}
	d.current.Store(book)
	return d
}

// Reload re-reads the directory file. On error the previous book stays active.
func (d *Directory) Reload() error {
	if d.path == "" {
		d.current.Store(DefaultBook())
		return nil
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return errorutil.NewConfigurationError("contacts file unreadable", map[string]any{"path": d.path, "error": err.Error()})
	}
	book, err := Parse(data)
	if err != nil {
		return err
	}
	d.current.Store(book)
	d.logger.Info("contacts loaded", zap.String("path", d.path), zap.Int("named_contacts", len(book.NamedContacts)))
	return nil
}

// Resolve returns the ordered contacts for a category and priority. The
// priority list is used first, then the category default, then the global
// default. CRITICAL tickets also get the emergency contacts appended.
func (d *Directory) Resolve(category domain.Category, priority domain.Priority) ([]domain.Contact, error) {
	book := d.current.Load()
	if book == nil {
		return nil, errorutil.NewConfigurationError("contact directory is not loaded", nil)
	}

	routing := d.routingFor(book, category)
	priorityKey := strings.ToLower(string(priority))
	refs := routing.Contacts[priorityKey]
	if len(refs) == 0 {
		refs = routing.Contacts[defaultListKey]
	}
	if len(refs) == 0 {
		refs = book.Global.Default
	}

	resolved := make([]domain.Contact, 0, len(refs))
	for _, ref := range refs {
		if contact, ok := d.resolveRef(book, ref); ok {
			resolved = appendUnique(resolved, contact)
		}
	}
	if priority == domain.PriorityCritical {
		for _, ref := range book.Emergency {
			if contact, ok := d.resolveRef(book, ref); ok {
				resolved = appendUnique(resolved, contact)
			}
		}
	}

	if len(resolved) == 0 {
		return nil, errorutil.NewConfigurationError("no escalation contacts configured", map[string]any{
			"category": category,
			"priority": priority,
		})
	}
	return resolved, nil
}

func (d *Directory) routingFor(book *Book, category domain.Category) CategoryRouting {
	keys, ok := categoryAliases[category]
	if !ok {
		keys = []string{category.Key()}
	}
	for _, key := range keys {
		if routing, found := book.Categories[key]; found {
			return routing
		}
	}
	return CategoryRouting{}
}

func (d *Directory) resolveRef(book *Book, ref Ref) (domain.Contact, bool) {
	if ref.Inline != nil {
		return ref.Inline.toDomain(), true
	}
	if spec, ok := book.NamedContacts[ref.Name]; ok {
		return spec.toDomain(), true
	}
	switch ref.Name {
	case refInternalEmails:
		if len(d.internalEmails) > 0 {
			return domain.Contact{Name: "Internal Team", Email: d.internalEmails[0], Role: "operations"}, true
		}
	case refInternalNumbers:
		if len(d.internalNumbers) > 0 {
			return domain.Contact{Name: "Internal Team", Phone: d.internalNumbers[0], Role: "operations"}, true
		}
	}
	d.logger.Warn("contact reference not found", zap.String("reference", ref.Name))
	return domain.Contact{}, false
}

func appendUnique(list []domain.Contact, c domain.Contact) []domain.Contact {
	for _, existing := range list {
		if existing == c {
			return list
		}
	}
	return append(list, c)
}
