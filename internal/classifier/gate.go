package classifier

import "github.com/spec-kit/aviation-mailbot/internal/domain"

// Gate decides whether a classification warrants a ticket.
type Gate struct {
	PrimaryCategories   []domain.Category
	SecondaryCategories []domain.Category
	SecondaryThreshold  float64
	GenericThreshold    float64
}

// DefaultGate accepts service and maintenance mail outright, invoices above
// 0.7 and generic mail above 0.8.
func DefaultGate() Gate {
	return Gate{
		PrimaryCategories:   []domain.Category{domain.CategoryService, domain.CategoryMaintenance},
		SecondaryCategories: []domain.Category{domain.CategoryInvoice},
		SecondaryThreshold:  0.7,
		GenericThreshold:    0.8,
	}
}

// IsServiceRequest returns the decision and a reason suitable for the
// message record.
func (g Gate) IsServiceRequest(c domain.Classification) (bool, string) {
	if c.Category == domain.CategoryEmergency {
		return true, "emergency"
	}
	if contains(g.PrimaryCategories, c.Category) {
		return true, "primary_category"
	}
	if contains(g.SecondaryCategories, c.Category) {
		if c.Confidence > g.SecondaryThreshold {
			return true, "secondary_category"
		}
		return false, "secondary_below_threshold"
	}
	if c.Category == domain.CategoryGeneric {
		if c.Confidence > g.GenericThreshold {
			return true, "generic_high_confidence"
		}
		return false, "generic_below_threshold"
	}
	return false, "not_service_request"
}

func contains(list []domain.Category, c domain.Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
