package contacts

func named(names ...string) []Ref {
	refs := make([]Ref, 0, len(names))
	for _, n := range names {
		refs = append(refs, Ref{Name: n})
	}
	return refs
}

// DefaultBook is used when no contacts file is configured.
func DefaultBook() *Book {
	book := &Book{
		Version: 1,
		NamedContacts: map[string]Spec{
			"ops_manager": {
				Name:  "Operations Manager",
				Email: "ops-manager@embassy-aviation.com",
				Phone: "+1234567890",
				Role:  "operations_manager",
			},
			"maintenance_lead": {
				Name:  "Maintenance Lead",
				Email: "maintenance-lead@embassy-aviation.com",
				Phone: "+1234567891",
				Role:  "maintenance_lead",
			},
			"customer_service": {
				Name:  "Customer Service",
				Email: "service@embassy-aviation.com",
				Phone: "+1234567892",
				Role:  "customer_service",
			},
			"director": {
				Name:  "Director of Operations",
				Email: "director@embassy-aviation.com",
				Phone: "+1234567893",
				Role:  "director",
			},
		},
		Categories: map[string]CategoryRouting{
			"emergency": {
				Description: "Aircraft on ground",
				Contacts: map[string][]Ref{
					"critical": named("ops_manager", "maintenance_lead", "director"),
					"default":  named("ops_manager", "maintenance_lead"),
				},
			},
			"service": {
				Description: "Service requests",
				Contacts: map[string][]Ref{
					"high":    named("maintenance_lead", "ops_manager"),
					"normal":  named("maintenance_lead"),
					"default": named("maintenance_lead"),
				},
			},
			"maintenance": {
				Description: "Maintenance requests",
				Contacts: map[string][]Ref{
					"high":    named("maintenance_lead", "ops_manager"),
					"normal":  named("maintenance_lead"),
					"default": named("maintenance_lead"),
				},
			},
			"generic": {
				Description: "General inquiries",
				Contacts: map[string][]Ref{
					"default": named("customer_service"),
				},
			},
			"invoice": {
				Description: "Billing and invoices",
				Contacts: map[string][]Ref{
					"default": named("customer_service"),
				},
			},
		},
		Emergency: named("ops_manager", "director"),
	}
	book.Global.Default = named("customer_service")
	return book
}
