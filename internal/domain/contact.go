package domain

// Contact is a resolved escalation recipient.
type Contact struct {
	Name  string
	Email string
	Phone string
	Role  string
}

func (c Contact) HasEmail() bool { return c.Email != "" }

func (c Contact) HasPhone() bool { return c.Phone != "" }
