// Package sales contains the invoice lifecycle, customer payments and the
// allocation of payments against open credit invoices.
package sales

// InvoiceType represents how an invoice is settled
type InvoiceType string

const (
	InvoiceTypeCash   InvoiceType = "cash"
	InvoiceTypeCredit InvoiceType = "credit"
	InvoiceTypeReturn InvoiceType = "return"
)

// IsValid checks if the type is a valid InvoiceType
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeCash, InvoiceTypeCredit, InvoiceTypeReturn:
		return true
	}
	return false
}

// String returns the string representation of InvoiceType
func (t InvoiceType) String() string {
	return string(t)
}

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusConfirmed InvoiceStatus = "CONFIRMED"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusConfirmed, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for PAID and CANCELLED
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// IsOpen returns true while the invoice can still receive payments
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusConfirmed || s == InvoiceStatusPartial
}

// IsPosted returns true once the invoice has affected stock and balances
func (s InvoiceStatus) IsPosted() bool {
	return s == InvoiceStatusConfirmed || s == InvoiceStatusPartial || s == InvoiceStatusPaid
}

// CanTransitionTo checks if the status can transition to the target status
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft:
		return target == InvoiceStatusConfirmed ||
			target == InvoiceStatusPartial ||
			target == InvoiceStatusPaid ||
			target == InvoiceStatusCancelled
	case InvoiceStatusConfirmed:
		return target == InvoiceStatusPartial || target == InvoiceStatusPaid || target == InvoiceStatusCancelled
	case InvoiceStatusPartial:
		return target == InvoiceStatusPartial || target == InvoiceStatusPaid || target == InvoiceStatusCancelled
	case InvoiceStatusPaid, InvoiceStatusCancelled:
		return false // Terminal states
	}
	return false
}

// PaymentMethod represents how a payment was tendered
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodCheck  PaymentMethod = "check"
	PaymentMethodCredit PaymentMethod = "credit"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBank, PaymentMethodCheck, PaymentMethodCredit:
		return true
	}
	return false
}
