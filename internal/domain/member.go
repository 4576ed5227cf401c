package domain

// Member is a read-only snapshot of a Cobot membership. It is fetched per
// event and never persisted locally.
type Member struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Address       *Address `json:"address"`
	Plan          *Plan    `json:"plan"`
	ConfirmedAt   string   `json:"confirmed_at"`
	CanceledTo    string   `json:"canceled_to"`
	UpcomingPlan  *Plan    `json:"upcoming_plan"`
	NextInvoiceAt string   `json:"next_invoice_at"`
}

type Address struct {
	Company     string `json:"company"`
	FullAddress string `json:"full_address"`
}

type Plan struct {
	Name string `json:"name"`
}

// Invoice is a read-only snapshot of a Cobot invoice. Amounts arrive as
// decimal strings.
type Invoice struct {
	ID           string `json:"id"`
	MembershipID string `json:"membership_id"`
	CreatedAt    string `json:"created_at"`
	TotalAmount  string `json:"total_amount"`
	Currency     string `json:"currency"`
	PaidAt       string `json:"paid_at"`
}

// Booking is a read-only snapshot of a Cobot booking. Depending on the
// endpoint the owning membership appears either flattened (membership_id) or
// as an embedded object.
type Booking struct {
	ID           string           `json:"id"`
	MembershipID string           `json:"membership_id"`
	Membership   *MembershipStub  `json:"membership"`
	Resource     *BookingResource `json:"resource"`
	From         string           `json:"from"`
	To           string           `json:"to"`
}

type MembershipStub struct {
	ID string `json:"id"`
}

type BookingResource struct {
	Name string `json:"name"`
}

// OwnerID returns the booking's membership id regardless of which of the two
// payload shapes carried it.
func (b Booking) OwnerID() string {
	if b.MembershipID != "" {
		return b.MembershipID
	}
	if b.Membership != nil {
		return b.Membership.ID
	}
	return ""
}

// CustomField is a user-defined labeled value on a membership.
type CustomField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// CustomFieldValue is the write shape for pushing a field back to Cobot.
type CustomFieldValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}
