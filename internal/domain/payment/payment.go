package payment

import "strings"

type BookingType string

const (
	BookingCourse BookingType = "Course"
	BookingCohort BookingType = "Cohort"
)

// ParseBookingType accepts the URL form ("course", "cohort") as well as the wire form.
func ParseBookingType(s string) (BookingType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "course":
		return BookingCourse, true
	case "cohort":
		return BookingCohort, true
	}
	return "", false
}

// Path is the backend path segment for the booking target.
func (b BookingType) Path() string {
	return strings.ToLower(string(b))
}

// Intent is created by the backend for a single purchase attempt and never persisted.
type Intent struct {
	OrderID     string      `json:"orderId"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	BookingType BookingType `json:"bookingType"`
	TargetID    string      `json:"targetId"`
}

// Result is what the hosted checkout UI hands back on success.
type Result struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (r Result) Complete() bool {
	return r.OrderID != "" && r.PaymentID != "" && r.Signature != ""
}

// Offering is the purchasable course or cohort as the backend reports it.
type Offering struct {
	ID     string `json:"_id"`
	Title  string `json:"title"`
	Price  int64  `json:"price"`
	Status string `json:"status"`
}

func (o *Offering) Approved() bool {
	return o != nil && strings.EqualFold(o.Status, "approved")
}
