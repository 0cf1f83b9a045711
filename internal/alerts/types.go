package alerts

import "time"

// Task type constants
const (
	TaskWelcomeEmail      = "email:welcome"
	TaskListingClaimed    = "email:listing_claimed"
	TaskRiderAssigned     = "email:rider_assigned"
	TaskDeliveryCompleted = "email:delivery_completed"
	TaskListingExpired    = "email:listing_expired"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Welcome email payload
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Listing claimed payload (sent to the donor, carries the pickup code
// they hand to the rider)
type ListingClaimedPayload struct {
	ListingID string        `json:"listing_id"`
	DonorID   string        `json:"donor_id"`
	NgoID     string        `json:"ngo_id"`
	Email     string        `json:"email"`
	OTP       string        `json:"otp"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Rider assigned payload (sent to the claiming NGO)
type RiderAssignedPayload struct {
	ListingID string        `json:"listing_id"`
	NgoID     string        `json:"ngo_id"`
	RiderID   string        `json:"rider_id"`
	Email     string        `json:"email"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Delivery completed payload (sent to donor and NGO)
type DeliveryCompletedPayload struct {
	ListingID string        `json:"listing_id"`
	UserID    string        `json:"user_id"`
	RiderID   string        `json:"rider_id"`
	Email     string        `json:"email"`
	Meals     int           `json:"meals"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// Listing expired payload (sent to the donor when the shelf life ran out
// before a rescue completed)
type ListingExpiredPayload struct {
	ListingID string        `json:"listing_id"`
	DonorID   string        `json:"donor_id"`
	Email     string        `json:"email"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}
