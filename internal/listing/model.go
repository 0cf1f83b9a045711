package listing

import "time"

// Status is the lifecycle state of a listing. The set is closed; every
// mutation goes through Store.Transition which consults the transition table.
type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusAccepted  Status = "accepted"
	StatusTransit   Status = "transit"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
)

// TriState is a donor questionnaire answer: "yes", "no" or "unsure".
type TriState string

const (
	AnswerYes    TriState = "yes"
	AnswerNo     TriState = "no"
	AnswerUnsure TriState = "unsure"
)

type Quantity struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// SafetyAnswers holds the donor-supplied questionnaire, stored verbatim.
type SafetyAnswers struct {
	TempOk    TriState `json:"temp_ok"`
	SmellOk   TriState `json:"smell_ok"`
	PackingOk TriState `json:"packing_ok"`
}

// AIAssessment is the vision oracle verdict. Set once at creation and
// immutable afterwards. RiskScore follows the oracle convention: higher
// means safer.
type AIAssessment struct {
	Safe           bool    `json:"safe"`
	RiskScore      float64 `json:"risk_score"`
	ShelfLifeHours float64 `json:"shelf_life_hours"`
	Message        string  `json:"message"`
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type Waypoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is a single food-donation offer.
type Listing struct {
	ID             string        `json:"id"`
	DonorID        string        `json:"donor_id"`
	NgoID          string        `json:"ngo_id,omitempty"`
	RiderID        string        `json:"rider_id,omitempty"`
	Category       string        `json:"category"`
	Quantity       Quantity      `json:"quantity"`
	PreparedAt     time.Time     `json:"prepared_at"`
	SafetyAnswers  SafetyAnswers `json:"safety_answers"`
	AIAssessment   AIAssessment  `json:"ai_assessment"`
	Status         Status        `json:"status"`
	OTP            string        `json:"otp,omitempty"`
	PriorityScore  float64       `json:"priority_score"`
	PriorityBand   Band          `json:"priority_band"`
	Location       Location      `json:"location"`
	DropLocation   Location      `json:"drop_location,omitempty"`
	RouteWaypoints []Waypoint    `json:"route_waypoints,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int64         `json:"version"`
}

// MaxListingAge is the oldest food may be at creation time. Older
// donations are refused outright.
const MaxListingAge = 4 * time.Hour

// ShelfLife returns the assessed shelf life as a duration.
func (l *Listing) ShelfLife() time.Duration {
	return time.Duration(l.AIAssessment.ShelfLifeHours * float64(time.Hour))
}

// ExpiresAt is the instant the assessed shelf life runs out.
func (l *Listing) ExpiresAt() time.Time {
	return l.PreparedAt.Add(l.ShelfLife())
}
