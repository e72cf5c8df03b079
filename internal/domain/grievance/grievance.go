package grievance

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusRejected   Status = "Rejected"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// DefaultAdminReply is stored when an operator resolves without writing a reply.
const DefaultAdminReply = "Issue resolved by municipal team."

// Grievance is a citizen-reported issue with its enrichment and lifecycle status.
type Grievance struct {
	ID            string    `json:"id"`
	CitizenName   string    `json:"citizenName"`
	Area          string    `json:"area"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"imageUrl"`
	AudioURL      string    `json:"audioUrl"`
	Category      string    `json:"category"`
	Priority      Priority  `json:"priority"`
	Sentiment     string    `json:"sentiment"`
	EstimatedTime string    `json:"estimatedTime"`
	Status        Status    `json:"status"`
	AdminReply    string    `json:"adminReply"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Enrichment is the classifier output copied onto a grievance at creation.
type Enrichment struct {
	Category      string
	Priority      Priority
	Sentiment     string
	EstimatedTime string
}

// Draft is everything the store needs to create a record; id and timestamps are assigned on insert.
type Draft struct {
	CitizenName string
	Area        string
	Description string
	ImageURL    string
	AudioURL    string
	Enrichment  Enrichment
}

// StatusPatch updates status and, when non-nil, adminReply. Nothing else is writable after creation.
// A non-empty From makes the update conditional on the stored status still being From.
type StatusPatch struct {
	From       Status
	Status     Status
	AdminReply *string
}

type EventAction string

const (
	EventCreated  EventAction = "created"
	EventResolved EventAction = "resolved"
	EventRejected EventAction = "rejected"
)

// Event is one audit trail entry for a grievance.
type Event struct {
	ID          uint64      `json:"id"`
	GrievanceID string      `json:"grievanceId"`
	Action      EventAction `json:"action"`
	Actor       string      `json:"actor"`
	FromStatus  Status      `json:"fromStatus,omitempty"`
	ToStatus    Status      `json:"toStatus"`
	Note        string      `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	default:
		return "", false
	}
}

// ParseStatus accepts the stored spelling and the compact "InProgress" form.
func ParseStatus(raw string) (Status, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	switch normalized {
	case "pending":
		return StatusPending, true
	case "inprogress":
		return StatusInProgress, true
	case "resolved":
		return StatusResolved, true
	case "rejected":
		return StatusRejected, true
	default:
		return "", false
	}
}

func (e Enrichment) Validate() error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(e.Category) == "" {
		missing = append(missing, "category")
	}
	if _, ok := ParsePriority(string(e.Priority)); !ok {
		missing = append(missing, "priority")
	}
	if strings.TrimSpace(e.Sentiment) == "" {
		missing = append(missing, "sentiment")
	}
	if strings.TrimSpace(e.EstimatedTime) == "" {
		missing = append(missing, "estimated_time")
	}
	if len(missing) > 0 {
		return &FieldError{Fields: missing}
	}
	return nil
}
