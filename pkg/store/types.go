package store

import "time"

// User is a directory principal referenced by reporter/assignee/author fields.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
	TimeZone    string `json:"timeZone"`
	Active      bool   `json:"active"`
}

// Project groups issues under a unique key.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	// Type is "software" or "service_desk".
	Type string `json:"projectTypeKey"`
	Lead string `json:"lead"`
}

// ServiceDeskType marks a project whose issues get a linked service request.
const ServiceDeskType = "service_desk"

// IssueType classifies an issue (Task, Bug, ...). Immutable after seed.
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// StatusCategory is the coarse grouping of a status.
type StatusCategory struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Status is a workflow state. Immutable after seed.
type Status struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category StatusCategory `json:"statusCategory"`
}

// Transition moves an issue from one status to another. Only transitions
// whose From matches the issue's current status are offered.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Comment is an immutable note on an issue.
type Comment struct {
	ID      string         `json:"id"`
	Author  string         `json:"author"`
	Body    map[string]any `json:"body"`
	Created time.Time      `json:"created"`
}

// Issue is the central work item. Key is assigned once from the per-project
// counter and never changes.
type Issue struct {
	ID          string         `json:"id"`
	Key         string         `json:"key"`
	Project     string         `json:"project"`
	TypeID      string         `json:"issueTypeId"`
	Summary     string         `json:"summary"`
	Description map[string]any `json:"description"`
	StatusID    string         `json:"statusId"`
	Reporter    string         `json:"reporter"`
	Assignee    string         `json:"assignee,omitempty"`
	Labels      []string       `json:"labels"`
	SprintID    string         `json:"sprintId,omitempty"`
	Custom      map[string]any `json:"customFields,omitempty"`
	Comments    []*Comment     `json:"comments"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
}

// Board owns sprints and a backlog for one project.
type Board struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Project string `json:"projectKey"`
}

// Sprint state machine: future -> active -> closed, no backward moves.
const (
	SprintFuture = "future"
	SprintActive = "active"
	SprintClosed = "closed"
)

// Sprint is a time-boxed iteration on a board.
type Sprint struct {
	ID      int       `json:"id"`
	BoardID int       `json:"originBoardId"`
	Name    string    `json:"name"`
	State   string    `json:"state"`
	Goal    string    `json:"goal,omitempty"`
	Start   time.Time `json:"startDate,omitzero"`
	End     time.Time `json:"endDate,omitzero"`
}

// Approval is one append-only decision slot on a service request.
type Approval struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Decision string    `json:"decision"` // pending, approved, declined
	Decider  string    `json:"decider,omitempty"`
	Decided  time.Time `json:"decidedAt,omitzero"`
}

// ServiceRequest wraps exactly one issue created under a service-desk project.
type ServiceRequest struct {
	ID          string      `json:"issueId"`
	IssueKey    string      `json:"issueKey"`
	RequestType string      `json:"requestTypeId"`
	Approvals   []*Approval `json:"approvals"`
	Created     time.Time   `json:"createdDate"`
}

// Webhook is a registered delivery target.
type Webhook struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	// JQLFilter restricts matching events via the equality/set subset of the
	// query grammar, applied against the event payload's flattened fields.
	JQLFilter string `json:"jqlFilter,omitempty"`
	// ExprFilter is an optional expr-lang boolean expression over the
	// flattened payload, for conditions the JQL subset cannot express.
	ExprFilter string `json:"exprFilter,omitempty"`
	// Secret signs outbound deliveries. Serialized so snapshots round-trip;
	// the webhook listing endpoint redacts it.
	Secret  string    `json:"secret,omitempty"`
	Created time.Time `json:"created"`
}

// AuthToken maps an opaque bearer token to a principal. Tokens are seeded or
// imported, never rotated at runtime.
type AuthToken struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId"`
	// ForceRateLimit marks the token as eligible for the deterministic
	// forced-429 test header.
	ForceRateLimit bool `json:"forceRateLimit,omitempty"`
}

// Event is emitted by every mutating store operation that changes visible
// entity state. It is handed to the sink before the operation returns.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"webhookEvent"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Event types emitted by the store.
const (
	EventIssueCreated   = "jira:issue_created"
	EventIssueUpdated   = "jira:issue_updated"
	EventIssueDeleted   = "jira:issue_deleted"
	EventCommentCreated = "comment_created"
	EventSprintUpdated  = "sprint_updated"
)

// EventSink receives store events. The dispatcher implements this; emission
// must be fast and never return an error to the caller.
type EventSink interface {
	Emit(Event)
}
