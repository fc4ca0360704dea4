package store

import (
	"time"

	"github.com/trackmock/trackmock/pkg/adf"
)

// seedLocked populates the built-in sample data set: three users with
// tokens, a software project with a board and sprints, a service-desk
// project, the default workflow, and a handful of issues. Runs before the
// store is shared, so no events are emitted.
func (s *Store) seedLocked() {
	now := time.Now().UTC()

	s.users["alice"] = &User{AccountID: "alice", DisplayName: "Alice Nakamura", Email: "alice@example.com", TimeZone: "Europe/Berlin", Active: true}
	s.users["bob"] = &User{AccountID: "bob", DisplayName: "Bob Ferreira", Email: "bob@example.com", TimeZone: "America/Sao_Paulo", Active: true}
	s.users["carol"] = &User{AccountID: "carol", DisplayName: "Carol Osei", Email: "carol@example.com", TimeZone: "UTC", Active: true}

	s.tokens["token-alice"] = &AuthToken{Token: "token-alice", AccountID: "alice"}
	s.tokens["token-bob"] = &AuthToken{Token: "token-bob", AccountID: "bob"}
	// token-flaky opts in to the deterministic forced-429 header, for
	// exercising client retry logic.
	s.tokens["token-flaky"] = &AuthToken{Token: "token-flaky", AccountID: "carol", ForceRateLimit: true}

	s.projects["DEV"] = &Project{ID: "10000", Key: "DEV", Name: "Device Platform", Type: "software", Lead: "alice"}
	s.projects["SUP"] = &Project{ID: "10001", Key: "SUP", Name: "Support Desk", Type: ServiceDeskType, Lead: "bob"}

	s.issueTypes["10001"] = &IssueType{ID: "10001", Name: "Task"}
	s.issueTypes["10002"] = &IssueType{ID: "10002", Name: "Bug"}
	s.issueTypes["10003"] = &IssueType{ID: "10003", Name: "Story"}

	catNew := StatusCategory{ID: "2", Key: "new", Name: "To Do"}
	catDoing := StatusCategory{ID: "4", Key: "indeterminate", Name: "In Progress"}
	catDone := StatusCategory{ID: "3", Key: "done", Name: "Done"}
	s.statuses["1"] = &Status{ID: "1", Name: "To Do", Category: catNew}
	s.statuses["2"] = &Status{ID: "2", Name: "In Progress", Category: catDoing}
	s.statuses["3"] = &Status{ID: "3", Name: "Done", Category: catDone}
	s.statusOrder = []string{"1", "2", "3"}

	s.transitions = []*Transition{
		{ID: "11", Name: "Start Progress", From: "1", To: "2"},
		{ID: "21", Name: "Stop Progress", From: "2", To: "1"},
		{ID: "31", Name: "Done", From: "2", To: "3"},
		{ID: "41", Name: "Reopen", From: "3", To: "1"},
	}

	s.boards[1] = &Board{ID: 1, Name: "DEV board", Type: "scrum", Project: "DEV"}
	s.sprints[1] = &Sprint{ID: 1, BoardID: 1, Name: "Sprint 1", State: SprintActive, Goal: "Stabilize the release", Start: now.Add(-7 * 24 * time.Hour)}
	s.sprints[2] = &Sprint{ID: 2, BoardID: 1, Name: "Sprint 2", State: SprintFuture}

	seedIssue := func(issue *Issue) {
		s.issues[issue.Key] = issue
		s.issueOrder = append(s.issueOrder, issue.Key)
	}

	s.counters["DEV"] = 2
	s.counters["SUP"] = 1

	seedIssue(&Issue{
		ID: s.nextIDLocked(), Key: "DEV-1", Project: "DEV", TypeID: "10001",
		Summary:     "Set up CI pipeline",
		Description: adf.FromText("Wire the build into the shared runners."),
		StatusID:    "2", Reporter: "alice", Assignee: "bob",
		Labels:   []string{"infra"},
		SprintID: "1",
		Created:  now.Add(-72 * time.Hour), Updated: now.Add(-2 * time.Hour),
	})
	seedIssue(&Issue{
		ID: s.nextIDLocked(), Key: "DEV-2", Project: "DEV", TypeID: "10002",
		Summary:     "Login button unresponsive on Safari",
		Description: adf.FromText("Reported by QA during the 2.4 regression pass."),
		StatusID:    "1", Reporter: "bob",
		Labels:  []string{"frontend", "regression"},
		Created: now.Add(-24 * time.Hour), Updated: now.Add(-24 * time.Hour),
	})
	seedIssue(&Issue{
		ID: s.nextIDLocked(), Key: "SUP-1", Project: "SUP", TypeID: "10001",
		Summary:     "Cannot access VPN from home office",
		Description: adf.FromText("Connection drops after the certificate prompt."),
		StatusID:    "1", Reporter: "carol",
		Created: now.Add(-48 * time.Hour), Updated: now.Add(-48 * time.Hour),
	})

	s.requests["SUP-1"] = &ServiceRequest{
		ID:          s.issues["SUP-1"].ID,
		IssueKey:    "SUP-1",
		RequestType: defaultRequestType,
		Approvals: []*Approval{
			{ID: s.nextIDLocked(), Name: "Approve request", Decision: "pending"},
		},
		Created: now.Add(-48 * time.Hour),
	}
}
