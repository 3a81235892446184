package jira

import "github.com/Strob0t/NexusPM/internal/domain/ticket"

// demoIssues is served when no Jira credentials are configured.
func demoIssues() []ticket.Ticket {
	return []ticket.Ticket{
		{Key: "PROJ-1245", Summary: "API Integration for checkout", Status: "In Progress", Priority: "High", Assignee: "Mike Chen", Labels: []string{}},
		{Key: "PROJ-1244", Summary: "Implement basic login", Status: "To Do", Priority: "Medium", Assignee: "Sarah Miller", Labels: []string{}},
		{Key: "PROJ-1243", Summary: "Navigation component updates", Status: "In Review", Priority: "Medium", Assignee: "Jordan Lee", Labels: []string{}},
		{Key: "PROJ-1242", Summary: "Design system token migration", Status: "Done", Priority: "Low", Assignee: "Alex Chen", Labels: []string{}},
	}
}
