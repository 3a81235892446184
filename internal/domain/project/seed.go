package project

// Seed describes one default project created on an empty catalog.
type Seed struct {
	Request     CreateRequest
	Status      Status
	AgentCount  int
	MemberCount int
	SyncCount   int
	Health      int
}

// DefaultSeeds returns the projects created at startup when none exist.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Request:    CreateRequest{Name: "Mobile App v2", Description: "Redesigning the mobile experience with new navigation", Color: "#00F0FF"},
			Status:     StatusActive,
			AgentCount: 4, MemberCount: 12, SyncCount: 1247, Health: 98,
		},
		{
			Request:    CreateRequest{Name: "Enterprise API", Description: "RESTful API for enterprise integrations", Color: "#2B6FFF"},
			Status:     StatusActive,
			AgentCount: 3, MemberCount: 8, SyncCount: 856, Health: 94,
		},
		{
			Request:    CreateRequest{Name: "Design System", Description: "Component library and design tokens", Color: "#B829F7"},
			Status:     StatusPaused,
			AgentCount: 2, MemberCount: 6, SyncCount: 432, Health: 87,
		},
		{
			Request:    CreateRequest{Name: "Q4 Roadmap", Description: "Strategic planning for Q4 initiatives", Color: "#00FFAA"},
			Status:     StatusCompleted,
			AgentCount: 0, MemberCount: 15, SyncCount: 2341, Health: 100,
		},
	}
}

// Update returns the request that applies the seed's counters.
func (s Seed) Update() UpdateRequest {
	status := s.Status
	agents, members, syncs, health := s.AgentCount, s.MemberCount, s.SyncCount, s.Health
	return UpdateRequest{
		Status:      &status,
		AgentCount:  &agents,
		MemberCount: &members,
		SyncCount:   &syncs,
		Health:      &health,
	}
}
