package session

// Agent is a registry entry: a known agent id and its display name.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultAgents is the built-in registry, used when the config does not
// list agents.
var DefaultAgents = []Agent{
	{ID: "nova", Name: "Nova"},
	{ID: "zero", Name: "Zero-1"},
	{ID: "zero-2", Name: "Zero-2"},
	{ID: "zero-3", Name: "Zero-3"},
	{ID: "delta", Name: "Delta"},
	{ID: "bestie", Name: "Bestie"},
	{ID: "dexter", Name: "Dexter"},
	{ID: "flash", Name: "Flash"},
}
