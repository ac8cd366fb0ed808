package domain

// Action is what a deploy pass did for one environment.
type Action int

const (
	ActionUnchanged Action = iota // stack and cluster already match
	ActionUpdated                 // stack updated, committed and pushed
	ActionResynced                // stack matched, cluster drift repaired by sync
)

var actionNames = [...]string{
	ActionUnchanged: "Unchanged",
	ActionUpdated:   "Updated",
	ActionResynced:  "Resynced",
}

// String returns the action name.
func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "Unknown"
	}
	return actionNames[a]
}

// EnvironmentOutcome is the result of reconciling one environment.
type EnvironmentOutcome struct {
	Request         DeployRequest
	DeclaredVersion string
	Action          Action
	Synced          bool
}

// DeployReport summarizes a deploy pass for one project.
type DeployReport struct {
	Project  string
	Outcomes []EnvironmentOutcome
}

// CountByAction returns how many environments ended with each action.
func (r DeployReport) CountByAction() map[Action]int {
	counts := make(map[Action]int)
	for _, o := range r.Outcomes {
		counts[o.Action]++
	}
	return counts
}

// Commits returns the number of stack commits made during the pass.
func (r DeployReport) Commits() int {
	return r.CountByAction()[ActionUpdated]
}
