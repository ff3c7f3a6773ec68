package matching

import (
    "sort"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

// Algorithm describes one matching strategy. Parent linking is the only one
// today; a plain map lookup replaces polymorphic dispatch until a second
// strategy exists.
type Algorithm struct {
    Type        string `json:"algorithm_type"`
    Name        string `json:"algorithm_name"`
    Description string `json:"description"`
    FindGroups  func(primary, secondary []domain.Worklog, cfg MatchConfig, exclusions []string) map[string]*domain.WorklogGroup `json:"-"`
}

const AlgorithmParentLinking = "parent_linking"

var algorithms = map[string]Algorithm{
    AlgorithmParentLinking: {
        Type: AlgorithmParentLinking,
        Name: "Parent Linking Match",
        Description: "Groups worklogs by parent Epic/Project key. Matches issues that share the same parent or have the parent key in their summary, and compares aggregated hours per group instead of individual issues.",
        FindGroups:  FindGroups,
    },
}

func GetAlgorithm(algorithmType string) (Algorithm, bool) {
    a, ok := algorithms[algorithmType]
    return a, ok
}

func AvailableAlgorithms() []Algorithm {
    out := make([]Algorithm, 0, len(algorithms))
    for _, a := range algorithms { out = append(out, a) }
    sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
    return out
}
