package services

import (
    "math"
    "sort"
    "strings"
    "time"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/matching"
)

// BuildReport flattens a group map into the report the API and the digest
// consume. The engine leaves percentage math and ordering to this layer.
func BuildReport(algorithm string, from, to time.Time, groups map[string]*domain.WorklogGroup) *domain.ReconReport {
    rep := &domain.ReconReport{
        From:      from,
        To:        to,
        Algorithm: algorithm,
        Groups:    make([]domain.GroupReport, 0, len(groups)),
    }
    for key, g := range groups {
        gr := domain.GroupReport{
            LinkingKey:      key,
            PrimaryHours:    g.PrimaryHours,
            SecondaryHours:  g.SecondaryHours,
            Delta:           g.Delta,
            PrimaryCount:    len(g.PrimaryWorklogs),
            SecondaryCount:  len(g.SecondaryWorklogs),
            PrimaryIssues:   g.PrimaryIssues,
            SecondaryIssues: g.SecondaryIssues,
            IsExcluded:      g.IsExcluded,
            IsSolitary:      len(g.PrimaryWorklogs) == 0 || len(g.SecondaryWorklogs) == 0,
            IsGeneric:       strings.HasPrefix(key, matching.GenericGroupPrefix),
        }
        // Guard the ratio: a group can legitimately have zero hours on both
        // sides when every entry logged zero seconds.
        if m := math.Max(g.PrimaryHours, g.SecondaryHours); m > 0 {
            gr.DeltaPercent = g.Delta / m * 100
        }
        rep.Groups = append(rep.Groups, gr)
        rep.TotalPrimaryHours += g.PrimaryHours
        rep.TotalSecondaryHours += g.SecondaryHours
        if gr.IsSolitary { rep.SolitaryGroups++ }
        if gr.IsExcluded { rep.ExcludedGroups++ }
        if gr.IsGeneric { rep.GenericGroups++ }
    }
    // Largest discrepancies first, key order for ties.
    sort.Slice(rep.Groups, func(i, j int) bool {
        di, dj := math.Abs(rep.Groups[i].Delta), math.Abs(rep.Groups[j].Delta)
        if di == dj { return rep.Groups[i].LinkingKey < rep.Groups[j].LinkingKey }
        return di > dj
    })
    return rep
}
