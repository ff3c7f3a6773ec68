package matching

import (
    "math"
    "testing"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

func TestFindGroups_CrossInstanceScenario(t *testing.T) {
    // Primary logs on an internal ticket whose own key is not issue-shaped,
    // so the cascade reaches the DLREQ-1447 parent reference; secondary
    // references DLREQ-1447 only in its summary. Both land in one group.
    primary := []domain.Worklog{
        {ID: 1, IssueKey: "dlwms-866", ParentKey: "DLREQ-1447", ParentName: "DLREQ-1447 Warehouse rollout", TimeSpentSeconds: 3600, JiraInstance: "MMFG"},
    }
    secondary := []domain.Worklog{
        {ID: 2, IssueKey: "sysmmfg-5349", IssueSummary: "work on DLREQ-1447 item", TimeSpentSeconds: 1800, JiraInstance: "OT"},
    }

    groups := FindGroups(primary, secondary, MatchConfig{}, nil)
    if len(groups) != 1 { t.Fatalf("expected exactly one group, got %#v", groups) }
    g, ok := groups["DLREQ-1447"]
    if !ok { t.Fatalf("expected group DLREQ-1447, got %#v", groups) }
    if g.PrimaryHours != 1.0 || g.SecondaryHours != 0.5 || g.Delta != 0.5 {
        t.Fatalf("wrong hours: primary=%v secondary=%v delta=%v", g.PrimaryHours, g.SecondaryHours, g.Delta)
    }
    if len(g.PrimaryIssues) != 1 || g.PrimaryIssues[0] != "dlwms-866" {
        t.Fatalf("wrong primary issues: %#v", g.PrimaryIssues)
    }
    if len(g.SecondaryIssues) != 1 || g.SecondaryIssues[0] != "sysmmfg-5349" {
        t.Fatalf("wrong secondary issues: %#v", g.SecondaryIssues)
    }
}

func TestFindGroups_DirectKeyBeatsParentReference(t *testing.T) {
    // A well-formed issue key always wins the cascade, even when a parent
    // reference or a summary mention points somewhere else. Records on
    // different well-formed keys therefore never merge.
    primary := []domain.Worklog{
        {ID: 1, IssueKey: "DLWMS-866", ParentKey: "DLREQ-1447", ParentName: "DLREQ-1447 Warehouse rollout", TimeSpentSeconds: 3600},
    }
    secondary := []domain.Worklog{
        {ID: 2, IssueKey: "SYSMMFG-5349", IssueSummary: "work on DLREQ-1447 item", TimeSpentSeconds: 1800},
    }
    groups := FindGroups(primary, secondary, MatchConfig{}, nil)
    if len(groups) != 2 { t.Fatalf("expected two solitary groups, got %#v", groups) }
    if _, ok := groups["DLWMS-866"]; !ok { t.Fatalf("missing group DLWMS-866: %#v", groups) }
    if _, ok := groups["SYSMMFG-5349"]; !ok { t.Fatalf("missing group SYSMMFG-5349: %#v", groups) }
}

func TestFindGroups_SolitaryGroupsPreserved(t *testing.T) {
    primary := []domain.Worklog{{ID: 1, IssueKey: "PROJ-1", TimeSpentSeconds: 7200}}
    groups := FindGroups(primary, nil, MatchConfig{}, nil)
    g, ok := groups["PROJ-1"]
    if !ok { t.Fatalf("solitary group dropped: %#v", groups) }
    if g.SecondaryHours != 0 || len(g.SecondaryWorklogs) != 0 {
        t.Fatalf("expected empty secondary side, got %#v", g)
    }
    if g.Delta != 2.0 { t.Fatalf("expected delta 2.0, got %v", g.Delta) }
}

func TestFindGroups_UnlinkableWorklogsOmitted(t *testing.T) {
    primary := []domain.Worklog{
        {ID: 1, IssueKey: "PROJ-1", TimeSpentSeconds: 3600},
        {ID: 2, IssueKey: "internal-admin", TimeSpentSeconds: 3600}, // no key derivable
    }
    groups := FindGroups(primary, nil, MatchConfig{}, nil)
    if len(groups) != 1 { t.Fatalf("expected unlinkable worklog to be omitted, got %#v", groups) }
}

func TestFindGroups_HoursConservation(t *testing.T) {
    primary := []domain.Worklog{
        {ID: 1, IssueKey: "AA-1", TimeSpentSeconds: 1800},
        {ID: 2, IssueKey: "AA-1", TimeSpentSeconds: 900},
        {ID: 3, IssueKey: "BB-2", TimeSpentSeconds: 5400},
        {ID: 4, IssueKey: "unlinkable", TimeSpentSeconds: 3600},
    }
    secondary := []domain.Worklog{
        {ID: 5, IssueKey: "cc-3", IssueSummary: "BB-2 follow-up", TimeSpentSeconds: 2700},
    }
    groups := FindGroups(primary, secondary, MatchConfig{}, nil)

    var gotPrimary, gotSecondary float64
    seen := map[int64]int{}
    for _, g := range groups {
        gotPrimary += g.PrimaryHours
        gotSecondary += g.SecondaryHours
        for _, w := range g.PrimaryWorklogs { seen[w.ID]++ }
        for _, w := range g.SecondaryWorklogs { seen[w.ID]++ }
    }
    // Linked primary seconds: 1800+900+5400 = 8100s = 2.25h; secondary 0.75h.
    if math.Abs(gotPrimary-2.25) > 1e-9 || math.Abs(gotSecondary-0.75) > 1e-9 {
        t.Fatalf("hours not conserved: primary=%v secondary=%v", gotPrimary, gotSecondary)
    }
    for id, n := range seen {
        if n != 1 { t.Fatalf("worklog %d appears in %d groups", id, n) }
    }
}

func TestFindGroups_ExclusionFlagsGroupWithoutDroppingIt(t *testing.T) {
    primary := []domain.Worklog{{ID: 1, IssueKey: "ASS-19", TimeSpentSeconds: 3600}}
    groups := FindGroups(primary, nil, MatchConfig{}, []string{"ASS-*"})
    g, ok := groups["ASS-19"]
    if !ok { t.Fatalf("excluded group must still be reported: %#v", groups) }
    if !g.IsExcluded { t.Fatalf("expected IsExcluded=true") }
    if g.PrimaryHours != 1.0 { t.Fatalf("exclusion must not strip data: %#v", g) }
}
