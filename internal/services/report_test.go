package services

import (
    "strings"
    "testing"
    "time"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

func TestBuildReport_DeltaPercentGuard(t *testing.T) {
    from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
    to := from.AddDate(0, 0, 7)
    groups := map[string]*domain.WorklogGroup{
        "A-1": {
            LinkingKey:      "A-1",
            PrimaryWorklogs: []domain.Worklog{{ID: 1, TimeSpentSeconds: 7200}},
            PrimaryHours:    2.0,
            SecondaryHours:  0.5,
            Delta:           1.5,
        },
        // Both sides zero hours: zero-second entries are valid input and the
        // percentage must not divide by zero.
        "B-2": {
            LinkingKey:        "B-2",
            PrimaryWorklogs:   []domain.Worklog{{ID: 2}},
            SecondaryWorklogs: []domain.Worklog{{ID: 3}},
        },
    }
    rep := BuildReport("parent_linking", from, to, groups)
    if len(rep.Groups) != 2 { t.Fatalf("expected 2 groups, got %#v", rep.Groups) }
    if rep.Groups[0].LinkingKey != "A-1" { t.Fatalf("expected largest delta first, got %#v", rep.Groups) }
    if rep.Groups[0].DeltaPercent != 75.0 {
        t.Fatalf("wrong delta percent: %v", rep.Groups[0].DeltaPercent)
    }
    if rep.Groups[1].DeltaPercent != 0 {
        t.Fatalf("zero-hour group must report 0%%, got %v", rep.Groups[1].DeltaPercent)
    }
}

func TestBuildReport_CountsAndTotals(t *testing.T) {
    groups := map[string]*domain.WorklogGroup{
        "PROJ-1": {
            LinkingKey:        "PROJ-1",
            PrimaryWorklogs:   []domain.Worklog{{ID: 1, TimeSpentSeconds: 3600}},
            SecondaryWorklogs: []domain.Worklog{{ID: 2, TimeSpentSeconds: 1800}},
            PrimaryHours:      1.0,
            SecondaryHours:    0.5,
            Delta:             0.5,
        },
        "ASS-19": {
            LinkingKey:      "ASS-19",
            PrimaryWorklogs: []domain.Worklog{{ID: 3, TimeSpentSeconds: 3600}},
            PrimaryHours:    1.0,
            Delta:           1.0,
            IsExcluded:      true,
        },
        "GENERIC_CONT-1_Incident": {
            LinkingKey:        "GENERIC_CONT-1_Incident",
            SecondaryWorklogs: []domain.Worklog{{ID: 4, TimeSpentSeconds: 7200}},
            SecondaryHours:    2.0,
            Delta:             -2.0,
        },
    }
    rep := BuildReport("parent_linking", time.Time{}, time.Time{}, groups)
    if rep.TotalPrimaryHours != 2.0 || rep.TotalSecondaryHours != 2.5 {
        t.Fatalf("wrong totals: %v / %v", rep.TotalPrimaryHours, rep.TotalSecondaryHours)
    }
    // ASS-19 and the generic group are both one-sided.
    if rep.SolitaryGroups != 2 { t.Fatalf("wrong solitary count: %d", rep.SolitaryGroups) }
    if rep.ExcludedGroups != 1 { t.Fatalf("wrong excluded count: %d", rep.ExcludedGroups) }
    if rep.GenericGroups != 1 { t.Fatalf("wrong generic count: %d", rep.GenericGroups) }
    if rep.Groups[0].LinkingKey != "GENERIC_CONT-1_Incident" {
        t.Fatalf("sort must use absolute delta, got %#v", rep.Groups[0])
    }
}

func TestRenderDigest(t *testing.T) {
    rep := BuildReport("parent_linking", time.Time{}, time.Time{}, map[string]*domain.WorklogGroup{
        "PROJ-1": {
            LinkingKey:      "PROJ-1",
            PrimaryWorklogs: []domain.Worklog{{ID: 1, TimeSpentSeconds: 5400}},
            PrimaryHours:    1.5,
            Delta:           1.5,
            IsExcluded:      true,
        },
    })
    out := renderDigest(rep)
    if !strings.Contains(out, "PROJ-1") || !strings.Contains(out, "(excluded)") {
        t.Fatalf("digest missing group line: %q", out)
    }
    if !strings.Contains(out, "solitary 1") { t.Fatalf("digest missing counts: %q", out) }
}

func TestChunkText(t *testing.T) {
    in := strings.Repeat("line one\n", 10)
    chunks := chunkText(strings.TrimRight(in, "\n"), 30)
    if len(chunks) < 2 { t.Fatalf("expected multiple chunks, got %d", len(chunks)) }
    for _, c := range chunks {
        if len([]rune(c)) > 30 { t.Fatalf("chunk exceeds max: %q", c) }
    }
    if got := strings.Join(chunks, "\n"); got != strings.TrimRight(in, "\n") {
        t.Fatalf("chunks lost content: %q", got)
    }
}
