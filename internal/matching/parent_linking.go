/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package matching

import (
    "sort"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

// MatchConfig carries algorithm-specific knobs. Parent linking currently has
// none; the struct keeps the strategy signature stable for future algorithms.
type MatchConfig struct{}

// FindGroups runs the standard parent-linking pass: every worklog on either
// side is keyed by ExtractLinkingKey and bucketed per side, then a group is
// built for every key seen on at least one side. Worklogs that yield no key
// are omitted; that is expected data quality, not an error. Groups present on
// only one side are kept — solitaries are the discrepancies the report is for.
func FindGroups(primary, secondary []domain.Worklog, cfg MatchConfig, exclusions []string) map[string]*domain.WorklogGroup {
    type bucket struct {
        primary   []domain.Worklog
        secondary []domain.Worklog
    }
    buckets := map[string]*bucket{}
    at := func(key string) *bucket {
        b, ok := buckets[key]
        if !ok { b = &bucket{}; buckets[key] = b }
        return b
    }
    for _, w := range primary {
        if key, ok := ExtractLinkingKey(w); ok { b := at(key); b.primary = append(b.primary, w) }
    }
    for _, w := range secondary {
        if key, ok := ExtractLinkingKey(w); ok { b := at(key); b.secondary = append(b.secondary, w) }
    }

    groups := make(map[string]*domain.WorklogGroup, len(buckets))
    for key, b := range buckets {
        groups[key] = buildGroup(key, b.primary, b.secondary, MatchesExclusion(key, exclusions))
    }
    return groups
}

func buildGroup(key string, primary, secondary []domain.Worklog, excluded bool) *domain.WorklogGroup {
    g := &domain.WorklogGroup{
        LinkingKey:        key,
        PrimaryWorklogs:   primary,
        SecondaryWorklogs: secondary,
        PrimaryIssues:     distinctIssueKeys(primary),
        SecondaryIssues:   distinctIssueKeys(secondary),
        IsExcluded:        excluded,
    }
    for _, w := range primary { g.PrimaryHours += w.Hours() }
    for _, w := range secondary { g.SecondaryHours += w.Hours() }
    g.Delta = g.PrimaryHours - g.SecondaryHours
    return g
}

// distinctIssueKeys returns the deduplicated issue keys of one side, sorted
// for stable report output.
func distinctIssueKeys(worklogs []domain.Worklog) []string {
    if len(worklogs) == 0 { return nil }
    seen := map[string]struct{}{}
    out := make([]string, 0, len(worklogs))
    for _, w := range worklogs {
        if _, ok := seen[w.IssueKey]; ok { continue }
        seen[w.IssueKey] = struct{}{}
        out = append(out, w.IssueKey)
    }
    sort.Strings(out)
    return out
}
