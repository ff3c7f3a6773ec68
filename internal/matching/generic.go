/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package matching

import (
    "strings"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

// GenericGroupPrefix namespaces synthetic group keys so they cannot collide
// with real issue keys.
const GenericGroupPrefix = "GENERIC_"

// ApplyGenericIssues is the rescue pass: it re-examines worklogs the standard
// pass left unclaimed and matches them against configured container-issue
// rules. Primary-side candidates log time directly on the rule's issue code;
// secondary-side candidates are selected by issue type. Team-scoped rules are
// evaluated strictly before global ones, so a global rule can never claim a
// worklog a team rule wants.
//
// The function is pure: it returns a new map holding the input groups plus
// any synthetic GENERIC_* groups. Claimed worklogs are derived from the input
// map's membership by worklog ID, which makes re-applying the pass to its own
// output a no-op.
func ApplyGenericIssues(
    groups map[string]*domain.WorklogGroup,
    rules []domain.GenericIssueRule,
    primary, secondary []domain.Worklog,
    userToTeam map[string]int64,
) map[string]*domain.WorklogGroup {
    merged := make(map[string]*domain.WorklogGroup, len(groups)+len(rules))
    for k, g := range groups { merged[k] = g }
    if len(rules) == 0 { return merged }

    claimedPrimary := map[int64]struct{}{}
    claimedSecondary := map[int64]struct{}{}
    for _, g := range groups {
        for _, w := range g.PrimaryWorklogs { claimedPrimary[w.ID] = struct{}{} }
        for _, w := range g.SecondaryWorklogs { claimedSecondary[w.ID] = struct{}{} }
    }

    var teamRules, globalRules []domain.GenericIssueRule
    for _, r := range rules {
        if r.TeamID != nil { teamRules = append(teamRules, r) } else { globalRules = append(globalRules, r) }
    }

    // Secondary worklogs claimed by a team rule are tracked separately so the
    // priority order holds regardless of rule iteration order.
    teamClaimed := map[int64]struct{}{}
    for _, r := range teamRules {
        applyGenericRule(r, merged, primary, secondary, userToTeam, claimedPrimary, claimedSecondary, teamClaimed)
    }
    for _, r := range globalRules {
        applyGenericRule(r, merged, primary, secondary, userToTeam, claimedPrimary, claimedSecondary, teamClaimed)
    }
    return merged
}

func applyGenericRule(
    rule domain.GenericIssueRule,
    groups map[string]*domain.WorklogGroup,
    primary, secondary []domain.Worklog,
    userToTeam map[string]int64,
    claimedPrimary, claimedSecondary, teamClaimed map[int64]struct{},
) {
    allowedTypes := map[string]struct{}{}
    for _, t := range strings.Split(rule.IssueType, ",") {
        if t = strings.TrimSpace(t); t != "" { allowedTypes[t] = struct{}{} }
    }
    inTeam := func(w domain.Worklog) bool {
        if rule.TeamID == nil { return true }
        team, ok := userToTeam[strings.ToLower(w.AuthorEmail)]
        return ok && team == *rule.TeamID
    }

    var primaryMatches []domain.Worklog
    for _, w := range primary {
        if _, taken := claimedPrimary[w.ID]; taken { continue }
        if w.IssueKey != rule.IssueCode { continue }
        if !inTeam(w) { continue }
        primaryMatches = append(primaryMatches, w)
    }

    var secondaryMatches []domain.Worklog
    for _, w := range secondary {
        if _, taken := claimedSecondary[w.ID]; taken { continue }
        if _, taken := teamClaimed[w.ID]; taken { continue }
        t := strings.TrimSpace(w.IssueType)
        if t == "" { continue }
        if _, ok := allowedTypes[t]; !ok { continue }
        if !inTeam(w) { continue }
        secondaryMatches = append(secondaryMatches, w)
    }

    // A rule with no candidates on either side produces no group.
    if len(primaryMatches) == 0 && len(secondaryMatches) == 0 { return }

    for _, w := range primaryMatches { claimedPrimary[w.ID] = struct{}{} }
    for _, w := range secondaryMatches {
        claimedSecondary[w.ID] = struct{}{}
        if rule.TeamID != nil { teamClaimed[w.ID] = struct{}{} }
    }

    key := GenericGroupPrefix + rule.IssueCode + "_" + strings.ReplaceAll(rule.IssueType, ",", "_")
    groups[key] = buildGroup(key, primaryMatches, secondaryMatches, false)
}
