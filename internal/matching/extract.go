/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package matching reconciles worklogs across two Jira instances that record
// the same work under different issue keys. It is pure in-memory computation:
// callers load and scope all inputs, the package never touches the network or
// the database.
package matching

import (
    "regexp"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

var (
    issueKeyRe      = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)
    issueKeyExactRe = regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`)
)

// ExtractLinkingKey derives the key a worklog is grouped under. Priority is
// strict, first hit wins:
//  1. the worklog's own issue key, when it is a well-formed PROJ-123 key
//  2. the first PROJ-123 occurrence in the issue summary
//  3. the first PROJ-123 occurrence in the parent name
//  4. the parent key verbatim (any string)
//
// ok=false means the worklog cannot participate in standard matching; it may
// still be rescued by ApplyGenericIssues, which does not use this cascade.
func ExtractLinkingKey(w domain.Worklog) (string, bool) {
    if w.IssueKey != "" && issueKeyExactRe.MatchString(w.IssueKey) {
        return w.IssueKey, true
    }
    if w.IssueSummary != "" {
        if m := issueKeyRe.FindString(w.IssueSummary); m != "" { return m, true }
    }
    if w.ParentName != "" {
        if m := issueKeyRe.FindString(w.ParentName); m != "" { return m, true }
    }
    if w.ParentKey != "" { return w.ParentKey, true }
    return "", false
}
