/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/config"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/matching"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/repo"
)

type JiraClient interface {
    Name() string
    Search(ctx context.Context, jql string, startAt, max int) (any, error)
    Issue(ctx context.Context, key string) (any, error)
    Worklogs(ctx context.Context, key string, startAt, max int) (any, error)
}

type TempoClient interface {
    Enabled() bool
    UserWorklogs(ctx context.Context, accountID string, from, to time.Time, offset, limit int) (any, error)
}

type LLM interface {
    Enabled() bool
    Summarize(ctx context.Context, report *domain.ReconReport) (string, error)
}

type Notifier interface {
    SendMessage(ctx context.Context, chatID int64, text string) error
    SendMessagePlain(ctx context.Context, chatID int64, text string) error
}

type Service struct {
    cfg       config.Config
    log       zerolog.Logger
    repo      *repo.Repository
    primary   JiraClient
    secondary JiraClient
    tempo     TempoClient
    llm       LLM
    tg        Notifier
}

func New(cfg config.Config, log zerolog.Logger, r *repo.Repository, primary, secondary JiraClient, tempo TempoClient, llm LLM, tg Notifier) *Service {
    return &Service{cfg: cfg, log: log, repo: r, primary: primary, secondary: secondary, tempo: tempo, llm: llm, tg: tg}
}

// SyncWorklogs pulls the window's worklogs from both Jira instances (plus
// Tempo for the secondary when configured) and upserts them. Returns the
// number of worklogs written.
func (s *Service) SyncWorklogs(ctx context.Context, from, to time.Time) (int, error) {
    total := 0
    n, err := s.syncInstance(ctx, s.primary, s.cfg.PrimaryJQL, from, to)
    total += n
    if err != nil { return total, fmt.Errorf("sync %s: %w", s.primary.Name(), err) }
    n, err = s.syncInstance(ctx, s.secondary, s.cfg.SecondaryJQL, from, to)
    total += n
    if err != nil { return total, fmt.Errorf("sync %s: %w", s.secondary.Name(), err) }
    if s.tempo != nil && s.tempo.Enabled() {
        n, err = s.syncTempo(ctx, from, to)
        total += n
        if err != nil { return total, fmt.Errorf("sync tempo: %w", err) }
    }
    return total, nil
}

// windowJQL scopes the sync to the date window; a configured base JQL
// (projects, teams) narrows it further and is ANDed in front.
func windowJQL(base string, from, to time.Time) string {
    window := fmt.Sprintf("worklogDate >= %q AND worklogDate <= %q",
        from.Format("2006-01-02"), to.Format("2006-01-02"))
    if base = strings.TrimSpace(base); base != "" {
        return "(" + base + ") AND " + window
    }
    return window
}

type parentMeta struct{ name, ptype string }

// resolveParent fetches a parent issue's summary and type when the search
// payload carried only its key. Memoized per sync: many sub-tasks share one
// Epic.
func (s *Service) resolveParent(ctx context.Context, client JiraClient, cache map[string]parentMeta, key string) parentMeta {
    if m, ok := cache[key]; ok { return m }
    var m parentMeta
    res, err := client.Issue(ctx, key)
    if err != nil {
        s.log.Warn().Err(err).Str("instance", client.Name()).Str("parent", key).Msg("parent fetch failed")
        cache[key] = m
        return m
    }
    if im, ok := res.(map[string]any); ok {
        if fields, ok := im["fields"].(map[string]any); ok {
            m.name = toStrAny(fields["summary"])
            if tp, ok := fields["issuetype"].(map[string]any); ok { m.ptype = toStrAny(tp["name"]) }
        }
    }
    cache[key] = m
    return m
}

// syncInstance pages a JQL search over the window and fans the per-issue
// worklog fetches out to a bounded worker pool.
func (s *Service) syncInstance(ctx context.Context, client JiraClient, baseJQL string, from, to time.Time) (int, error) {
    jql := windowJQL(baseJQL, from, to)

    type issueMeta struct {
        key, summary, issueType             string
        parentKey, parentName, parentType   string
    }

    var total int
    var totalMu sync.Mutex
    parents := map[string]parentMeta{}
    startAt := 0
    for {
        res, err := client.Search(ctx, jql, startAt, 50)
        if err != nil { return total, err }
        m, _ := res.(map[string]any)
        arr, _ := m["issues"].([]any)
        if len(arr) == 0 { break }

        workerCount := s.cfg.WorkersSync
        if workerCount <= 0 { workerCount = 6 }
        jobs := make(chan issueMeta)
        var wg sync.WaitGroup
        for w := 0; w < workerCount; w++ {
            wg.Add(1)
            go func() {
                defer wg.Done()
                for im := range jobs {
                    n, err := s.syncIssueWorklogs(ctx, client, im.key, im.summary, im.issueType, im.parentKey, im.parentName, im.parentType, from, to)
                    if err != nil {
                        s.log.Error().Err(err).Str("instance", client.Name()).Str("issue", im.key).Msg("worklog fetch failed")
                        continue
                    }
                    totalMu.Lock(); total += n; totalMu.Unlock()
                }
            }()
        }
        for _, it := range arr {
            im, _ := it.(map[string]any)
            if im == nil { continue }
            fields, _ := im["fields"].(map[string]any)
            meta := issueMeta{key: toStrAny(im["key"]), summary: toStrAny(fields["summary"])}
            if tp, ok := fields["issuetype"].(map[string]any); ok { meta.issueType = toStrAny(tp["name"]) }
            if p, ok := fields["parent"].(map[string]any); ok {
                meta.parentKey = toStrAny(p["key"])
                if pf, ok := p["fields"].(map[string]any); ok {
                    meta.parentName = toStrAny(pf["summary"])
                    if pt, ok := pf["issuetype"].(map[string]any); ok { meta.parentType = toStrAny(pt["name"]) }
                }
            }
            // Some deployments return the parent as a bare key reference.
            if meta.parentKey != "" && meta.parentName == "" {
                pm := s.resolveParent(ctx, client, parents, meta.parentKey)
                meta.parentName, meta.parentType = pm.name, pm.ptype
            }
            if meta.key != "" { jobs <- meta }
        }
        close(jobs)
        wg.Wait()
        if len(arr) < 50 { break }
        startAt += 50
    }
    return total, nil
}

func (s *Service) syncIssueWorklogs(ctx context.Context, client JiraClient, key, summary, issueType, parentKey, parentName, parentType string, from, to time.Time) (int, error) {
    var out []domain.Worklog
    wStart := 0
    for {
        res, err := client.Worklogs(ctx, key, wStart, 100)
        if err != nil { return 0, err }
        wm, _ := res.(map[string]any)
        warr, _ := wm["worklogs"].([]any)
        if len(warr) == 0 { break }
        for _, w0 := range warr {
            wi, _ := w0.(map[string]any)
            if wi == nil { continue }
            started := parseTimeUTC(wi["started"])
            if started == nil || started.Before(from) || !started.Before(to) { continue }
            secs := 0
            if v, ok := wi["timeSpentSeconds"].(float64); ok { secs = int(v) }
            email, name := "", ""
            if a, ok := wi["author"].(map[string]any); ok {
                email = toStrAny(a["emailAddress"])
                name = toStrAny(a["displayName"])
            }
            out = append(out, domain.Worklog{
                ExtID:            toStrAny(wi["id"]),
                JiraInstance:     client.Name(),
                IssueKey:         key,
                IssueSummary:     summary,
                IssueType:        issueType,
                AuthorEmail:      email,
                AuthorName:       name,
                StartedAt:        *started,
                TimeSpentSeconds: secs,
                ParentKey:        parentKey,
                ParentName:       parentName,
                ParentType:       parentType,
            })
        }
        total, _ := wm["total"].(float64)
        startAtResp, _ := wm["startAt"].(float64)
        maxResp, _ := wm["maxResults"].(float64)
        if total == 0 { break }
        next := int(startAtResp) + int(maxResp)
        if float64(next) >= total { break }
        wStart = next
    }
    if len(out) == 0 { return 0, nil }
    if err := s.repo.BulkUpsertWorklogs(ctx, out); err != nil { return 0, err }
    return len(out), nil
}

// syncTempo supplements the secondary instance with Tempo timesheets for
// contractors who log there instead of Jira. Tempo worklogs land under the
// secondary instance label and dedupe against the Jira-sourced ones by ext_id.
func (s *Service) syncTempo(ctx context.Context, from, to time.Time) (int, error) {
    accounts, err := s.repo.ListTempoAccountIDs(ctx)
    if err != nil { return 0, err }
    total := 0
    for _, acct := range accounts {
        offset := 0
        for {
            res, err := s.tempo.UserWorklogs(ctx, acct, from, to, offset, 100)
            if err != nil { return total, err }
            m, _ := res.(map[string]any)
            arr, _ := m["results"].([]any)
            if len(arr) == 0 { break }
            var out []domain.Worklog
            for _, w0 := range arr {
                wi, _ := w0.(map[string]any)
                if wi == nil { continue }
                started := parseTimeUTC(wi["startDate"])
                if started == nil {
                    // Tempo splits date and time; startDate alone is enough
                    // for windowing but some deployments only send startDateTime.
                    started = parseTimeUTC(wi["startDateTime"])
                }
                if started == nil { continue }
                secs := 0
                if v, ok := wi["timeSpentSeconds"].(float64); ok { secs = int(v) }
                w := domain.Worklog{
                    ExtID:            "tempo-" + toStrAny(wi["tempoWorklogId"]),
                    JiraInstance:     s.cfg.SecondaryName,
                    StartedAt:        *started,
                    TimeSpentSeconds: secs,
                }
                if iss, ok := wi["issue"].(map[string]any); ok {
                    w.IssueKey = toStrAny(iss["key"])
                    w.IssueSummary = toStrAny(iss["summary"])
                    w.IssueType = toStrAny(iss["issueType"])
                }
                if a, ok := wi["author"].(map[string]any); ok {
                    w.AuthorEmail = toStrAny(a["email"])
                    w.AuthorName = toStrAny(a["displayName"])
                }
                if w.IssueKey == "" { continue }
                out = append(out, w)
            }
            if len(out) > 0 {
                if err := s.repo.BulkUpsertWorklogs(ctx, out); err != nil { return total, err }
                total += len(out)
            }
            meta, _ := m["metadata"].(map[string]any)
            count, _ := meta["count"].(float64)
            if int(count) < 100 { break }
            offset += 100
        }
    }
    return total, nil
}

// Reconcile runs both matching passes over the stored window and builds the
// report.
func (s *Service) Reconcile(ctx context.Context, algorithmType string, from, to time.Time) (*domain.ReconReport, error) {
    alg, ok := matching.GetAlgorithm(algorithmType)
    if !ok { return nil, fmt.Errorf("unknown algorithm %q", algorithmType) }

    primary, err := s.repo.ListWorklogs(ctx, s.cfg.PrimaryName, from, to)
    if err != nil { return nil, err }
    secondary, err := s.repo.ListWorklogs(ctx, s.cfg.SecondaryName, from, to)
    if err != nil { return nil, err }
    exclusions, err := s.repo.ListExclusions(ctx)
    if err != nil { return nil, err }
    rules, err := s.loadGenericRules(ctx)
    if err != nil { return nil, err }
    userToTeam, err := s.repo.UserTeamMap(ctx)
    if err != nil { return nil, err }

    groups := alg.FindGroups(primary, secondary, matching.MatchConfig{}, exclusions)
    merged := matching.ApplyGenericIssues(groups, rules, primary, secondary, userToTeam)
    return BuildReport(alg.Type, from, to, merged), nil
}

// loadGenericRules fetches the rules and warns about duplicate issue codes:
// rules sharing a code and type produce the same synthetic key, so the later
// one overwrites the earlier group.
func (s *Service) loadGenericRules(ctx context.Context) ([]domain.GenericIssueRule, error) {
    rules, err := s.repo.ListGenericIssueRules(ctx)
    if err != nil { return nil, err }
    seen := map[string]int64{}
    for _, r := range rules {
        if prev, ok := seen[r.IssueCode]; ok {
            s.log.Warn().Str("issue_code", r.IssueCode).Int64("rule", r.ID).Int64("earlier_rule", prev).
                Msg("duplicate generic issue code; later rule overwrites the earlier group")
            continue
        }
        seen[r.IssueCode] = r.ID
    }
    return rules, nil
}

func (s *Service) GetLastRun(ctx context.Context) (any, error) {
    return s.repo.GetLastRun(ctx)
}

// RunWeeklyDigest is the cron entrypoint: sync the window, reconcile, and
// deliver the findings to the configured Telegram chats.
func (s *Service) RunWeeklyDigest(ctx context.Context) error {
    days := s.cfg.SyncWindowDays
    if days <= 0 { days = 7 }
    to := time.Now().UTC()
    from := to.AddDate(0, 0, -days)

    runID, err := s.repo.StartReconRun(ctx, from, to)
    if err != nil { s.log.Error().Err(err).Msg("start recon run failed") }
    s.log.Info().Time("from", from).Time("to", to).Msg("WeeklyDigest: start")

    var synced, groupsFound int
    var runErr error
    defer func() {
        if runID != 0 {
            errStr := ""
            if runErr != nil { errStr = runErr.Error() }
            _ = s.repo.FinishReconRun(ctx, runID, synced, groupsFound, runErr == nil, errStr)
        }
    }()

    synced, runErr = s.SyncWorklogs(ctx, from, to)
    if runErr != nil {
        s.log.Error().Err(runErr).Msg("sync failed")
        return runErr
    }
    report, err := s.Reconcile(ctx, matching.AlgorithmParentLinking, from, to)
    if err != nil {
        runErr = err
        s.log.Error().Err(err).Msg("reconcile failed")
        return err
    }
    groupsFound = len(report.Groups)

    digest := renderDigest(report)
    for _, chat := range s.cfg.TelegramChatIDs {
        if err := s.tg.SendMessage(ctx, chat, digest); err != nil {
            s.log.Error().Err(err).Int64("chat", chat).Msg("telegram send failed")
        }
    }
    if s.llm != nil && s.llm.Enabled() {
        if summary, err := s.llm.Summarize(ctx, report); err != nil {
            s.log.Error().Err(err).Msg("llm summary failed")
        } else {
            for _, chat := range s.cfg.TelegramChatIDs {
                for _, part := range chunkText(summary, 3800) {
                    _ = s.tg.SendMessagePlain(ctx, chat, part)
                }
            }
        }
    }
    s.log.Info().Int("worklogs", synced).Int("groups", groupsFound).Msg("WeeklyDigest: done")
    return nil
}

// RunOnDemandReport reconciles the last N days and replies to the requesting
// chat without touching recon_runs bookkeeping.
func (s *Service) RunOnDemandReport(ctx context.Context, chatID int64, sinceDays int) error {
    if chatID == 0 { return nil }
    if sinceDays <= 0 { sinceDays = s.cfg.SyncWindowDays }
    if sinceDays <= 0 { sinceDays = 7 }
    to := time.Now().UTC()
    from := to.AddDate(0, 0, -sinceDays)
    report, err := s.Reconcile(ctx, matching.AlgorithmParentLinking, from, to)
    if err != nil {
        _ = s.tg.SendMessagePlain(ctx, chatID, "Reconcile failed: "+err.Error())
        return err
    }
    return s.tg.SendMessage(ctx, chatID, renderDigest(report))
}

// SendHelp replies with bot capabilities and commands.
func (s *Service) SendHelp(ctx context.Context, chatID int64) error {
    if chatID == 0 { return nil }
    help := "*Worklog Reconciler*\n" +
        "Cross-instance worklog discrepancy reports.\n\n" +
        "Commands:\n" +
        "- /reconcile — report for the configured window\n" +
        "- /reconcile 30d — report for the last 30 days"
    return s.tg.SendMessage(ctx, chatID, help)
}

// renderDigest builds the Markdown digest: totals plus the largest
// discrepancies. The report arrives already sorted by |delta|.
func renderDigest(report *domain.ReconReport) string {
    b := &strings.Builder{}
    fmt.Fprintf(b, "*Worklog Reconciliation*\n")
    fmt.Fprintf(b, "%s — %s\n\n", report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
    fmt.Fprintf(b, "Primary: %.1fh\nSecondary: %.1fh\n", report.TotalPrimaryHours, report.TotalSecondaryHours)
    fmt.Fprintf(b, "Groups: %d (solitary %d, excluded %d, generic %d)\n",
        len(report.Groups), report.SolitaryGroups, report.ExcludedGroups, report.GenericGroups)
    top := report.Groups
    if len(top) > 10 { top = top[:10] }
    if len(top) > 0 { fmt.Fprintf(b, "\nTop discrepancies:\n") }
    for _, g := range top {
        marker := ""
        if g.IsExcluded { marker = " (excluded)" }
        fmt.Fprintf(b, "- %s: %.1fh vs %.1fh (Δ%.1fh)%s\n", g.LinkingKey, g.PrimaryHours, g.SecondaryHours, g.Delta, marker)
    }
    return b.String()
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

// chunkText splits text into chunks of up to max runes, attempting to break on line boundaries.
func chunkText(s string, max int) []string {
    if max <= 0 { return []string{s} }
    var chunks []string
    lines := strings.Split(s, "\n")
    cur := ""
    curlen := 0
    for _, ln := range lines {
        rl := len([]rune(ln))
        if rl > max {
            if curlen > 0 { chunks = append(chunks, cur); cur = ""; curlen = 0 }
            r := []rune(ln)
            for i := 0; i < rl; i += max {
                j := i + max
                if j > rl { j = rl }
                chunks = append(chunks, string(r[i:j]))
            }
            continue
        }
        extra := rl
        if curlen > 0 { extra += 1 }
        if curlen+extra > max {
            chunks = append(chunks, cur)
            cur = ln
            curlen = rl
        } else {
            if curlen == 0 { cur = ln; curlen = rl } else { cur += "\n" + ln; curlen += extra }
        }
    }
    if curlen > 0 { chunks = append(chunks, cur) }
    if len(chunks) == 0 { chunks = []string{""} }
    return chunks
}
