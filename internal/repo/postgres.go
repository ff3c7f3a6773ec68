package repo

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/config"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// BulkUpsertWorklogs writes one sync batch. (instance, ext_id) identifies a
// worklog across repeated syncs, so re-running a window is idempotent.
func (r *Repository) BulkUpsertWorklogs(ctx context.Context, wl []domain.Worklog) error {
    if len(wl) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO worklogs(ext_id, instance, issue_key, issue_summary, issue_type,
            author_email, author_name, started_at, seconds, parent_key, parent_name, parent_type)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (instance, ext_id) DO UPDATE SET
            issue_key=EXCLUDED.issue_key,
            issue_summary=EXCLUDED.issue_summary,
            issue_type=EXCLUDED.issue_type,
            author_email=EXCLUDED.author_email,
            author_name=EXCLUDED.author_name,
            started_at=EXCLUDED.started_at,
            seconds=EXCLUDED.seconds,
            parent_key=EXCLUDED.parent_key,
            parent_name=EXCLUDED.parent_name,
            parent_type=EXCLUDED.parent_type`
    for _, x := range wl {
        batch.Queue(q, x.ExtID, x.JiraInstance, x.IssueKey, x.IssueSummary, x.IssueType,
            strings.ToLower(strings.TrimSpace(x.AuthorEmail)), x.AuthorName, x.StartedAt, x.TimeSpentSeconds,
            x.ParentKey, x.ParentName, x.ParentType)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range wl { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

// ListWorklogs returns one instance's worklogs whose started_at falls in [from, to).
func (r *Repository) ListWorklogs(ctx context.Context, instance string, from, to time.Time) ([]domain.Worklog, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT id, COALESCE(ext_id,''), instance, COALESCE(issue_key,''), COALESCE(issue_summary,''),
               COALESCE(issue_type,''), COALESCE(author_email,''), COALESCE(author_name,''),
               started_at, seconds, COALESCE(parent_key,''), COALESCE(parent_name,''), COALESCE(parent_type,'')
        FROM worklogs
        WHERE instance=$1 AND started_at >= $2 AND started_at < $3
        ORDER BY started_at, id
    `, instance, from, to)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Worklog
    for rows.Next() {
        var w domain.Worklog
        if err := rows.Scan(&w.ID, &w.ExtID, &w.JiraInstance, &w.IssueKey, &w.IssueSummary,
            &w.IssueType, &w.AuthorEmail, &w.AuthorName,
            &w.StartedAt, &w.TimeSpentSeconds, &w.ParentKey, &w.ParentName, &w.ParentType); err != nil { return nil, err }
        out = append(out, w)
    }
    return out, nil
}

// ListExclusions returns the stored linking-key patterns, wildcard or exact.
func (r *Repository) ListExclusions(ctx context.Context) ([]string, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT pattern FROM exclusion_patterns ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []string
    for rows.Next() {
        var p string
        if err := rows.Scan(&p); err != nil { return nil, err }
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out, nil
}

func (r *Repository) ListGenericIssueRules(ctx context.Context) ([]domain.GenericIssueRule, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT id, issue_code, COALESCE(issue_type,''), team_id, COALESCE(description,'')
        FROM generic_issue_rules ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.GenericIssueRule
    for rows.Next() {
        var g domain.GenericIssueRule
        if err := rows.Scan(&g.ID, &g.IssueCode, &g.IssueType, &g.TeamID, &g.Description); err != nil { return nil, err }
        out = append(out, g)
    }
    return out, nil
}

// UserTeamMap maps lowercased author email to team id for team-scoped rules.
func (r *Repository) UserTeamMap(ctx context.Context) (map[string]int64, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT lower(email), team_id FROM users WHERE team_id IS NOT NULL`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := map[string]int64{}
    for rows.Next() {
        var email string
        var team int64
        if err := rows.Scan(&email, &team); err != nil { return nil, err }
        out[email] = team
    }
    return out, nil
}

// ListTempoAccountIDs returns the secondary-instance account ids whose Tempo
// timesheets are pulled during sync.
func (r *Repository) ListTempoAccountIDs(ctx context.Context) ([]string, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT tempo_account_id FROM users WHERE tempo_account_id IS NOT NULL AND tempo_account_id <> ''`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil { return nil, err }
        out = append(out, id)
    }
    return out, nil
}

// Recon runs
func (r *Repository) StartReconRun(ctx context.Context, windowFrom, windowTo time.Time) (int64, error) {
    const q = `INSERT INTO recon_runs(started_at, window_from, window_to, success) VALUES(now(), $1, $2, false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, windowFrom, windowTo).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishReconRun(ctx context.Context, id int64, worklogsSynced, groupsFound int, success bool, errStr string) error {
    const q = `UPDATE recon_runs SET finished_at=now(), worklogs_synced=$2, groups_found=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, worklogsSynced, groupsFound, success, errStr)
    return err
}

type LastRun struct {
    StartedAt      time.Time  `json:"started_at"`
    FinishedAt     *time.Time `json:"finished_at"`
    WindowFrom     time.Time  `json:"window_from"`
    WindowTo       time.Time  `json:"window_to"`
    WorklogsSynced int        `json:"worklogs_synced"`
    GroupsFound    int        `json:"groups_found"`
    Success        bool       `json:"success"`
    Error          string     `json:"error"`
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT started_at, finished_at, window_from, window_to,
        coalesce(worklogs_synced,0), coalesce(groups_found,0),
        coalesce(success,false), coalesce(error,'')
        FROM recon_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    lr := &LastRun{}
    if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.WindowFrom, &lr.WindowTo, &lr.WorklogsSynced, &lr.GroupsFound, &lr.Success, &lr.Error); err != nil {
        return nil, err
    }
    return lr, nil
}
