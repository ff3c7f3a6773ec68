package services

import (
    "context"
    "testing"
    "time"

    "github.com/rs/zerolog"
)

type fakeJira struct {
    issueCalls int
    issues     map[string]any
}

func (f *fakeJira) Name() string { return "fake" }

func (f *fakeJira) Search(ctx context.Context, jql string, startAt, max int) (any, error) {
    return map[string]any{"issues": []any{}}, nil
}

func (f *fakeJira) Issue(ctx context.Context, key string) (any, error) {
    f.issueCalls++
    return f.issues[key], nil
}

func (f *fakeJira) Worklogs(ctx context.Context, key string, startAt, max int) (any, error) {
    return map[string]any{"worklogs": []any{}}, nil
}

func TestWindowJQL(t *testing.T) {
    from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
    to := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)

    got := windowJQL("", from, to)
    want := `worklogDate >= "2026-08-01" AND worklogDate <= "2026-08-08"`
    if got != want { t.Fatalf("empty base: got %q want %q", got, want) }

    got = windowJQL("  project = DLWMS  ", from, to)
    want = `(project = DLWMS) AND worklogDate >= "2026-08-01" AND worklogDate <= "2026-08-08"`
    if got != want { t.Fatalf("with base: got %q want %q", got, want) }
}

func TestResolveParent_FetchesOnceAndCaches(t *testing.T) {
    fj := &fakeJira{issues: map[string]any{
        "DLREQ-1447": map[string]any{
            "key": "DLREQ-1447",
            "fields": map[string]any{
                "summary":   "Warehouse rollout",
                "issuetype": map[string]any{"name": "Epic"},
            },
        },
    }}
    s := &Service{log: zerolog.Nop()}
    cache := map[string]parentMeta{}

    pm := s.resolveParent(context.Background(), fj, cache, "DLREQ-1447")
    if pm.name != "Warehouse rollout" || pm.ptype != "Epic" {
        t.Fatalf("wrong parent meta: %#v", pm)
    }
    again := s.resolveParent(context.Background(), fj, cache, "DLREQ-1447")
    if again != pm { t.Fatalf("cache returned different meta: %#v vs %#v", again, pm) }
    if fj.issueCalls != 1 { t.Fatalf("expected a single issue fetch, got %d", fj.issueCalls) }
}

func TestResolveParent_UnknownParentCachedEmpty(t *testing.T) {
    fj := &fakeJira{issues: map[string]any{}}
    s := &Service{log: zerolog.Nop()}
    cache := map[string]parentMeta{}

    pm := s.resolveParent(context.Background(), fj, cache, "DLREQ-404")
    if pm != (parentMeta{}) { t.Fatalf("expected empty meta, got %#v", pm) }
    _ = s.resolveParent(context.Background(), fj, cache, "DLREQ-404")
    if fj.issueCalls != 1 { t.Fatalf("empty result must still be cached, got %d calls", fj.issueCalls) }
}
