/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/rs/zerolog"
)

// Client talks to one Jira instance. The reconciler runs two of these, one
// per side.
type Client struct {
    name    string
    baseURL string
    token   string
    http    *http.Client
    log     zerolog.Logger
    apiVer  string
}

func NewClient(name, baseURL, pat, apiVer string, timeout time.Duration, log zerolog.Logger) *Client {
    return &Client{
        name:    name,
        baseURL: baseURL,
        token:   pat,
        http:    &http.Client{Timeout: timeout},
        log:     log,
        apiVer:  apiVer,
    }
}

func (c *Client) Name() string { return c.name }

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if q != nil && len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        // a fresh reader per attempt: a retried POST must resend the body
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" { req.Header.Set("Authorization", "Bearer "+c.token) }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                resp.Body.Close()
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira %s status=%d body=%s", c.name, resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira %s status=%d body=%s", c.name, resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                err := json.NewDecoder(resp.Body).Decode(&out)
                resp.Body.Close()
                if err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

func (c *Client) Search(ctx context.Context, jql string, startAt, max int) (any, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        q.Set("fields", "summary,issuetype,parent,project")
        u := c.apiURL("/rest/api/2/search", q)
        return c.doJSON(ctx, http.MethodGet, u, nil)
    }
    // default to v3
    body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max}
    u := c.apiURL("/rest/api/3/search", url.Values{"fields": []string{"summary,issuetype,parent,project"}})
    return c.doJSON(ctx, http.MethodPost, u, body)
}

// Issue fetches one issue; the parent field carries the Epic/Project link the
// grouper keys on.
func (c *Client) Issue(ctx context.Context, key string) (any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    q.Set("fields", "summary,issuetype,parent,project")
    path := "/rest/api/3/issue/" + url.PathEscape(key)
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) }
    u := c.apiURL(path, q)
    return c.doJSON(ctx, http.MethodGet, u, nil)
}

func (c *Client) Worklogs(ctx context.Context, key string, startAt, max int) (any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    path := "/rest/api/3/issue/" + url.PathEscape(key) + "/worklog"
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) + "/worklog" }
    u := c.apiURL(path, q)
    return c.doJSON(ctx, http.MethodGet, u, nil)
}
