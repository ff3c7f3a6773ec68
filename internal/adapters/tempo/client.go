/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package tempo

import (
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

// Client pulls worklogs from the Tempo Timesheets API. Tempo is the source
// of truth for time logged on the secondary instance by contractors who do
// not log through Jira directly.
type Client struct {
    baseURL string
    token   string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
    return &Client{
        baseURL: baseURL,
        token:   token,
        http:    &http.Client{Timeout: timeout},
        log:     log,
    }
}

func (c *Client) Enabled() bool { return c.baseURL != "" && c.token != "" }

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if q != nil && len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("tempo: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, method, u, nil)
        if err != nil { return nil, err }
        req.Header.Set("Authorization", "Bearer "+c.token)
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                resp.Body.Close()
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("tempo api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("tempo api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                err := json.NewDecoder(resp.Body).Decode(&out)
                resp.Body.Close()
                if err != nil { return nil, err }
                return out, nil
            }
        }
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

// UserWorklogs returns one page of a user's worklogs in [from, to].
// Dates are Tempo's yyyy-mm-dd format.
func (c *Client) UserWorklogs(ctx context.Context, accountID string, from, to time.Time, offset, limit int) (any, error) {
    if accountID == "" { return nil, errors.New("tempo: empty account id") }
    q := url.Values{}
    q.Set("from", from.Format("2006-01-02"))
    q.Set("to", to.Format("2006-01-02"))
    if offset > 0 { q.Set("offset", fmt.Sprint(offset)) }
    if limit > 0 { q.Set("limit", fmt.Sprint(limit)) }
    u := c.apiURL("/4/worklogs/user/"+url.PathEscape(accountID), q)
    return c.doJSON(ctx, http.MethodGet, u)
}
