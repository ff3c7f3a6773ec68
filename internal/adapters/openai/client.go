package openai

import (
    "context"
    "encoding/json"
    "errors"
    "strings"

    "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/rs/zerolog"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/config"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
)

type Client struct {
    api     openai.Client
    model   string
    enabled bool
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    c := &Client{model: cfg.OpenAIModel, log: log}
    if strings.TrimSpace(cfg.OpenAIKey) != "" {
        c.api = openai.NewClient(
            option.WithAPIKey(cfg.OpenAIKey),
            option.WithRequestTimeout(cfg.OpenAITimeout),
        )
        c.enabled = true
    }
    return c
}

func (c *Client) Enabled() bool { return c.enabled }

// Summarize turns a reconciliation report into a short narrative for the
// digest. The digest is still sent without it when the key is missing or the
// call fails.
func (c *Client) Summarize(ctx context.Context, report *domain.ReconReport) (string, error) {
    if !c.enabled { return "", errors.New("openai: missing key") }
    payload, err := json.Marshal(report)
    if err != nil { return "", err }
    resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
        Model: openai.ChatModel(c.model),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.SystemMessage("You are a delivery analyst. Given a cross-instance worklog reconciliation report, produce a concise summary: the largest hour discrepancies, groups worth investigating, and anything that looks like missing time tracking. Plain text, a few short paragraphs."),
            openai.UserMessage(string(payload)),
        },
    })
    if err != nil { return "", err }
    if len(resp.Choices) == 0 { return "", errors.New("openai: no choices") }
    return resp.Choices[0].Message.Content, nil
}
