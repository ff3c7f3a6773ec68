/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/config"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/domain"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/matching"
)

type service interface {
    SyncWorklogs(ctx context.Context, from, to time.Time) (int, error)
    Reconcile(ctx context.Context, algorithmType string, from, to time.Time) (*domain.ReconReport, error)
    RunWeeklyDigest(ctx context.Context) error
    RunOnDemandReport(ctx context.Context, chatID int64, sinceDays int) error
    SendHelp(ctx context.Context, chatID int64) error
    GetLastRun(ctx context.Context) (any, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Reconcile runs both matching passes over ?from=YYYY-MM-DD&to=YYYY-MM-DD.
// ?algorithm selects the strategy, defaulting to parent linking.
func (h *Handlers) Reconcile(c *gin.Context) {
    from, err := time.Parse("2006-01-02", c.Query("from"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing from"})
        return
    }
    to, err := time.Parse("2006-01-02", c.Query("to"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing to"})
        return
    }
    alg := c.DefaultQuery("algorithm", matching.AlgorithmParentLinking)
    report, err := h.svc.Reconcile(c.Request.Context(), alg, from, to)
    if err != nil {
        if strings.Contains(err.Error(), "unknown algorithm") {
            c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, report)
}

func (h *Handlers) Algorithms(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"algorithms": matching.AvailableAlgorithms()})
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.GetLastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, lr)
}

// SyncNow queues a sync of the requested window, defaulting to the configured
// one. Runs detached from the request to avoid context cancellation.
func (h *Handlers) SyncNow(c *gin.Context) {
    days := h.cfg.SyncWindowDays
    if v := c.Query("days"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { days = n }
    }
    if days <= 0 { days = 7 }
    to := time.Now().UTC()
    from := to.AddDate(0, 0, -days)
    go func() { _, _ = h.svc.SyncWorklogs(context.Background(), from, to) }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued", "from": from, "to": to})
}

func (h *Handlers) TelegramWebhook(c *gin.Context) {
    headerSecret := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
    pathSecret := c.Param("secret")
    // Accept either header secret (preferred) or path secret
    if headerSecret != h.cfg.TelegramWebhookSecret && pathSecret != h.cfg.TelegramWebhookSecret {
        c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
        return
    }
    h.log.Info().Str("ip", c.ClientIP()).Str("ua", c.GetHeader("User-Agent")).Msg("telegram webhook received")

    var upd struct {
        Message *struct {
            Chat struct{ ID int64 `json:"id"` } `json:"chat"`
            Text string `json:"text"`
        } `json:"message"`
    }
    if err := c.ShouldBindJSON(&upd); err == nil && upd.Message != nil {
        chatID := upd.Message.Chat.ID
        text := strings.TrimSpace(upd.Message.Text)
        // accept only configured chats if provided
        allowed := len(h.cfg.TelegramChatIDs) == 0
        if !allowed {
            for _, id := range h.cfg.TelegramChatIDs { if id == chatID { allowed = true; break } }
        }
        if allowed {
            switch {
            case text == "/reconcile":
                go func() { _ = h.svc.RunOnDemandReport(context.Background(), chatID, 0) }()
            case strings.HasPrefix(text, "/reconcile "):
                days := parseDays(strings.TrimPrefix(text, "/reconcile "))
                go func() { _ = h.svc.RunOnDemandReport(context.Background(), chatID, days) }()
            case text == "/start" || text == "/help":
                go func() { _ = h.svc.SendHelp(context.Background(), chatID) }()
            }
        }
    }

    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// parseDays reads "7d" or "7"; zero means "use the configured window".
func parseDays(s string) int {
    s = strings.TrimSuffix(strings.TrimSpace(s), "d")
    n, err := strconv.Atoi(s)
    if err != nil || n <= 0 { return 0 }
    return n
}
