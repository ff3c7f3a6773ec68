/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/adapters/jira"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/adapters/openai"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/adapters/telegram"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/adapters/tempo"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/config"
    httpx "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/http"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/jobs"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/logger"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/repo"
    "github.com/zero-state-studio/jira-worklog-dashboard-sub000/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    // Adapters
    primary := jira.NewClient(cfg.PrimaryName, cfg.PrimaryBaseURL, cfg.PrimaryPAT, cfg.JiraAPIVersion, cfg.HTTPTimeout, log)
    secondary := jira.NewClient(cfg.SecondaryName, cfg.SecondaryBaseURL, cfg.SecondaryPAT, cfg.JiraAPIVersion, cfg.HTTPTimeout, log)
    tp := tempo.NewClient(cfg.TempoBaseURL, cfg.TempoToken, cfg.HTTPTimeout, log)
    llm := openai.NewClient(cfg, log)
    tg := telegram.NewClient(cfg, log)

    // Services
    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, log, repository, primary, secondary, tp, llm, tg)

    // HTTP server (Gin)
    router := httpx.NewRouter(cfg, log, svc)

    // Register Telegram webhook only if PUBLIC_BASE_URL is HTTPS
    if cfg.TelegramWebhookSecret != "" && strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
        go func() {
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second); defer cancel()
            base := strings.TrimRight(cfg.PublicBaseURL, "/")
            webhookURL := base + "/telegram/webhook/" + cfg.TelegramWebhookSecret
            if err := tg.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
                log.Error().Err(err).Str("url", webhookURL).Msg("telegram setWebhook failed")
            } else {
                log.Info().Str("url", webhookURL).Msg("telegram setWebhook ok")
            }
        }()
    }

    // Cron
    cr := jobs.NewCron(cfg, log, svc, repository)
    cr.Start()
    defer cr.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
