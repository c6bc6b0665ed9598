package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rafal-wq/banking-app/internal/core/notifications"
)

const (
	pollInterval = 5 * time.Second
	maxAttempts  = 5
)

// StartNotificationWorker runs the mail delivery loop in the background
// until ctx is cancelled. Jobs come off the notification_jobs table one at
// a time with SKIP LOCKED, so several API instances can share the queue
// without double-sending.
func StartNotificationWorker(ctx context.Context, db *pgxpool.Pool, gatewayURL string) {
	go func() {
		slog.Info("notification worker started", "gateway", gatewayURL)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("notification worker stopped")
				return
			case <-ticker.C:
				processJob(ctx, db, gatewayURL)
			}
		}
	}()
}

func processJob(ctx context.Context, db *pgxpool.Pool, gatewayURL string) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return
	}
	defer tx.Rollback(ctx)

	var (
		id        string
		recipient string
		payload   []byte
		attempts  int
	)
	err = tx.QueryRow(ctx, `
		SELECT id, recipient, payload, attempts
		FROM notification_jobs
		WHERE status = 'pending' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`).Scan(&id, &recipient, &payload, &attempts)
	if err != nil {
		// Empty queue is the common case.
		return
	}

	sendErr := notifications.Send(gatewayURL, payload)
	if sendErr != nil {
		attempts++
		if attempts >= maxAttempts {
			_, err = tx.Exec(ctx, `UPDATE notification_jobs SET status = 'failed', attempts = $2 WHERE id = $1`, id, attempts)
			slog.Error("notification job gave up", "job_id", id, "recipient", recipient, "error", sendErr)
		} else {
			nextRun := time.Now().Add(time.Duration(attempts*10) * time.Second)
			_, err = tx.Exec(ctx, `UPDATE notification_jobs SET attempts = $2, next_run_at = $3 WHERE id = $1`, id, attempts, nextRun)
			slog.Warn("notification send failed, retry scheduled",
				"job_id", id, "attempts", attempts, "next_run", nextRun, "error", sendErr)
		}
	} else {
		_, err = tx.Exec(ctx, `UPDATE notification_jobs SET status = 'sent' WHERE id = $1`, id)
		slog.Info("notification sent", "job_id", id, "recipient", recipient)
	}
	if err != nil {
		slog.Error("notification job update failed", "job_id", id, "error", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		slog.Error("notification job commit failed", "job_id", id, "error", err)
	}
}
