// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果。
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation  string `json:"operation"`
	ResourceID string `json:"resource_id"`
	Actor      string `json:"actor,omitempty"`
	Result     string `json:"result"`
	Timestamp  string `json:"timestamp"`
}

// WriteAuditLog は監査ログを出力する。認証済みの場合は操作者も記録する。
func WriteAuditLog(ctx context.Context, operation string, resourceID string, result string) {
	entry := AuditLog{
		Operation:  operation,
		ResourceID: resourceID,
		Result:     result,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if user, ok := UserFromContext(ctx); ok {
		entry.Actor = user.Email
	}

	slog.InfoContext(ctx, "clinic operation completed",
		"operation", entry.Operation,
		"resource_id", entry.ResourceID,
		"actor", entry.Actor,
		"result", entry.Result,
		"timestamp", entry.Timestamp,
	)
}
