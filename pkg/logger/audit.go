package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventRegister             = "register"
	EventLogin                = "login"
	EventRefresh              = "token_refresh"
	EventOAuthLogin           = "oauth_login"
	EventPasswordResetRequest = "password_reset_request"
	EventPasswordReset        = "password_reset"
	EventLogout               = "logout"
	EventLogoutAll            = "logout_all"
	EventRoleChange           = "role_change"
	EventActivationChange     = "activation_change"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string // masked before it is written
	Provider      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

type clientKey struct{}

type client struct {
	ip        string
	userAgent string
}

// WithClient attaches the caller's address and user agent to ctx. Audit events
// logged with the returned context carry them unless set explicitly.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: ip, userAgent: userAgent})
}

func (e AuditEvent) withClient(ctx context.Context) AuditEvent {
	c, ok := ctx.Value(clientKey{}).(client)
	if !ok {
		return e
	}
	if e.IPAddress == "" {
		e.IPAddress = c.ip
	}
	if e.UserAgent == "" {
		e.UserAgent = c.userAgent
	}
	return e
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts (login, refresh, oauth, reset)
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	event = event.withClient(ctx)
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = append(attrs, event.optionalAttrs()...)

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAccountAction logs changes made to an account (role, activation, logout)
func (al *AuditLogger) LogAccountAction(ctx context.Context, event AuditEvent) {
	event = event.withClient(ctx)
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = append(attrs, event.optionalAttrs()...)

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func (e AuditEvent) optionalAttrs() []slog.Attr {
	var attrs []slog.Attr

	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(e.Email)))
	}
	if e.Provider != "" {
		attrs = append(attrs, slog.String("provider", e.Provider))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", e.IPAddress))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}
	if e.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", e.FailureReason))
	}
	for key, val := range e.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	return attrs
}
