// Package logctx enriches slog records with request- and principal-scoped
// attributes carried in the context, so call sites log plainly and still get
// correlated output.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends context-carried attribute
// groups to every record.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if pd, ok := ctx.Value(principalDataKey{}).(*PrincipalData); ok {
		r.AddAttrs(slog.Group("principal",
			slog.String("issuer", pd.Issuer),
			slog.String("subject", pd.Subject),
			slog.String("app_tid", pd.AppTID),
			slog.String("client_id", pd.ClientID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

// RequestData identifies the inbound request being authenticated.
type RequestData struct {
	RequestID  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type principalDataKey struct{}

// PrincipalData identifies the validated principal. Never put raw token
// material here.
type PrincipalData struct {
	Issuer   string
	Subject  string
	AppTID   string
	ClientID string
}

func WithPrincipalData(ctx context.Context, data *PrincipalData) context.Context {
	return context.WithValue(ctx, principalDataKey{}, data)
}
