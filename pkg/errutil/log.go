// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package errutil bridges oops errors to slog and to tests.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	return codeString(oopsErr.Code())
}

func codeString(code any) string {
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// LogError logs err at error level. For oops errors the code and context
// are emitted as separate attributes. Extra attrs are appended as given.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, msg, err, attrs...)
}

// LogErrorContext is LogError with a context, so handlers can attach trace IDs.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	out := make([]any, 0, len(attrs)+6)
	if oopsErr, ok := oops.AsOops(err); ok {
		out = append(out, "error", oopsErr.Error())
		if code := codeString(oopsErr.Code()); code != "" {
			out = append(out, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			out = append(out, "context", errCtx)
		}
	} else {
		out = append(out, "error", err)
	}
	out = append(out, attrs...)
	logger.ErrorContext(ctx, msg, out...)
}
