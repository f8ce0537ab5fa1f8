/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/log/logtest"
)

func TestContextHelpers(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		ctx := context.Background()
		require.Empty(t, GetRequestTypeFromContext(ctx))
		require.Empty(t, GetRequestIDFromContext(ctx))
		require.False(t, GetIdempotentHintFromContext(ctx))
		require.Nil(t, GetLoggerFromContext(ctx))
	})

	t.Run("filled context", func(t *testing.T) {
		logger := logtest.NewRecorder()
		ctx := NewContextWithRequestType(context.Background(), "crpt.createDocument")
		ctx = NewContextWithRequestID(ctx, "req-1")
		ctx = NewContextWithIdempotentHint(ctx, true)
		ctx = NewContextWithLogger(ctx, logger)

		require.Equal(t, "crpt.createDocument", GetRequestTypeFromContext(ctx))
		require.Equal(t, "req-1", GetRequestIDFromContext(ctx))
		require.True(t, GetIdempotentHintFromContext(ctx))
		require.Same(t, logger, GetLoggerFromContext(ctx))
	})
}
