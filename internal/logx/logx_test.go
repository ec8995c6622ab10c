package logx

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	require.Same(t, log.Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	logger := log.New(&buf, "[abc12] ", 0)
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Printf("added %q", "Inception")
	require.Equal(t, "[abc12] added \"Inception\"\n", buf.String())
}
