package util_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger/internal/util"
)

func TestLogFromContextFallback(t *testing.T) {
	l := util.LogFromContext(context.Background())
	require.NotNil(t, l)
	assert.NotEqual(t, zerolog.Disabled, l.GetLevel())
}

func TestWithAction(t *testing.T) {
	var buf bytes.Buffer
	ctx := util.WithLogger(context.Background(), zerolog.New(&buf))

	ctx, l := util.WithAction(ctx, "settlement", "accept")
	l.Info().Msg("hello")
	util.LogFromContext(ctx).Info().Msg("again")

	out := buf.String()
	assert.Contains(t, out, `"component":"settlement"`)
	assert.Contains(t, out, `"action":"accept"`)
	assert.Contains(t, out, `"trace_id":"`)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestConfigureGlobalLogger(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	util.ConfigureGlobalLogger(zerolog.WarnLevel, false)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
