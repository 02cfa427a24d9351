package subcmd

import (
	"context"
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	mq_config "github.com/temoto/moqu/mq/config"
)

func TestCountErrors(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	c := CountErrors(log)
	log.Infof("not counted")
	log.Warnf("not counted")
	log.Errorf("first")
	log.Error(fmt.Errorf("second"))
	assert.Equal(t, 2.0, testutil.ToFloat64(c))
}

func TestParse(t *testing.T) {
	t.Parallel()
	mods := []Mod{{Name: "server"}, {Name: "client"}}
	m, err := Parse("client", mods)
	require.NoError(t, err)
	assert.Equal(t, "client", m.Name)
	_, err = Parse("", mods)
	assert.Error(t, err)
	_, err = Parse("nope", mods)
	assert.EqualError(t, err, "unknown command='nope'")
}

func TestRequireKey(t *testing.T) {
	t.Setenv(mq.KeyEnv, "")
	_, err := RequireKey(&mq_config.Config{})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	key, err := RequireKey(&mq_config.Config{Key: "000102030405060708090a0b0c0d0e0f"})
	require.NoError(t, err)
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f", key.Hex())
}

func TestServeMetricsDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.WithValue(context.Background(), log2.ContextKey, log2.NewTest(t, log2.LDebug))
	stop, err := ServeMetrics(ctx, &mq_config.Config{}, nil)
	require.NoError(t, err)
	stop()
}
