/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/log/logtest"
	"github.com/ssiautomations/website/testutil"
)

func TestProfServer(t *testing.T) {
	addr := testutil.GetLocalAddrWithFreeTCPPort()
	profServer := New(&Config{Enabled: true, Address: addr}, logtest.NewRecorder())
	fatalErr := make(chan error, 1)
	go profServer.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(addr, 3*time.Second))
	defer func() {
		require.NoError(t, profServer.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()

	resp, err := http.Get(profServer.URL + "/debug/pprof/")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, body)
}

func TestProfServer_StopWithoutStart(t *testing.T) {
	profServer := New(&Config{Address: testutil.GetLocalAddrWithFreeTCPPort()}, logtest.NewLogger())
	require.NoError(t, profServer.Stop(true))
}

func TestConfig(t *testing.T) {
	load := func(data string) (*Config, error) {
		cfg := NewConfig()
		err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(data), config.DataTypeYAML, cfg)
		return cfg, err
	}

	cfg, err := load("")
	require.NoError(t, err)
	require.False(t, cfg.Enabled)
	require.Equal(t, DefaultAddress, cfg.Address)

	cfg, err = load("profServer:\n  enabled: true\n  address: 127.0.0.1:7070\n")
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, "127.0.0.1:7070", cfg.Address)

	_, err = load("profServer:\n  enabled: true\n  address: \"\"\n")
	require.EqualError(t, err, "profServer.address: cannot be empty")
}
