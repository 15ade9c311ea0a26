/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgData     string
		expectedCfg *Config
		expectedErr string
	}{
		{
			name: "defaults",
			expectedCfg: &Config{
				Enabled: true,
				Alg:     AlgLeakyBucket,
				Rate:    Rate{Count: 60, Duration: time.Minute},
				Burst:   DefaultBurst,
				MaxKeys: DefaultMaxKeys,
			},
		},
		{
			name: "sliding window",
			cfgData: `
throttle:
  enabled: false
  alg: slidingWindow
  rate: 5/s
  burst: 0
  maxKeys: 100
`,
			expectedCfg: &Config{
				Alg:     AlgSlidingWindow,
				Rate:    Rate{Count: 5, Duration: time.Second},
				MaxKeys: 100,
			},
		},
		{
			name:        "bad rate",
			cfgData:     "throttle:\n  rate: 5 per second\n",
			expectedErr: `throttle.rate: rate "5 per second" must have <count>/<unit> format`,
		},
		{
			name:        "negative burst",
			cfgData:     "throttle:\n  burst: -1\n",
			expectedErr: "throttle.burst: must not be negative",
		},
		{
			name:        "zero keys",
			cfgData:     "throttle:\n  maxKeys: 0\n",
			expectedErr: "throttle.maxKeys: must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			if tt.expectedErr != "" {
				require.EqualError(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg, cfg)
		})
	}
}
