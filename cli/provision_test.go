package cli_test

import (
	"os"
	"strings"
	"testing"

	sampler "github.com/absmach/sampler"
	"github.com/absmach/sampler/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvision(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		nodes string
		err   bool
	}{
		{desc: "four nodes", nodes: "0x10, 0x11,0x12,0x13"},
		{desc: "single node", nodes: "16"},
		{desc: "no nodes", nodes: " , ", err: true},
		{desc: "bad address", nodes: "0x10,zz", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			res, err := cli.Provision(cli.ProvisionOptions{
				Dir:         dir,
				MQTTAddress: "tcp://broker:1883",
				Nodes:       tc.nodes,
				BitsPerNode: 2,
			})
			if tc.err {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)

			cfg, err := sampler.LoadConfig(res.ConfigFile)
			require.NoError(t, err)
			assert.Equal(t, res.Orchestrator.Nodes, cfg.Orchestrator.Nodes)
			assert.Equal(t, 2, cfg.Controller.BitsPerNode)
			assert.Equal(t, cfg.Orchestrator.ChannelID, cfg.Peripheral.ChannelID)
			assert.NotEqual(t, cfg.Orchestrator.ClientID, cfg.Peripheral.ClientID)
			assert.Len(t, res.Peripherals, len(cfg.Orchestrator.Nodes))

			env, err := os.ReadFile(res.EnvFile)
			require.NoError(t, err)
			assert.True(t, strings.Contains(string(env), "ORCHESTRATOR_CLIENT_ID="+cfg.Orchestrator.ClientID))
			assert.True(t, strings.Contains(string(env), "PERIPHERAL_MQTT_ADDRESS=tcp://broker:1883"))
		})
	}
}
