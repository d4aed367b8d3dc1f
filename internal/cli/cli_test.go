package cli

import (
	"coder_edu_sync/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "agent"}, names)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "configs", flag.DefValue)
}

func TestApplyAgentFlags(t *testing.T) {
	cmd := NewAgentCommand(&RootOptions{})
	require.NoError(t, cmd.Flags().Parse([]string{"--online", "--listen", "127.0.0.1:9999"}))

	// flag 绑定在命令内部的 AgentOptions 上
	online, err := cmd.Flags().GetBool("online")
	require.NoError(t, err)
	listen, err := cmd.Flags().GetString("listen")
	require.NoError(t, err)

	cfg := &config.Config{Agent: config.AgentConfig{Listen: "127.0.0.1:8787", ServerURL: "http://gw"}}
	applyAgentFlags(cfg, &AgentOptions{Online: online, Listen: listen}, cmd)

	assert.True(t, cfg.Agent.StartOnline)
	assert.Equal(t, "127.0.0.1:9999", cfg.Agent.Listen)
	assert.Equal(t, "http://gw", cfg.Agent.ServerURL)
}

func TestApplyAgentFlagsLeavesConfigWhenUnset(t *testing.T) {
	cmd := NewAgentCommand(&RootOptions{})
	require.NoError(t, cmd.Flags().Parse(nil))

	cfg := &config.Config{Agent: config.AgentConfig{StartOnline: true}}
	applyAgentFlags(cfg, &AgentOptions{}, cmd)
	assert.True(t, cfg.Agent.StartOnline)
}
