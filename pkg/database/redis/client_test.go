package redis

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewClient(&Config{
		Standalone: &NodeConfig{Host: host, Port: port},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{"nil", nil, ErrNilConfig},
		{"no mode", &Config{}, ErrInvalidConfig},
		{"both modes", &Config{
			Standalone: &NodeConfig{Host: "localhost", Port: 6379},
			Cluster:    &ClusterConfig{Addrs: []string{"localhost:7000"}},
		}, ErrInvalidConfig},
		{"standalone without host", &Config{Standalone: &NodeConfig{Port: 6379}}, ErrInvalidConfig},
		{"cluster without addrs", &Config{Cluster: &ClusterConfig{}}, ErrNoClusterAddrs},
		{"standalone", &Config{Standalone: &NodeConfig{Host: "localhost", Port: 6379}}, nil},
		{"cluster", &Config{Cluster: &ClusterConfig{Addrs: []string{"localhost:7000"}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNodeConfig_Addr(t *testing.T) {
	n := &NodeConfig{Host: "172.17.0.1", Port: 7001}
	assert.Equal(t, "172.17.0.1:7001", n.Addr())
}

func TestClient_StandaloneMasters(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	nodes, err := client.Masters(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, mr.Addr(), nodes[0].Addr())
}

func TestNode_ScanAndDBSize(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, mr.Set("user:"+strconv.Itoa(i), "v"))
	}
	mr.HSet("profile:1", "name", "x")

	nodes, err := client.Masters(ctx)
	require.NoError(t, err)
	node := nodes[0]

	size, err := node.DBSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	var keys []string
	var cursor uint64
	for {
		res, err := node.Scan(ctx, ScanArgs{Cursor: cursor, Match: "user:*", Count: 2})
		require.NoError(t, err)
		keys = append(keys, res.Keys...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	assert.Len(t, keys, 5)

	res, err := node.Scan(ctx, ScanArgs{Count: 100, Type: "hash"})
	require.NoError(t, err)
	assert.Equal(t, []string{"profile:1"}, res.Keys)
}

func TestNode_ExecPerCommandResults(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))

	nodes, err := client.Masters(ctx)
	require.NoError(t, err)

	results, err := nodes[0].Exec(ctx, [][]interface{}{
		{"DEL", "a"},
		{"UNLINK", "b"},
		{"DEL", "missing"},
		{"NOSUCHCOMMAND", "x"},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, int64(1), results[0].Val)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, int64(0), results[2].Val)
	assert.Error(t, results[3].Err)

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestNode_ExecEmpty(t *testing.T) {
	client, _ := newTestClient(t)
	nodes, err := client.Masters(context.Background())
	require.NoError(t, err)

	results, err := nodes[0].Exec(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_Publish(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe("bulk-actions:1")

	require.NoError(t, client.Publish(ctx, "bulk-actions:1", "hello"))

	msg := <-sub.Messages()
	assert.Equal(t, "bulk-actions:1", msg.Channel)
	assert.Equal(t, "hello", msg.Message)
}
