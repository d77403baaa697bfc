package cursor

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"172.17.0.1:7001@22", true},
		{"172.17.0.1:7001@-1||172.17.0.1:7002@33", true},
		{"localhost:6379@0", true},
		{"172.17.0.1:7001@22||", false},
		{"||172.17.0.1:7001@22", false},
		{"172.17.0.1:7001@22||||172.17.0.1:7002@33", false},
		{"172.17.0.1:7001", false},
		{"172.17.0.1@22", false},
		{"Host:7001@22", false},
		{"172.17.0.1:7001@1a", false},
		{"172.17.0.1:7001@--1", false},
		{"172.17.0.1:7001@-1||bad", false},
		{"172.17.0.1:7001@22|172.17.0.1:7002@33", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.input); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	positions, err := Decode("172.17.0.1:7001@-1||172.17.0.1:7002@33||172.17.0.1:7003@0")
	require.NoError(t, err)
	assert.Equal(t, []NodePosition{
		{Host: "172.17.0.1", Port: 7002, Cursor: 33},
		{Host: "172.17.0.1", Port: 7003, Cursor: 0},
	}, positions)
}

func TestDecode_Empty(t *testing.T) {
	positions, err := Decode("")
	require.NoError(t, err)
	assert.NotNil(t, positions)
	assert.Empty(t, positions)
}

func TestDecode_AllExhausted(t *testing.T) {
	positions, err := Decode("172.17.0.1:7001@-1||172.17.0.1:7002@-1")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestDecode_Malformed(t *testing.T) {
	inputs := []string{
		"172.17.0.1:7001@-1||bad",
		"172.17.0.1:7001@5||",
		"bad",
		"172.17.0.1:99999999999999999999@1",
		"172.17.0.1:7001@99999999999999999999",
	}

	for _, input := range inputs {
		positions, err := Decode(input)
		assert.Nil(t, positions, input)

		var fe *FormatError
		require.True(t, errors.As(err, &fe), input)
		assert.Equal(t, input, fe.Input)
		assert.True(t, errors.Is(err, ErrInvalidFormat), input)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		positions []NodePosition
		want      string
	}{
		{"nil", nil, ""},
		{"single", []NodePosition{{Host: "localhost", Port: 6379, Cursor: 12345}}, "localhost:6379@12345"},
		{"not started", []NodePosition{{Host: "10.0.0.1", Port: 7000, Cursor: 0}}, "10.0.0.1:7000@0"},
		{"compaction", []NodePosition{
			{Host: "172.17.0.1", Port: 7001, Cursor: -1},
			{Host: "172.17.0.1", Port: 7002, Cursor: 33},
			{Host: "172.17.0.1", Port: 7003, Cursor: -1},
			{Host: "172.17.0.1", Port: 7004, Cursor: 7},
		}, "172.17.0.1:7002@33||172.17.0.1:7004@7"},
		{"all exhausted", []NodePosition{
			{Host: "172.17.0.1", Port: 7001, Cursor: -1},
			{Host: "172.17.0.1", Port: 7002, Cursor: -1},
		}, ""},
		{"host lowercased", []NodePosition{{Host: "LocalHost", Port: 1, Cursor: 2}}, "localhost:1@2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.positions)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsValid(got))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	positions := []NodePosition{
		{Host: "172.17.0.1", Port: 7001, Cursor: 0},
		{Host: "172.17.0.2", Port: 7002, Cursor: 1 << 40},
		{Host: "redis.local", Port: 6379, Cursor: 98},
	}

	decoded, err := Decode(Encode(positions))
	require.NoError(t, err)
	assert.ElementsMatch(t, positions, decoded)
}

func TestNodePosition_Addr(t *testing.T) {
	assert.Equal(t, "172.17.0.1:7001", NodePosition{Host: "172.17.0.1", Port: 7001}.Addr())
}
