package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInit(t *testing.T) {
	env, err := Parse([]byte(`{"type":"init","code":"x=1","users":["user_a"]}`))
	require.NoError(t, err)
	assert.Equal(t, TypeInit, env.Type)
	assert.Equal(t, "x=1", env.Code)
	assert.Equal(t, []string{"user_a"}, env.Users)
}

func TestParseCodeUpdate(t *testing.T) {
	env, err := Parse([]byte(`{"type":"code_update","code":"x=1","userId":"user_b"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeCodeUpdate, env.Type)
	assert.Equal(t, "user_b", env.UserID)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing type", `{"code":"x"}`},
		{"unknown type", `{"type":"cursor_move"}`},
		{"code_update without author", `{"type":"code_update","code":"x"}`},
		{"code_change without author", `{"type":"code_change","code":"x"}`},
		{"user_joined without roster", `{"type":"user_joined","userId":"u"}`},
		{"init without roster", `{"type":"init","code":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestInitWithEmptyRosterIsValid(t *testing.T) {
	// An empty room still sends users: [] to the joiner.
	env, err := Parse([]byte(`{"type":"init","code":"","users":[]}`))
	require.NoError(t, err)
	assert.Empty(t, env.Users)
	assert.NotNil(t, env.Users)
}

func TestCodeChangeRoundTrip(t *testing.T) {
	out := NewCodeChange("def f():", "user_a")
	data, err := out.Marshal()
	require.NoError(t, err)

	in, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, out, in)
}

func TestCodeUpdateCarriesTimestamp(t *testing.T) {
	env := NewCodeUpdate("x=1", "user_a")
	assert.NotEmpty(t, env.Timestamp)
	require.NoError(t, env.Validate())
}
