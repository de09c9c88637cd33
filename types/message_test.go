package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Normalize(t *testing.T) {
	tests := []struct {
		in   Role
		want Role
	}{
		{"user", RoleUser},
		{" User ", RoleUser},
		{"assistant", RoleAssistant},
		{"model", RoleAssistant},
		{"MODEL", RoleAssistant},
		{"system", "system"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize(), string(tt.in))
	}
}

func TestRole_Speaker(t *testing.T) {
	assert.Equal(t, "User", RoleUser.Speaker())
	assert.Equal(t, "Assistant", RoleModel.Speaker())
	assert.Equal(t, "Assistant", RoleAssistant.Speaker())
	assert.Equal(t, "User", Role("other").Speaker())
}

func TestContentPart_JSON(t *testing.T) {
	turn := ConversationTurn{
		Role:  RoleModel,
		Parts: []ContentPart{TextPart("hi"), ImagePart("data:image/png;base64,AAAA")},
	}

	data, err := json.Marshal(turn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"model","parts":[{"text":"hi"},{"image":"data:image/png;base64,AAAA"}]}`, string(data))

	assert.True(t, turn.Parts[0].IsText())
	assert.False(t, turn.Parts[1].IsText())
}

func TestNewTextTurn(t *testing.T) {
	turn := NewTextTurn(RoleUser, "")
	require.Len(t, turn.Parts, 1)
	require.NotNil(t, turn.Parts[0].Text)
	assert.Equal(t, "", *turn.Parts[0].Text)
}
