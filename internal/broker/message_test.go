package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))

	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "item",
			msg:  Message{Kind: KindItem, Time: at, APIVersion: "1", Service: "SFX", ItemType: "citation", Item: map[string]any{"doi": "10.1/x"}},
			want: `{"api_ver":"1","citation":{"doi":"10.1/x"},"service":"SFX","time":"2024-03-01T17:00:00Z"}`,
		},
		{
			name: "error",
			msg:  Message{Kind: KindError, Time: at, APIVersion: "1", Service: "SFX", Level: "warning", Text: "slow"},
			want: `{"api_ver":"1","error":{"level":"warning","message":"slow"},"service":"SFX","time":"2024-03-01T17:00:00Z"}`,
		},
		{
			name: "complete",
			msg:  Message{Kind: KindComplete, Time: at, APIVersion: "1", Text: "done"},
			want: `{"api_ver":"1","complete":"done","time":"2024-03-01T17:00:00Z"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}
