package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelope(t *testing.T) {
	body, err := encode(SessionCompleted, SessionCompletedPayload{
		SessionID:      "s1",
		AverageScore:   72.4,
		Scores:         []int{80, 90, 0, 70, 100},
		DifficultyPath: []int{3, 4, 5, 4, 5},
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "session.completed", got["type"])
	assert.NotEmpty(t, got["occurredAt"])
	payload := got["payload"].(map[string]any)
	assert.Equal(t, "s1", payload["sessionId"])
	assert.Equal(t, 72.4, payload["averageScore"])
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode("bad", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), SessionStarted, SessionStartedPayload{SessionID: "s1"}))
	require.NoError(t, r.Publish(context.Background(), SessionCompleted, SessionCompletedPayload{SessionID: "s1"}))
	assert.Equal(t, []string{SessionStarted, SessionCompleted}, r.Types())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), SessionStarted, nil))
	assert.NoError(t, p.Close())
}

// TestAMQPPublisher runs against a real broker when DEEPREVIEW_TEST_AMQP_URL
// is set.
func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("DEEPREVIEW_TEST_AMQP_URL")
	if url == "" {
		t.Skip("DEEPREVIEW_TEST_AMQP_URL not set")
	}
	p, err := NewAMQPPublisher(url, "deepreview.test", nil)
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), SessionStarted, SessionStartedPayload{SessionID: "s1"}))
}
