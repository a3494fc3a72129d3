//go:build integration

package requestlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"citebroker/internal/platform/config"
	"citebroker/internal/platform/kafka"
	"citebroker/pkg/testutil/containers"
)

func TestKafkaPublisherRedpanda(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const topic = "citebroker.requests.test"
	client, err := kafka.New(ctx, config.KafkaConfig{Brokers: rp.Brokers, RequestLogTopic: topic, ClientID: "citebroker-test"})
	require.NoError(t, err)
	defer client.Close()

	s := summary()
	require.NoError(t, NewKafkaPublisher(client, topic).Publish(ctx, s))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &decoded))
	assert.Equal(t, s.RequestID, decoded["request_id"])
	assert.Equal(t, s.RequestID, string(records[0].Key))
}
