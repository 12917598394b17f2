package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/dmphub-lab/dmphub/internal/core/storage/memory"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func sampleEvent() *Event {
	return NewEvent(ActionUpdate, "DMP#doi.org/10.80030/ab12cd34", "VERSION#latest", "dmptool",
		map[string][]string{"is_cited_by": {"https://doi.org/10.1234/paper"}}, false)
}

func TestEvent_EncodeDecode(t *testing.T) {
	e := sampleEvent()
	require.NotEmpty(t, e.EventID)

	b, err := e.Encode()
	require.NoError(t, err)
	require.Contains(t, string(b), `"updater_is_owner":false`)
	require.Contains(t, string(b), `"related_links":{"is_cited_by"`)

	got, err := DecodeEvent(b)
	require.NoError(t, err)
	require.Equal(t, e.PartitionKey, got.PartitionKey)
	require.Equal(t, e.RelatedLinks, got.RelatedLinks)
	require.True(t, e.OccurredAt.Equal(got.OccurredAt))
}

func TestNewEvent_EmptyRelatedLinksIsAnObject(t *testing.T) {
	b, err := NewEvent(ActionCreate, "pk", "sk", "dmptool", nil, true).Encode()
	require.NoError(t, err)
	require.Contains(t, string(b), `"related_links":{}`)
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func TestRedisPublisher(t *testing.T) {
	stream := &fakeStream{}
	p := NewRedisPublisher(stream, RedisConfig{MaxLen: 1000})

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, stream.args, 1)
	require.Equal(t, "dmphub:changes", stream.args[0].Stream)
	require.True(t, stream.args[0].Approx)
	values := stream.args[0].Values.(map[string]interface{})
	require.Equal(t, "update", values["action"])

	stream.err = errors.New("READONLY")
	require.ErrorContains(t, p.Publish(context.Background(), sampleEvent()), "READONLY")
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var out kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func TestKafkaPublisher(t *testing.T) {
	producer := &fakeProducer{}
	p := NewKafkaPublisher(producer, "dmphub.changes")

	e := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, producer.records, 1)
	require.Equal(t, "dmphub.changes", producer.records[0].Topic)
	require.Equal(t, e.PartitionKey, string(producer.records[0].Key))

	producer.err = errors.New("not leader")
	require.ErrorContains(t, p.Publish(context.Background(), e), "not leader")
}

type flakySink struct {
	failOn    map[string]bool
	published []*Event
}

func (s *flakySink) Publish(ctx context.Context, e *Event) error {
	if s.failOn[e.EventID] {
		return errors.New("sink unavailable")
	}
	s.published = append(s.published, e)
	return nil
}

func TestRelay_AtLeastOnce(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutbox()
	pub := NewOutboxPublisher(outbox)

	events := []*Event{sampleEvent(), sampleEvent(), sampleEvent()}
	for _, e := range events {
		require.NoError(t, pub.Publish(ctx, e))
	}
	// Duplicate appends are ignored.
	require.NoError(t, pub.Publish(ctx, events[0]))

	sink := &flakySink{failOn: map[string]bool{events[1].EventID: true}}
	var failures int
	relay := NewRelay(outbox, sink, RelayOptions{Name: "test", BatchSize: 10})
	relay.OnFailure = func(*Event, error) { failures++ }

	relayed, complete, err := relay.RunBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, relayed)
	require.False(t, complete)
	require.Equal(t, 1, failures)

	cursor, err := outbox.ReadCheckpoint(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, int64(1), cursor)

	delete(sink.failOn, events[1].EventID)
	relay.Drain(ctx)

	require.Len(t, sink.published, 3)
	for i, e := range events {
		require.Equal(t, e.EventID, sink.published[i].EventID)
	}

	cursor, err = outbox.ReadCheckpoint(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, int64(3), cursor)
}

func TestRelay_StopsOnCancel(t *testing.T) {
	outbox := memory.NewOutbox()
	require.NoError(t, NewOutboxPublisher(outbox).Publish(context.Background(), sampleEvent()))
	sink := &flakySink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, NewRelay(outbox, sink, RelayOptions{}).Start(ctx))
	// The final drain runs on a fresh context.
	require.Len(t, sink.published, 1)
}

func TestLogPublisher(t *testing.T) {
	require.NoError(t, NewLogPublisher(nil).Publish(context.Background(), sampleEvent()))
}
