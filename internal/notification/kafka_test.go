package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	require.NoError(t, p.PublishRegistrationConfirmed(context.Background(), confirmed()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u-1", string(w.msgs[0].Key))

	var got RegistrationConfirmed
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, confirmed(), got)

	w.err = errors.New("broker unreachable")
	assert.ErrorIs(t, p.PublishRegistrationConfirmed(context.Background(), confirmed()), w.err)
}

func TestConsumerCommitsEveryMessage(t *testing.T) {
	good, _ := json.Marshal(confirmed())
	failing := confirmed()
	failing.UserID = "u-fail"
	bad, _ := json.Marshal(failing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: good},
			{Offset: 2, Value: []byte("{not json")},
			{Offset: 3, Value: bad},
		},
		cancel: cancel,
	}

	var handled []string
	c := &Consumer{
		reader: reader,
		handler: func(_ context.Context, msg RegistrationConfirmed) error {
			handled = append(handled, msg.UserID)
			if msg.UserID == "u-fail" {
				return errors.New("db down")
			}
			return nil
		},
		logger: zap.NewNop(),
	}

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, []string{"u-1", "u-fail"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishRegistrationConfirmed(context.Background(), confirmed()))
}
