package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestProducerEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "docset-published")

	require.NoError(t, p.Publish(context.Background(), Event{
		Key:   "mimicpp",
		Value: map[string]string{"type": "docset_published", "version": "v7"},
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "mimicpp", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"type":"docset_published","version":"v7"}`, string(w.msgs[0].Value))

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Len(t, w.msgs, 1)
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "analytics")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorIs(t, err, boom)

	err = p.Publish(context.Background(), Event{Key: "k", Value: make(chan int)})
	assert.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"type":"ok"}`)},
			{Offset: 2, Value: []byte(`{"type":"fail"}`)},
			{Offset: 3, Value: []byte(`{"type":"ok"}`)},
		},
		cancel: cancel,
	}
	var seen []string
	c := newConsumer(r, "index-complete", func(_ context.Context, _ []byte, value []byte) error {
		typ, err := PeekType(value)
		require.NoError(t, err)
		seen = append(seen, typ)
		if typ == "fail" {
			return errors.New("handler failed")
		}
		return nil
	})

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []string{"ok", "fail", "ok"}, seen)
	assert.Equal(t, []int64{1, 3}, r.committed)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Docset string `json:"docset"`
	}
	p, err := DecodeJSON[payload]([]byte(`{"docset":"mimicpp"}`))
	require.NoError(t, err)
	assert.Equal(t, "mimicpp", p.Docset)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
	_, err = PeekType([]byte(`nope`))
	assert.Error(t, err)
}
