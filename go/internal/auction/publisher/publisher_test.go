package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJS struct {
	msgs []*nats.Msg
	opts int
	err  error
}

func (f *fakeJS) PublishMsg(_ context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	f.opts = len(opts)
	return &jetstream.PubAck{Stream: "AUCTION_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

func TestHandleEventPublishesEnvelope(t *testing.T) {
	js := &fakeJS{}
	cfg := DefaultJetStreamConfig()
	cfg.AuctionID = "ipl"
	p := &JetStreamPublisher{js: js, config: cfg}

	e := events.New(events.TypeRoundClosed, 9, time.Now(), events.RoundClosedPayload{
		RoundSeq: 9,
		Status:   models.SettlementUnsold,
		Team:     models.NoTeam,
	})
	require.NoError(t, p.HandleEvent(context.Background(), e))

	require.Len(t, js.msgs, 1)
	msg := js.msgs[0]
	assert.Equal(t, "auction.events.ipl.RoundClosed", msg.Subject)
	assert.Equal(t, "RoundClosed", msg.Header.Get("Event-Type"))
	assert.Equal(t, "9", msg.Header.Get("Round-Seq"))
	assert.Equal(t, e.ID.String(), msg.Header.Get("Event-ID"))
	assert.Equal(t, 2, js.opts)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, events.TypeRoundClosed, env.EventType)
	var p2 events.RoundClosedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p2))
	assert.Equal(t, models.SettlementUnsold, p2.Status)
}

func TestHandleEventWrapsPublishError(t *testing.T) {
	boom := errors.New("no responders")
	p := &JetStreamPublisher{js: &fakeJS{err: boom}, config: DefaultJetStreamConfig()}
	err := p.HandleEvent(context.Background(), events.New(events.TypeAuctionReset, 0, time.Now(), events.AuctionResetPayload{}))
	assert.ErrorIs(t, err, boom)
}

func TestStreamConfig(t *testing.T) {
	sc := streamConfig(DefaultJetStreamConfig())
	assert.Equal(t, []string{"auction.events.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, sc))

	other := sc
	other.MaxAge = time.Hour
	assert.False(t, isStreamConfigEqual(sc, other))
}
