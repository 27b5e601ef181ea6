package events

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Topic is the watermill topic (redis stream name) flow events go to.
const Topic = "clarinet.flow"

// Settings selects the transport for flow events.
type Settings struct {
	RedisEnabled bool   `yaml:"redis-enabled"`
	RedisAddr    string `yaml:"redis-addr"`
	Group        string `yaml:"group"`
	Consumer     string `yaml:"consumer"`
}

func DefaultSettings() Settings {
	return Settings{
		RedisAddr: "localhost:6379",
		Group:     "clarinet-ui",
		Consumer:  "ui-1",
	}
}

// Bus publishes flow events and fans them out to named handlers. The in-memory
// transport is a watermill gochannel; with redis enabled every handler gets its
// own consumer group on the stream.
type Bus struct {
	topic         string
	publisher     message.Publisher
	newSubscriber func(ctx context.Context, name string) (message.Subscriber, error)
	logger        watermill.LoggerAdapter

	mu      sync.Mutex
	closers []func() error
	closed  bool
	wg      sync.WaitGroup
}

var _ Sink = &Bus{}

// NewInMemoryBus returns a bus backed by a gochannel pub/sub.
func NewInMemoryBus() *Bus {
	logger := NewWatermillLogger(log.Logger)
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	b := &Bus{
		topic:     Topic,
		publisher: ch,
		logger:    logger,
		newSubscriber: func(context.Context, string) (message.Subscriber, error) {
			return ch, nil
		},
	}
	b.closers = append(b.closers, ch.Close)
	return b
}

// NewBus builds the bus described by s. A disabled redis transport yields NewInMemoryBus.
func NewBus(ctx context.Context, s Settings) (*Bus, error) {
	if !s.RedisEnabled {
		return NewInMemoryBus(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "event bus: ping redis %s", s.RedisAddr)
	}
	marshaler := rstream.DefaultMarshallerUnmarshaller{}
	logger := NewWatermillLogger(log.Logger)

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "event bus: redis publisher")
	}

	b := &Bus{
		topic:     Topic,
		publisher: pub,
		logger:    logger,
	}
	b.newSubscriber = func(ctx context.Context, name string) (message.Subscriber, error) {
		group := s.Group + "-" + name
		if err := ensureGroupAtTail(ctx, client, Topic, group); err != nil {
			return nil, err
		}
		sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
			Client:        client,
			Unmarshaller:  marshaler,
			ConsumerGroup: group,
			Consumer:      s.Consumer,
		}, logger)
		if err != nil {
			return nil, errors.Wrap(err, "event bus: redis subscriber")
		}
		b.addCloser(sub.Close)
		return sub, nil
	}
	b.closers = append(b.closers, pub.Close, client.Close)
	return b, nil
}

// ensureGroupAtTail creates the consumer group at $ so a fresh handler does not replay old flows.
func ensureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "event bus: create consumer group %s", group)
	}
	log.Debug().Str("stream", stream).Str("group", group).Msg("created redis consumer group at tail")
	return nil
}

func (b *Bus) addCloser(f func() error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closers = append(b.closers, f)
}

// PublishEvent implements Sink.
func (b *Bus) PublishEvent(e Event) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.New("event bus: closed")
	}
	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", string(e.Type))
	return errors.Wrap(b.publisher.Publish(b.topic, msg), "event bus: publish")
}

// Subscribe returns the raw message channel for a named consumer. Callers must
// Ack every message.
func (b *Bus) Subscribe(ctx context.Context, name string) (<-chan *message.Message, error) {
	sub, err := b.newSubscriber(ctx, name)
	if err != nil {
		return nil, err
	}
	ch, err := sub.Subscribe(ctx, b.topic)
	return ch, errors.Wrap(err, "event bus: subscribe")
}

// MaxHandlerAttempts bounds redelivery of an event whose handler keeps failing.
const MaxHandlerAttempts = 3

// Handle runs h for every event until ctx is done or the bus is closed.
// A message is acked once h succeeds. A failing handler nacks it for
// redelivery up to MaxHandlerAttempts times, after which the event is dropped.
func (b *Bus) Handle(ctx context.Context, name string, h func(ctx context.Context, e Event) error) error {
	ch, err := b.Subscribe(ctx, name)
	if err != nil {
		return err
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		attempts := map[string]int{}
		for msg := range ch {
			e, err := Decode(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Str("handler", name).Msg("dropping undecodable flow event")
				msg.Ack()
				continue
			}
			if err := h(msg.Context(), e); err != nil {
				attempts[msg.UUID]++
				n := attempts[msg.UUID]
				if n < MaxHandlerAttempts {
					log.Warn().Err(err).Str("handler", name).Str("type", string(e.Type)).Int("attempt", n).Msg("flow event handler failed, redelivering")
					msg.Nack()
					continue
				}
				log.Error().Err(err).Str("handler", name).Str("type", string(e.Type)).Int("attempt", n).Msg("flow event handler failed, dropping event")
			}
			delete(attempts, msg.UUID)
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts down the transport and waits for handlers to drain.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	closers := b.closers
	b.mu.Unlock()

	var firstErr error
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.wg.Wait()
	return errors.Wrap(firstErr, "event bus: close")
}
