package mqtt

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (in *inbox) add(topic string, payload []byte) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.msgs[topic] = append(in.msgs[topic], append([]byte(nil), payload...))
}

func (in *inbox) get(topic string) [][]byte {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([][]byte(nil), in.msgs[topic]...)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startBroker levanta un broker en proceso y registra todo lo publicado
func startBroker(t *testing.T) (string, *inbox) {
	t.Helper()
	addr := freeAddr(t)

	broker := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, broker.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "t1",
		Address: addr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })

	in := &inbox{msgs: make(map[string][][]byte)}
	require.NoError(t, broker.Subscribe("wearer/#", 1, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		in.add(pk.TopicName, pk.Payload)
	}))
	return "tcp://" + addr, in
}

func mqttConfig(broker string) config.MQTTConfig {
	cfg := config.Default().WithDeviceID("W1").MQTT
	cfg.Enabled = true
	cfg.Broker = broker
	cfg.QoS = 0
	cfg.PublishInterval = 60
	return cfg
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestPublisherSendsChangesAndAnomalies(t *testing.T) {
	broker, in := startBroker(t)
	bus := eventbus.NewEventBus()

	p := NewPublisher(mqttConfig(broker), "W1", bus, nil)
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool {
		return len(in.get("wearer/W1/status")) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "online", decode(t, in.get("wearer/W1/status")[0])["status"])

	walking := har.ActivityState{Activity: har.ActivityWalking, Confidence: 0.7, IsActive: true, Timestamp: at}
	bus.Publish(eventbus.Event{Type: eventbus.EventActivity, Data: walking})
	require.Eventually(t, func() bool {
		return len(in.get("wearer/W1/activity")) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// misma etiqueta: se espera al intervalo periódico
	bus.Publish(eventbus.Event{Type: eventbus.EventActivity, Data: walking})
	bus.Publish(eventbus.Event{Type: eventbus.EventAnomaly, Data: suddenStop()})
	require.Eventually(t, func() bool {
		return len(in.get("wearer/W1/anomaly")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, in.get("wearer/W1/activity"), 1)

	act := decode(t, in.get("wearer/W1/activity")[0])
	assert.Equal(t, "WALKING", act["activity"])
	anomaly := decode(t, in.get("wearer/W1/anomaly")[0])
	assert.Equal(t, "SUDDEN_STOP", anomaly["type"])

	p.Stop()
	require.Eventually(t, func() bool {
		msgs := in.get("wearer/W1/status")
		return len(msgs) >= 2 && decode(t, msgs[len(msgs)-1])["status"] == "offline"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPublisherDisabled(t *testing.T) {
	cfg := config.Default().MQTT
	cfg.Enabled = false

	p := NewPublisher(cfg, "W1", eventbus.NewEventBus(), nil)
	assert.NoError(t, p.Start())
	p.Stop()
	assert.Zero(t, p.Published())
}
