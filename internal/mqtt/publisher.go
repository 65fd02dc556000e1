package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publica la actividad y las anomalías a MQTT
type Publisher struct {
	config   config.MQTTConfig
	deviceID string
	client   mqtt.Client
	bus      *eventbus.EventBus
	logger   *slog.Logger

	// Estado
	mu            sync.RWMutex
	running       bool
	connected     bool
	lastState     har.ActivityState
	hasState      bool
	lastPublished har.ActivityState
	hasPublished  bool
	sensitivity   float64

	feed *feed
	done chan struct{}
	wg   sync.WaitGroup

	published atomic.Uint64
}

// NewPublisher crea un nuevo publicador MQTT
func NewPublisher(cfg config.MQTTConfig, deviceID string, bus *eventbus.EventBus, logger *slog.Logger) *Publisher {
	return &Publisher{
		config:      cfg,
		deviceID:    deviceID,
		bus:         bus,
		logger:      logging.Component(logger, "mqtt").With(slog.String("device_id", deviceID)),
		sensitivity: har.SensitivityMedium,
	}
}

// Start conecta al broker y empieza a reenviar eventos del bus
func (p *Publisher) Start() error {
	if !p.config.Enabled {
		p.logger.Info("MQTT deshabilitado en la configuración")
		return nil
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	statusTopic := p.config.GetTopic(p.config.Topics.Status, p.deviceID)
	will, err := json.Marshal(statusPayload(p.deviceID, "offline", time.Now()))
	if err != nil {
		return fmt.Errorf("error serializando will: %w", err)
	}

	// Configurar cliente MQTT
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.GetTopic(p.config.ClientID, p.deviceID))

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetBinaryWill(statusTopic, will, p.config.QoS, true)

	// Callbacks
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.client = mqtt.NewClient(opts)

	p.logger.Info("conectando", slog.String("broker", p.config.Broker))

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("error conectando a MQTT: %w", token.Error())
	}

	p.mu.Lock()
	p.running = true
	p.done = make(chan struct{})
	p.feed = subscribe(p.bus, eventbus.EventActivity, eventbus.EventAnomaly, eventbus.EventSensitivity)
	feed, done := p.feed, p.done
	p.mu.Unlock()

	p.wg.Add(1)
	go p.publishLoop(feed, done)

	return nil
}

// Stop publica offline y se desconecta
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	p.feed.close()
	p.mu.Unlock()

	p.wg.Wait()

	if p.client != nil && p.client.IsConnected() {
		p.publishStatus("offline")
		p.client.Disconnect(250)
	}
	p.logger.Info("desconectado", slog.Uint64("published", p.published.Load()))
}

// onConnect callback cuando se conecta
func (p *Publisher) onConnect(client mqtt.Client) {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.logger.Info("conectado")
	p.publishStatus("online")
}

// onConnectionLost callback cuando se pierde conexión
func (p *Publisher) onConnectionLost(client mqtt.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	p.logger.Warn("conexión perdida, reconectando", slog.Any("error", err))
}

// publishLoop reenvía cambios al instante y la instantánea cada intervalo
func (p *Publisher) publishLoop(feed *feed, done <-chan struct{}) {
	defer p.wg.Done()

	interval := time.Duration(p.config.PublishInterval * float64(time.Second))
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-feed.ch(eventbus.EventActivity):
			if !ok {
				return
			}
			if state, ok := ev.Data.(har.ActivityState); ok {
				p.handleActivity(state)
			}

		case ev, ok := <-feed.ch(eventbus.EventAnomaly):
			if !ok {
				return
			}
			if anomaly, ok := ev.Data.(eventbus.AnomalyEvent); ok && p.config.PublishAnomaly {
				topic := p.config.GetTopic(p.config.Topics.Anomaly, p.deviceID)
				p.publish(topic, anomalyPayload(anomaly))
			}

		case ev, ok := <-feed.ch(eventbus.EventSensitivity):
			if !ok {
				return
			}
			if data, ok := ev.Data.(eventbus.SensitivityData); ok {
				p.mu.Lock()
				p.sensitivity = data.Sensitivity
				p.mu.Unlock()
			}

		case <-ticker.C:
			p.publishSnapshot()
		}
	}
}

// handleActivity guarda el estado y lo publica si cambió la etiqueta
func (p *Publisher) handleActivity(state har.ActivityState) {
	p.mu.Lock()
	p.lastState = state
	p.hasState = true
	changed := !p.hasPublished ||
		p.lastPublished.Activity != state.Activity ||
		p.lastPublished.IsActive != state.IsActive
	p.mu.Unlock()

	if changed {
		p.publishActivity(state)
	}
}

// publishSnapshot publica el último estado conocido
func (p *Publisher) publishSnapshot() {
	p.mu.RLock()
	state, ok := p.lastState, p.hasState
	p.mu.RUnlock()

	if ok {
		p.publishActivity(state)
	}
}

func (p *Publisher) publishActivity(state har.ActivityState) {
	if !p.config.PublishActivity {
		return
	}

	p.mu.Lock()
	p.lastPublished = state
	p.hasPublished = true
	sensitivity := p.sensitivity
	p.mu.Unlock()

	topic := p.config.GetTopic(p.config.Topics.Activity, p.deviceID)
	p.publish(topic, activityPayload(p.deviceID, state, sensitivity))
}

// publishStatus publica estado de conexión (retenido)
func (p *Publisher) publishStatus(status string) {
	topic := p.config.GetTopic(p.config.Topics.Status, p.deviceID)
	p.publishWith(topic, statusPayload(p.deviceID, status, time.Now()), true)
}

// publish publica un mensaje MQTT
func (p *Publisher) publish(topic string, payload interface{}) {
	p.publishWith(topic, payload, p.config.Retain)
}

func (p *Publisher) publishWith(topic string, payload interface{}, retain bool) {
	if !p.isConnected() {
		return
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("error codificando JSON", slog.Any("error", err))
		return
	}

	token := p.client.Publish(topic, p.config.QoS, retain, jsonData)
	token.Wait()

	if token.Error() != nil {
		p.logger.Warn("error publicando", slog.String("topic", topic), slog.Any("error", token.Error()))
		return
	}
	p.published.Add(1)
}

// Published retorna el total de mensajes publicados
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// isConnected verifica si está conectado
func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}
