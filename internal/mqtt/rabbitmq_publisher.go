package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPChannel es la parte de *amqp.Channel que usa el publicador
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQPublisher publica alertas y reportes de actividad a RabbitMQ
type RabbitMQPublisher struct {
	config   config.RabbitMQConfig
	deviceID string
	channel  AMQPChannel
	bus      *eventbus.EventBus
	logger   *slog.Logger

	// Estado
	mu          sync.RWMutex
	running     bool
	connected   bool
	lastState   har.ActivityState
	hasState    bool
	sensitivity float64

	feed *feed
	done chan struct{}
	wg   sync.WaitGroup

	alerts atomic.Uint64
}

// NewRabbitMQPublisher crea un nuevo publicador RabbitMQ con canal compartido
func NewRabbitMQPublisher(ch AMQPChannel, cfg config.RabbitMQConfig, deviceID string, bus *eventbus.EventBus, logger *slog.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		config:      cfg,
		deviceID:    deviceID,
		channel:     ch,
		bus:         bus,
		logger:      logging.Component(logger, "rabbitmq").With(slog.String("device_id", deviceID)),
		connected:   true,
		sensitivity: har.SensitivityMedium,
	}
}

// Start inicia el publicador
func (p *RabbitMQPublisher) Start() error {
	if !p.config.Enabled {
		p.logger.Info("RabbitMQ deshabilitado en la configuración")
		return nil
	}
	if p.channel == nil {
		return fmt.Errorf("canal RabbitMQ no inicializado")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.done = make(chan struct{})
	p.feed = subscribe(p.bus, eventbus.EventActivity, eventbus.EventAnomaly, eventbus.EventSensitivity)
	feed, done := p.feed, p.done
	p.mu.Unlock()

	p.wg.Add(1)
	go p.publishLoop(feed, done)

	p.logger.Info("publicador iniciado",
		slog.String("exchange", p.config.Exchange),
		slog.String("exchange_type", p.config.ExchangeType),
	)
	return nil
}

// Stop detiene el publicador
func (p *RabbitMQPublisher) Stop() {
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
	p.logger.Info("publicador detenido", slog.Uint64("alerts", p.alerts.Load()))
}

// publishLoop publica alertas al instante y la actividad periódicamente
func (p *RabbitMQPublisher) publishLoop(feed *feed, done <-chan struct{}) {
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
				p.mu.Lock()
				p.lastState = state
				p.hasState = true
				p.mu.Unlock()
			}

		case ev, ok := <-feed.ch(eventbus.EventAnomaly):
			if !ok {
				return
			}
			if anomaly, ok := ev.Data.(eventbus.AnomalyEvent); ok && p.config.PublishAnomaly {
				if p.publish(p.config.RoutingKeys.Anomaly, anomaly.ID.String(), alertPayload(anomaly)) {
					p.alerts.Add(1)
				}
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
			if p.config.PublishActivity {
				p.publishActivity()
			}
		}
	}
}

// publishActivity publica el último estado conocido
func (p *RabbitMQPublisher) publishActivity() {
	p.mu.RLock()
	if !p.hasState {
		p.mu.RUnlock()
		return
	}
	state := p.lastState
	sensitivity := p.sensitivity
	p.mu.RUnlock()

	p.publish(p.config.RoutingKeys.Activity, "", activityReport(p.deviceID, state, sensitivity))
}

// publish publica un mensaje a RabbitMQ
func (p *RabbitMQPublisher) publish(routingKey, messageID string, payload interface{}) bool {
	if !p.isConnected() {
		return false
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("error codificando JSON", slog.Any("error", err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		p.config.Exchange, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         jsonData,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.logger.Warn("error publicando", slog.String("routing_key", routingKey), slog.Any("error", err))
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
		return false
	}
	return true
}

// Alerts retorna cuántas alertas se publicaron
func (p *RabbitMQPublisher) Alerts() uint64 {
	return p.alerts.Load()
}

// isConnected verifica si está conectado
func (p *RabbitMQPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// ConnectRabbitMQ establece conexión a RabbitMQ y retorna la conexión
func ConnectRabbitMQ(cfg config.RabbitMQConfig) (*amqp.Connection, error) {
	url := fmt.Sprintf(
		"amqp://%s:%s@%s:%d/%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.VHost,
	)

	amqpCfg := amqp.Config{
		Heartbeat: time.Duration(cfg.Heartbeat) * time.Second,
		Locale:    "en_US",
	}
	if cfg.ConnectionTimeout > 0 {
		amqpCfg.Dial = amqp.DefaultDial(time.Duration(cfg.ConnectionTimeout) * time.Second)
	}

	conn, err := amqp.DialConfig(url, amqpCfg)
	if err != nil {
		return nil, fmt.Errorf("error conectando a RabbitMQ: %w", err)
	}

	return conn, nil
}

// OpenChannel abre un canal y declara el exchange
func OpenChannel(conn *amqp.Connection, cfg config.RabbitMQConfig) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("error abriendo canal: %w", err)
	}
	// amq.* es predeclarado por el broker
	if !strings.HasPrefix(cfg.Exchange, "amq.") {
		if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("error declarando exchange %s: %w", cfg.Exchange, err)
		}
	}
	return ch, nil
}
