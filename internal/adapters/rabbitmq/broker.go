// Package rabbitmq implements the broker ports on top of RabbitMQ (AMQP 0-9-1).
package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/internal/ports"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// AppID is stamped on every published message.
const AppID = "tagrelay"

// Config holds the RabbitMQ connection parameters.
type Config struct {
	Host              string
	Port              int
	VHost             string
	Username          string
	Password          string
	UseSSL            bool
	Exchange          string
	QueueName         string
	RoutingKey        string
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
}

// URL returns the AMQP URL for cfg. Credentials and vhost are escaped.
func (c Config) URL() string {
	scheme := "amqp"
	if c.UseSSL {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.VHost,
	}
	// The default vhost "/" is encoded as "%2F".
	u.RawPath = "/" + url.PathEscape(c.VHost)
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

// RedactedURL returns URL with the password masked, for logs.
func (c Config) RedactedURL() string {
	u, err := url.Parse(c.URL())
	if err != nil {
		return ""
	}
	return u.Redacted()
}

func (c Config) routingKey() string {
	if c.RoutingKey != "" {
		return c.RoutingKey
	}
	return c.QueueName
}

// Dialer implements ports.BrokerDialer.
type Dialer struct {
	cfg    Config
	logger log.Logger
}

// NewDialer creates a dialer for cfg.
func NewDialer(cfg Config, logger log.Logger) *Dialer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// contextDial is amqp.DefaultDial with the TCP connect and the handshake
// bound to ctx. *stop is set to release the handshake hook.
func contextDial(ctx context.Context, timeout time.Duration, stop *func() bool) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		nd := net.Dialer{Timeout: timeout}
		conn, err := nd.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		// amqp clears the deadline once the connection is open.
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		*stop = context.AfterFunc(ctx, func() {
			_ = conn.SetDeadline(time.Now())
		})
		return conn, nil
	}
}

// Dial connects, opens a channel and declares the durable topology.
func (d *Dialer) Dial(ctx context.Context) (ports.BrokerConn, error) {
	timeout := d.cfg.ConnectionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stopCancel func() bool
	amqpCfg := amqp.Config{
		Vhost:     d.cfg.VHost,
		Heartbeat: d.cfg.Heartbeat,
		Locale:    "en_US",
		Dial:      contextDial(ctx, timeout, &stopCancel),
		Properties: amqp.Table{
			"connection_name": AppID,
		},
	}
	if d.cfg.UseSSL {
		amqpCfg.TLSClientConfig = &tls.Config{
			ServerName:         d.cfg.Host,
			InsecureSkipVerify: true,
		}
	}

	d.logger.Debug("dialing broker", log.String("url", d.cfg.RedactedURL()))

	conn, err := amqp.DialConfig(d.cfg.URL(), amqpCfg)
	interrupted := stopCancel != nil && !stopCancel()
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", d.cfg.Host, d.cfg.Port, err)
	}
	if interrupted {
		// ctx fired during the handshake and cut the socket deadline.
		_ = conn.Close()
		return nil, fmt.Errorf("dial %s:%d: %w", d.cfg.Host, d.cfg.Port, ctx.Err())
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, d.cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Conn{
		conn:     conn,
		ch:       ch,
		closed:   conn.NotifyClose(make(chan *amqp.Error, 1)),
		exchange: d.cfg.Exchange,
		key:      d.cfg.routingKey(),
	}, nil
}

func declare(ch *amqp.Channel, cfg Config) error {
	_, err := ch.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	if cfg.Exchange == "" {
		return nil
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.QueueBind(cfg.QueueName, cfg.routingKey(), cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", cfg.QueueName, cfg.Exchange, err)
	}
	return nil
}

// Conn implements ports.BrokerConn over one connection and channel.
type Conn struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	closed   chan *amqp.Error
	exchange string
	key      string
}

// Alive reports an error when the connection or channel has gone away.
func (c *Conn) Alive() error {
	select {
	case amqpErr, ok := <-c.closed:
		if ok && amqpErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrNotConnected, amqpErr)
		}
		return domain.ErrNotConnected
	default:
	}
	if c.conn.IsClosed() || c.ch.IsClosed() {
		return domain.ErrNotConnected
	}
	return nil
}

// Publish sends p as a persistent JSON message.
func (c *Conn) Publish(ctx context.Context, p ports.Publishing) error {
	err := c.ch.PublishWithContext(
		ctx,
		c.exchange,
		c.key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    p.MessageID,
			Timestamp:    p.Timestamp,
			AppId:        AppID,
			Body:         p.Body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.MessageID, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	var errs []error
	if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
