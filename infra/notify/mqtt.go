package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/monitoring"
)

const defaultTopicPrefix = "fieldops/notify"

// Config defines the connection parameters for the MQTT notifier.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	Retain      bool            `json:"retain"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// SetDefaults fills the retry settings and topic prefix.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = defaultTopicPrefix
	}
	if c.ClientID == "" {
		c.ClientID = "fieldops-notifier"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// pahoClient is the subset of paho.Client used by the notifier.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// StaffMessage is published to {prefix}/staff/{staff_id}.
type StaffMessage struct {
	RunID     string             `json:"run_id"`
	Date      string             `json:"date"`
	StaffID   string             `json:"staff_id"`
	Region    string             `json:"region"`
	SubRegion string             `json:"subregion"`
	Clients   []StaffMessageStop `json:"clients"`
	Vehicles  []string           `json:"vehicles,omitempty"`
}

// StaffMessageStop is one client visit in a StaffMessage.
type StaffMessageStop struct {
	ClientID      string `json:"client_id"`
	LocationGroup string `json:"location_group"`
}

// RunMessage is published to {prefix}/runs/{date}.
type RunMessage struct {
	RunID      string          `json:"run_id"`
	Date       string          `json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
	Totals     model.RunTotals `json:"totals"`
	Todos      int             `json:"todos"`
	Uncovered  []string        `json:"uncovered_subregions,omitempty"`
	StaffCount int             `json:"staff_count"`
}

// MQTTNotifier publishes committed run outcomes to an MQTT broker.
type MQTTNotifier struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
	monitor    monitoring.Monitor
}

// NewMQTTNotifier connects to the broker described by cfg.
func NewMQTTNotifier(cfg Config, log logger.Logger) (*MQTTNotifier, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log = log.With("component", "mqtt_notifier")
	n := &MQTTNotifier{
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
		monitor:    monitoring.NopMonitor{},
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	n.cli = c
	return n, nil
}

// SetMonitor configures where exhausted publishes are reported.
func (n *MQTTNotifier) SetMonitor(m monitoring.Monitor) {
	n.monitor = monitoring.OrNop(m)
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Notify publishes one message per assigned staff member followed by the run
// summary. Every message is attempted; the failures are joined.
func (n *MQTTNotifier) Notify(ctx context.Context, ev events.RunCommitted) error {
	date := model.DateKey(ev.Date)
	var errs []error
	for _, msg := range StaffMessages(ev) {
		topic := fmt.Sprintf("%s/staff/%s", n.prefix, msg.StaffID)
		if err := n.publishJSON(ctx, topic, n.qosFor("staff"), msg); err != nil {
			errs = append(errs, err)
		}
	}
	topic := fmt.Sprintf("%s/runs/%s", n.prefix, date)
	if err := n.publishJSON(ctx, topic, n.qosFor("runs"), Summary(ev)); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		n.monitor.CaptureException(err, map[string]string{"module": "notify", "date": date, "run_id": ev.RunID})
	}
	return err
}

func (n *MQTTNotifier) qosFor(kind string) byte {
	if q, ok := n.qos[kind]; ok {
		return q
	}
	return 0
}

func (n *MQTTNotifier) publishJSON(ctx context.Context, topic string, qos byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	var publishErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		token := n.cli.Publish(topic, qos, n.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			n.log.Debugf("published %s", topic)
			return nil
		}
		n.log.Warnf("publish %s attempt %d failed: %v", topic, attempt+1, publishErr)
		if attempt == n.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", topic, ctx.Err())
		case <-time.After(n.backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close gracefully closes the MQTT connection.
func (n *MQTTNotifier) Close() error {
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
	return nil
}

// StaffMessages groups the staff assignments of a run per staff member, in
// staff id order. Each message lists the vehicles covering that subregion.
func StaffMessages(ev events.RunCommitted) []StaffMessage {
	out := ev.Outcome
	vehicles := make(map[string][]string, len(out.SubRegionVehicles))
	for _, sv := range out.SubRegionVehicles {
		vehicles[model.SubRegionKey(sv.Region, sv.SubRegion)] = sv.VehicleIDs
	}
	byStaff := make(map[string]*StaffMessage)
	for _, a := range out.StaffAssignments {
		m, ok := byStaff[a.StaffID]
		if !ok {
			m = &StaffMessage{
				RunID:     ev.RunID,
				Date:      model.DateKey(ev.Date),
				StaffID:   a.StaffID,
				Region:    a.Region,
				SubRegion: a.SubRegion,
				Vehicles:  vehicles[model.SubRegionKey(a.Region, a.SubRegion)],
			}
			byStaff[a.StaffID] = m
		}
		m.Clients = append(m.Clients, StaffMessageStop{ClientID: a.ClientID, LocationGroup: a.LocationGroup})
	}
	ids := make([]string, 0, len(byStaff))
	for id := range byStaff {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	msgs := make([]StaffMessage, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, *byStaff[id])
	}
	return msgs
}

// Summary builds the run summary message.
func Summary(ev events.RunCommitted) RunMessage {
	out := ev.Outcome
	m := RunMessage{
		RunID:      ev.RunID,
		Date:       model.DateKey(ev.Date),
		CreatedAt:  out.CreatedAt.UTC(),
		Totals:     out.Totals,
		Todos:      len(out.Todos),
		StaffCount: len(out.Workloads),
	}
	for _, u := range out.UnassignedSubRegions {
		m.Uncovered = append(m.Uncovered, model.SubRegionKey(u.Region, u.SubRegion))
	}
	return m
}

var _ Notifier = (*MQTTNotifier)(nil)
