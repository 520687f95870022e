package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	Debug     bool   `env:"DEBUG" envDefault:"false"`
	Port      string `env:"PORT" envDefault:"3000"`
	Domain    string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret string `env:"JWT_SECRET,required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// ConnectTimeout bounds how long a session may stay in Negotiating
	// before it is torn down with ErrConnectTimeout.
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"`

	STUNServers []string `env:"STUN_SERVERS" envDefault:"stun:stun.l.google.com:19302" envSeparator:","`

	ICEServers []webrtc.ICEServer `env:"-"`

	Turn     TurnConfig
	Postgres PostgresConfig
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"intercall"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

type TurnConfig struct {
	Enabled  bool   `env:"TURN_ENABLED" envDefault:"false"`
	PublicIP string `env:"TURN_PUBLIC_IP" envDefault:"0.0.0.0"`
	Host     string `env:"TURN_HOST"`
	Port     int    `env:"TURN_PORT" envDefault:"3478"`
	Realm    string `env:"TURN_REALM" envDefault:"intercall"`

	// Secret signs the ephemeral credentials handed out to clients.
	Secret string `env:"TURN_SECRET"`

	CredentialTTL time.Duration `env:"TURN_CREDENTIAL_TTL" envDefault:"5m"`
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	c.ICEServers = []webrtc.ICEServer{
		{URLs: c.STUNServers},
	}

	if c.Turn.Enabled {
		c.ICEServers = append(c.ICEServers,
			webrtc.ICEServer{
				URLs: []string{fmt.Sprintf("turn:%s:%d?transport=udp", c.Turn.Host, c.Turn.Port)},
			},
			webrtc.ICEServer{
				URLs: []string{fmt.Sprintf("turn:%s:%d?transport=tcp", c.Turn.Host, c.Turn.Port)},
			},
		)
	}

	return &c, nil
}
