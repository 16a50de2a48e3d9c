package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

var codecs = map[string]kafkago.Compression{
	"none":   0,
	"gzip":   kafkago.Gzip,
	"snappy": kafkago.Snappy,
	"lz4":    kafkago.Lz4,
	"zstd":   kafkago.Zstd,
}

// ResolveCompression maps a compression name to a codec. Unknown names
// fall back to snappy.
func ResolveCompression(name string) kafkago.Compression {
	if c, ok := codecs[name]; ok {
		return c
	}
	return kafkago.Snappy
}

func resolveStartOffset(name string) int64 {
	if name == "last" {
		return kafkago.LastOffset
	}
	return kafkago.FirstOffset
}

// credentials holds the connection security shared by writers and readers.
type credentials struct {
	tls  *tls.Config
	sasl sasl.Mechanism
}

func loadCredentials(cfg *Config) (credentials, error) {
	var cr credentials
	var err error
	if cfg.EnableTLS {
		if cr.tls, err = buildTLSConfig(cfg); err != nil {
			return cr, fmt.Errorf("TLS config: %w", err)
		}
	}
	if cfg.EnableSASL {
		if cr.sasl, err = buildSASLMechanism(cfg); err != nil {
			return cr, fmt.Errorf("SASL config: %w", err)
		}
	}
	return cr, nil
}

// CreateTransport builds the transport used by writers.
func CreateTransport(cfg *Config) (*kafkago.Transport, error) {
	cr, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Transport{
		DialTimeout: ParseDuration(cfg.DialTimeout),
		IdleTimeout: ParseDuration(cfg.IdleTimeout),
		MetadataTTL: ParseDuration(cfg.MetadataTTL),
		TLS:         cr.tls,
		SASL:        cr.sasl,
	}, nil
}

// CreateDialer builds the dialer used by readers.
func CreateDialer(cfg *Config) (*kafkago.Dialer, error) {
	cr, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Dialer{
		Timeout:       ParseDuration(cfg.DialTimeout),
		DualStack:     true,
		TLS:           cr.tls,
		SASLMechanism: cr.sasl,
	}, nil
}

func buildTLSConfig(cfg *Config) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in for test clusters
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		tc.RootCAs = x509.NewCertPool()
		if !tc.RootCAs.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificate found in CA file")
		}
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func buildSASLMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	}
	return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
}
