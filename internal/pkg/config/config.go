package config

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxImageSize is the largest cover payload Home Assistant reliably
	// renders as an inline entity picture.
	DefaultMaxImageSize = 14500

	DefaultMinQuality     = 60
	DefaultInitialQuality = 95

	DefaultMqttPort = 1883
)

type Config struct {
	MqttCfg   *MqttConfig
	ImageCfg  *ImageConfig
	TopicBase string
	LogLevel  string
}

type MqttConfig struct {
	Broker   string
	Port     int
	Username string
	Password string
	ClientID string
}

type ImageConfig struct {
	MaxSizeBytes   int
	MinQuality     int
	InitialQuality int
}

// BrokerURL returns the paho-compatible broker address.
func (m *MqttConfig) BrokerURL() string {
	port := m.Port
	if port == 0 {
		port = DefaultMqttPort
	}
	return fmt.Sprintf("tcp://%s:%d", m.Broker, port)
}

func (c *Config) Validate() error {
	if c.MqttCfg == nil || c.MqttCfg.Broker == "" {
		return errors.New("mqtt broker is required")
	}
	if c.TopicBase == "" {
		return errors.New("topic base is required")
	}
	if c.ImageCfg == nil {
		c.ImageCfg = &ImageConfig{
			MaxSizeBytes:   DefaultMaxImageSize,
			MinQuality:     DefaultMinQuality,
			InitialQuality: DefaultInitialQuality,
		}
	}
	img := c.ImageCfg
	if img.MaxSizeBytes <= 0 {
		return fmt.Errorf("max image size must be positive, got %d", img.MaxSizeBytes)
	}
	if img.MinQuality < 1 || img.MinQuality > 100 {
		return fmt.Errorf("min quality must be in [1,100], got %d", img.MinQuality)
	}
	if img.InitialQuality < 1 || img.InitialQuality > 100 {
		return fmt.Errorf("initial quality must be in [1,100], got %d", img.InitialQuality)
	}
	if img.MinQuality > img.InitialQuality {
		return fmt.Errorf("min quality %d exceeds initial quality %d", img.MinQuality, img.InitialQuality)
	}
	return nil
}
