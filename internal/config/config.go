// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/shake_monitor/internal/motion"
)

// Source kinds accepted by SOURCE.
const (
	SourceMock    = "mock"
	SourceMPU9250 = "mpu9250"
	SourceSerial  = "serial"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTEnabled     bool
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Sensor source: "mock", "mpu9250" or "serial"
	Source string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Serial sensor bridge
	SerialPort     string
	SerialBaudRate int

	// Timing
	SampleInterval int // milliseconds

	// Proximity sensor range in cm; <= 0 means no sensor on this host
	ProximityMaxRangeCm float64

	// Initial shake threshold in g
	ShakeThresholdG float64

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Display
	DisplayEnabled        bool
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MQTTEnabled:           false,
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientID:          "shake-monitor",
		MQTTTopicPrefix:       "shake",
		Source:                SourceMock,
		IMUSPIDevice:          "/dev/spidev0.0",
		IMUCSPin:              "8",
		IMUAccelRange:         1,
		SerialPort:            "/dev/ttyUSB0",
		SerialBaudRate:        115200,
		SampleInterval:        20,
		ProximityMaxRangeCm:   5,
		ShakeThresholdG:       motion.DefaultThresholdG,
		WebServerPort:         8080,
		WebStaticDir:          "web",
		DisplayEnabled:        false,
		DisplayUpdateInterval: 200,
		LogLevel:              "info",
		LogFormat:             "console",
	}
}

// Load reads the configuration file on top of Default().
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MQTT_ENABLED %q: %w", value, err)
		}
		c.MQTTEnabled = b
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = strings.TrimSuffix(value, "/")

	// Source
	case "SOURCE":
		switch value {
		case SourceMock, SourceMPU9250, SourceSerial:
			c.Source = value
		default:
			return fmt.Errorf("SOURCE must be one of mock, mpu9250, serial, got %q", value)
		}

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)

	// Serial bridge
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Timing
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval

	// Proximity
	case "PROXIMITY_MAX_RANGE_CM":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid PROXIMITY_MAX_RANGE_CM %q: %w", value, err)
		}
		c.ProximityMaxRangeCm = r

	// Shake
	case "SHAKE_THRESHOLD_G":
		g, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SHAKE_THRESHOLD_G %q: %w", value, err)
		}
		if g < motion.MinThresholdG || g > motion.MaxThresholdG {
			return fmt.Errorf("SHAKE_THRESHOLD_G must be %.1f-%.1f, got %v", motion.MinThresholdG, motion.MaxThresholdG, g)
		}
		c.ShakeThresholdG = g

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Display
	case "DISPLAY_ENABLED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = b
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_FORMAT":
		c.LogFormat = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks cross-field requirements.
func (c *Config) validate() error {
	if c.MQTTEnabled && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED=true")
	}
	if c.Source == SourceMPU9250 && c.IMUSPIDevice == "" {
		return fmt.Errorf("IMU_SPI_DEVICE is required for SOURCE=mpu9250")
	}
	if c.Source == SourceSerial {
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SOURCE=serial")
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required for SOURCE=serial")
		}
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be > 0")
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be > 0")
	}
	return nil
}

// Topic joins the configured prefix with a topic suffix.
func (c *Config) Topic(suffix string) string {
	return c.MQTTTopicPrefix + "/" + suffix
}

// InitGlobal initializes the global configuration from file. An empty path
// selects Default(). Only the first call has an effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
