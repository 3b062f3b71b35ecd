package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"quarterload/core"
	"quarterload/provider"
	"quarterload/push"
	"quarterload/util"
)

type config struct {
	URI       string
	Log       string
	Levels    map[string]string
	Mqtt      mqttConfig
	Influx    influxConfig
	Redis     redisConfig
	Kafka     kafkaConfig
	Messaging messagingConfig
	Meters    []map[string]interface{}
}

type mqttConfig struct {
	Broker   string
	User     string
	Password string
	Topic    string // root topic for publishing, empty disables
}

type influxConfig struct {
	URL      string
	Database string
	Token    string
	Org      string
	User     string
	Password string
}

type redisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type kafkaConfig struct {
	Brokers []string
	Topic   string
}

type qualifiedConfig struct {
	Type  string
	Other map[string]interface{} `mapstructure:",remain"`
}

type messagingConfig struct {
	Events   map[string]push.EventTemplate
	Services []qualifiedConfig
}

// loadConfigFile parses the config file into conf
func loadConfigFile(conf *config) error {
	if err := viper.ReadInConfig(); err != nil {
		return err
	}

	if err := viper.UnmarshalExact(conf); err != nil {
		return fmt.Errorf("failed parsing config file %s: %w", viper.ConfigFileUsed(), err)
	}

	return nil
}

// configureEnvironment sets up the shared mqtt client
func configureEnvironment(conf config) error {
	if conf.Mqtt.Broker == "" {
		return nil
	}

	mqttLog := util.NewLogger("mqtt")
	mqttLog.Redact(conf.Mqtt.Password)

	client, err := provider.NewMqttClient(mqttLog, conf.Mqtt.Broker, conf.Mqtt.User, conf.Mqtt.Password, clientID(), 1)
	if err == nil {
		provider.MQTT = client
	}

	return err
}

// configureSite builds the site from the meter configurations
func configureSite(conf config) (*core.Site, error) {
	meters := make([]*core.Meter, 0, len(conf.Meters))

	for _, cc := range conf.Meters {
		m, err := core.NewMeterFromConfig(cc)
		if err != nil {
			return nil, fmt.Errorf("failed configuring meter: %w", err)
		}
		meters = append(meters, m)
	}

	return core.NewSite(meters)
}

// configureMessengers creates the push hub with the configured senders and
// returns its event channel
func configureMessengers(conf messagingConfig, cache *util.Cache) chan push.Event {
	hub := push.NewHub(conf.Events, cache)

	for _, service := range conf.Services {
		impl, err := push.NewMessengerFromConfig(service.Type, service.Other)
		if err != nil {
			log.FATAL.Fatal(err)
		}
		hub.Add(impl)
	}

	pushChan := make(chan push.Event, 1)
	go hub.Run(pushChan)

	return pushChan
}
