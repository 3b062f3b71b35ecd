package server

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"quarterload/api"
	"quarterload/util"
)

// Kafka publishes completed window snapshots to a topic, keyed by meter name
// so windows of one meter stay on one partition
type Kafka struct {
	log    *util.Logger
	writer *kafka.Writer
}

// NewKafka creates a Kafka publisher
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		log: util.NewLogger("kafka"),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Run publishes completed windows from the parameter stream
func (k *Kafka) Run(in <-chan util.Param) {
	ctx := context.Background()

	for param := range in {
		snap, ok := param.Val.(api.CompletedWindow)
		if !ok || param.Meter == "" {
			continue
		}

		value, err := json.Marshal(snap)
		if err != nil {
			k.log.ERROR.Printf("encoding %s failed: %v", param.Meter, err)
			continue
		}

		msg := kafka.Message{
			Key:   []byte(param.Meter),
			Value: value,
			Time:  snap.WindowEnd,
		}

		if err := k.writer.WriteMessages(ctx, msg); err != nil {
			k.log.ERROR.Printf("write %s failed: %v", param.Meter, err)
		}
	}

	if err := k.writer.Close(); err != nil {
		k.log.ERROR.Printf("close failed: %v", err)
	}
}
