package resource

import (
	"context"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/hnhuaxi/refsingleton"
	"github.com/hnhuaxi/refsingleton/singleton"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// GoChannel shares an in process watermill pubsub. Subscribers are closed
// together with the pubsub when the last reference goes away.
func GoChannel(cfg gochannel.Config, log *zap.Logger) Spec[*gochannel.GoChannel] {
	return Spec[*gochannel.GoChannel]{
		Name: "gochannel",
		Factory: func(ctx context.Context) (*gochannel.GoChannel, error) {
			return gochannel.NewGoChannel(cfg, refsingleton.WatermillLogger(log)), nil
		},
		Destroy: singleton.Closer[*gochannel.GoChannel](),
	}
}

// KafkaPublisher shares a synchronous kafka publisher. Without an explicit
// sarama config the producer waits for the local broker ack and reports
// errors.
func KafkaPublisher(cfg kafka.PublisherConfig, log *zap.Logger) Spec[*kafka.Publisher] {
	if cfg.OverwriteSaramaConfig == nil {
		publishConfig := kafka.DefaultSaramaSyncPublisherConfig()
		publishConfig.Producer.RequiredAcks = sarama.WaitForLocal
		publishConfig.Producer.Return.Errors = true
		cfg.OverwriteSaramaConfig = publishConfig
	}

	if cfg.Marshaler == nil {
		cfg.Marshaler = kafka.DefaultMarshaler{}
	}

	return Spec[*kafka.Publisher]{
		Name: "kafka_publisher",
		Factory: func(ctx context.Context) (*kafka.Publisher, error) {
			pub, err := kafka.NewPublisher(cfg, refsingleton.WatermillLogger(log))
			if err != nil {
				return nil, errors.Wrap(err, "resource: kafka publisher")
			}
			return pub, nil
		},
		Destroy: singleton.Closer[*kafka.Publisher](),
	}
}
