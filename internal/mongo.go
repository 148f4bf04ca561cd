package internal

import (
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"paygate/config"
	"paygate/entity"
	"paygate/services"
	"time"
)

const (
	collectionLog    = "payment_log"
	collectionEvents = "checkout_events"

	writeTimeout = 5 * time.Second
)

// MongoDB is the write-only audit and log sink.
type MongoDB struct {
	client   *mongo.Client
	database string
}

// NewMongoClient returns nil when mongo is disabled. The driver connects lazily,
// so an unreachable server surfaces on the first write.
func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
	}, nil
}

func (m *MongoDB) WriteLogMessage(data services.Data) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	collection := m.client.Database(m.database).Collection(collectionLog)
	_, err := collection.InsertOne(ctx, data)
	return err
}

func (m *MongoDB) SaveCheckoutEvent(ctx context.Context, event *entity.CheckoutEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	collection := m.client.Database(m.database).Collection(collectionEvents)
	if _, err := collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert %s: %w", event.DataType(), err)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
