package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	ordersCollection   = "orders"
	countersCollection = "counters"
)

type MongoStore struct {
	client   *mongo.Client
	orders   *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		orders:   db.Collection(ordersCollection),
		counters: db.Collection(countersCollection),
	}

	_, err = s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ticket_channel_id", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// nextID increments the orders counter document atomically.
func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": ordersCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func (s *MongoStore) Create(ctx context.Context, order *Order) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}
	order.ID = id
	order.fillTitle()
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	_, err = s.orders.InsertOne(ctx, order)
	return err
}

func (s *MongoStore) Get(ctx context.Context, id int64) (Order, error) {
	return s.findOne(ctx, bson.M{"id": id}, nil)
}

func (s *MongoStore) List(ctx context.Context) ([]Order, error) {
	cursor, err := s.orders.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var orders []Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoStore) Update(ctx context.Context, order Order) error {
	order.UpdatedAt = time.Now().UTC()
	res, err := s.orders.ReplaceOne(ctx, bson.M{"id": order.ID}, order)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) FindByChannel(ctx context.Context, channelID string) (Order, error) {
	if channelID == "" {
		return Order{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"ticket_channel_id": channelID}, options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}}))
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (Order, error) {
	var order Order
	var err error
	if opts != nil {
		err = s.orders.FindOne(ctx, filter, opts).Decode(&order)
	} else {
		err = s.orders.FindOne(ctx, filter).Decode(&order)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Order{}, ErrNotFound
	}
	return order, err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
