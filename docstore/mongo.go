package docstore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore adapts a *mongo.Database to the Store port. Documents carry a
// string _id; subscriptions ride change streams and re-run the query on every
// event, so callers always see a full snapshot.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{coll: s.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Insert(ctx context.Context, id string, doc bson.M) (string, error) {
	if id == "" {
		id = primitive.NewObjectID().Hex()
	}
	body := resolveTimestamps(doc)
	body["_id"] = id
	if _, err := c.coll.InsertOne(ctx, body); err != nil {
		return "", errors.Wrapf(err, "insert into %s", c.coll.Name())
	}
	return id, nil
}

func (c *mongoCollection) Set(ctx context.Context, id string, doc bson.M) error {
	body := resolveTimestamps(doc)
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "set %s/%s", c.coll.Name(), id)
}

func (c *mongoCollection) Get(ctx context.Context, id string) (bson.M, bool, error) {
	var out bson.M
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s/%s", c.coll.Name(), id)
	}
	delete(out, "_id")
	return out, true, nil
}

func (c *mongoCollection) Update(ctx context.Context, id string, u Update) error {
	update := bson.M{}
	set := bson.M{}
	for k, v := range u.Set {
		set[k] = v
	}
	if len(u.ServerTime) > 0 {
		now := nowMS()
		for _, f := range u.ServerTime {
			set[f] = now
		}
	}
	if len(set) > 0 {
		update["$set"] = resolveTimestamps(set)
	}
	if len(u.Inc) > 0 {
		inc := bson.M{}
		for k, v := range u.Inc {
			inc[k] = v
		}
		update["$inc"] = inc
	}
	if len(u.AddToSet) > 0 {
		add := bson.M{}
		for k, v := range u.AddToSet {
			add[k] = v
		}
		update["$addToSet"] = add
	}
	if len(u.Pull) > 0 {
		pull := bson.M{}
		for k, v := range u.Pull {
			pull[k] = v
		}
		update["$pull"] = pull
	}
	if len(update) == 0 {
		return nil
	}
	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrapf(err, "update %s/%s", c.coll.Name(), id)
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("update %s/%s: no such document", c.coll.Name(), id)
	}
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrapf(err, "delete %s/%s", c.coll.Name(), id)
}

func (c *mongoCollection) Find(ctx context.Context, q Query) ([]Record, error) {
	filter := bson.M{}
	for k, v := range q.Eq {
		filter[k] = v
	}
	// equality against an array field is membership in mongo, which is exactly
	// the array-contains shape the directory search needs
	for k, v := range q.Contains {
		filter[k] = v
	}
	if q.PrefixField != "" {
		filter[q.PrefixField] = bson.M{"$gte": q.Prefix, "$lt": q.Prefix + "\uf8ff"}
	}
	opts := options.Find()
	if q.SortBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.SortBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "find in %s", c.coll.Name())
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode record")
		}
		id, _ := doc["_id"].(string)
		delete(doc, "_id")
		out = append(out, Record{ID: id, Data: doc})
	}
	return out, errors.Wrap(cur.Err(), "cursor")
}

func (c *mongoCollection) Subscribe(ctx context.Context, q Query, fn func([]Record)) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	cs, err := c.coll.Watch(subCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "watch %s", c.coll.Name())
	}

	deliver := func() {
		recs, err := c.Find(subCtx, q)
		if err != nil {
			return
		}
		fn(recs)
	}
	deliver()

	go func() {
		defer func() { _ = cs.Close(context.Background()) }()
		for cs.Next(subCtx) {
			deliver()
		}
	}()
	return func() { cancel() }, nil
}

func (c *mongoCollection) SubscribeDoc(ctx context.Context, id string, fn func(bson.M, bool)) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": id}}},
	}
	cs, err := c.coll.Watch(subCtx, pipeline)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "watch %s/%s", c.coll.Name(), id)
	}

	deliver := func() {
		doc, ok, err := c.Get(subCtx, id)
		if err != nil {
			return
		}
		fn(doc, ok)
	}
	deliver()

	go func() {
		defer func() { _ = cs.Close(context.Background()) }()
		for cs.Next(subCtx) {
			deliver()
		}
	}()
	return func() { cancel() }, nil
}
