// Package mongo implements a scheduler queue backend on MongoDB using
// go.mongodb.org/mongo-driver/v2.
//
// Topics are documents in <prefix>_topics keyed by name. Messages are
// documents in <prefix>_messages. Get claims the oldest visible message with
// FindOneAndUpdate and hides it for the visibility timeout. Release makes it
// visible again; Del removes it.
//
//	client, err := mongo.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	backend, err := mongo.New(client.Database(cfg.Database), cfg)
//	if err != nil {
//	    return err
//	}
//	if err := backend.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
package mongo
