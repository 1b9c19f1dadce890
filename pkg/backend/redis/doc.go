// Package redis implements a scheduler queue backend on Redis lists using
// github.com/redis/go-redis/v9.
//
// Every topic uses two lists and one shared set:
//
//	<prefix>:topics                 set of provisioned topics
//	<prefix>:topic:<name>:ready      messages waiting for delivery
//	<prefix>:topic:<name>:processing messages handed to a job
//
// Get claims with LMOVE so a message is never lost between the two lists.
// Release runs a small Lua script that moves the entry back to the head of
// the ready list. After a crash, Recover returns stranded entries.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	backend, err := redis.New(client, cfg)
//	if err != nil {
//	    return err
//	}
//	s, err := scheduler.New(backend)
//
// Config is usually populated from the environment (REDIS_URL,
// REDIS_RETRY_ATTEMPTS, REDIS_RETRY_INTERVAL, REDIS_CONNECT_TIMEOUT,
// REDIS_KEY_PREFIX) with pkg/config.
package redis
