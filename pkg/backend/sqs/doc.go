// Package sqs implements a scheduler queue backend on Amazon SQS with
// aws-sdk-go-v2.
//
// Each topic is a queue named QueuePrefix+topic. Get receives a single
// message, hiding it for VisibilityTimeout. Del deletes it by receipt handle
// and Release resets its visibility to zero so the next receive returns it.
// Queue URLs are resolved once and cached.
//
// SQS only carries text, so bodies that are not valid UTF-8 are sent base64
// encoded and tagged with a message attribute that Get uses to decode them.
//
//	backend, err := sqs.New(ctx, sqs.Config{Region: "eu-central-1", QueuePrefix: "prod-"})
//	if err != nil {
//	    return err
//	}
//	s, err := scheduler.New(backend)
package sqs
