// Package s3 implements a scheduler queue backend that spools messages as
// objects in an S3 bucket, using aws-sdk-go-v2.
//
// Layout inside the bucket:
//
//	<prefix>/<topic>/.topic                 marker written by TopicEnsureExists
//	<prefix>/<topic>/messages/<ts>-<uuid>   one object per message
//
// Object keys start with a zero padded nanosecond timestamp, so a listing
// returns the oldest message first. S3 cannot hide an object from other
// readers, so claimed keys are leased in process memory; run one consumer
// process per topic. There is no release primitive either: Release deletes
// the object and writes its body back under a new key at the end of the topic.
package s3
