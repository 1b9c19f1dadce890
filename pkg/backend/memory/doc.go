// Package memory provides an in-process queue backend for the scheduler.
//
// Messages live in a per-topic slice guarded by a mutex. Get moves the oldest
// message to an in-flight set; Del forgets it and Release puts it back at the
// head of the topic so it is redelivered first.
//
//	b := memory.New()
//	s, err := scheduler.New(b)
//
// Topics must be provisioned with TopicEnsureExists before Put unless the
// backend was created with WithAutoCreateTopics. Polling a topic that was
// never provisioned reports it as empty.
package memory
