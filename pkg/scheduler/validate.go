package scheduler

import (
	"context"
	"errors"
	"reflect"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	stringType  = reflect.TypeFor[string]()
	bytesType   = reflect.TypeFor[[]byte]()
)

// ValidateBackend checks that a dynamically supplied value satisfies the queue
// backend contract. Capabilities are checked in a fixed order and the first
// missing one is reported as a *ValidationError.
//
// Statically typed backends are checked by the compiler through the Backend
// interface; this check exists for backends loaded at runtime whose message
// type is a concrete type rather than Message. That type must be nillable
// (a pointer or an interface): a nil message is how Get reports an empty topic.
func ValidateBackend(candidate any) error {
	_, err := inspectBackend(candidate)
	return err
}

// reflectBackend adapts a structurally valid backend to the Backend interface.
type reflectBackend struct {
	get    reflect.Value
	put    reflect.Value
	ensure reflect.Value
}

func inspectBackend(candidate any) (*reflectBackend, error) {
	if isNilValue(candidate) {
		return nil, newValidationError(CapabilityBackend, "backend is nil")
	}

	v := reflect.ValueOf(candidate)

	get := v.MethodByName("Get")
	if !get.IsValid() || !signatureMatches(get.Type(), 0, []reflect.Type{contextType, stringType}, nil) {
		return nil, newValidationError(CapabilityGet, "expected Get(context.Context, string) (Message, error)")
	}
	if get.Type().NumOut() != 2 || get.Type().Out(1) != errorType {
		return nil, newValidationError(CapabilityGet, "expected Get(context.Context, string) (Message, error)")
	}

	put := v.MethodByName("Put")
	if !put.IsValid() || !signatureMatches(put.Type(), 0, []reflect.Type{contextType, stringType, bytesType}, []reflect.Type{errorType}) {
		return nil, newValidationError(CapabilityPut, "expected Put(context.Context, string, []byte) error")
	}

	ensure := v.MethodByName("TopicEnsureExists")
	if !ensure.IsValid() || !signatureMatches(ensure.Type(), 0, []reflect.Type{contextType, stringType}, []reflect.Type{errorType}) {
		return nil, newValidationError(CapabilityTopicEnsureExists, "expected TopicEnsureExists(context.Context, string) error")
	}

	msgType := get.Type().Out(0)
	if !hasMethod(msgType, "Del", []reflect.Type{contextType}, []reflect.Type{errorType}) {
		return nil, newValidationError(CapabilityDel, "message type "+msgType.String()+" has no Del(context.Context) error")
	}
	if !hasMethod(msgType, "Release", []reflect.Type{contextType}, []reflect.Type{errorType}) {
		return nil, newValidationError(CapabilityRelease, "message type "+msgType.String()+" has no Release(context.Context) error")
	}
	if !hasMethod(msgType, "ID", nil, []reflect.Type{stringType}) || !hasMethod(msgType, "Body", nil, []reflect.Type{bytesType}) {
		return nil, newValidationError(CapabilityMessage, "message type "+msgType.String()+" must expose ID() string and Body() []byte")
	}
	if !nillableKind(msgType.Kind()) {
		return nil, newValidationError(CapabilityMessage, "message type "+msgType.String()+" must be a pointer or interface so Get can return nil for an empty topic")
	}

	return &reflectBackend{get: get, put: put, ensure: ensure}, nil
}

func (b *reflectBackend) Get(ctx context.Context, topic string) (Message, error) {
	out := b.get.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem(), reflect.ValueOf(topic)})
	if err := errorFromValue(out[1]); err != nil {
		return nil, err
	}
	if isNilReflect(out[0]) {
		return nil, nil
	}
	msg, ok := out[0].Interface().(Message)
	if !ok {
		return nil, errors.New("backend returned a value that does not implement Message")
	}
	return msg, nil
}

func (b *reflectBackend) Put(ctx context.Context, topic string, body []byte) error {
	out := b.put.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem(), reflect.ValueOf(topic), reflect.ValueOf(body)})
	return errorFromValue(out[0])
}

func (b *reflectBackend) TopicEnsureExists(ctx context.Context, topic string) error {
	out := b.ensure.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem(), reflect.ValueOf(topic)})
	return errorFromValue(out[0])
}

// signatureMatches compares a func type against expected parameter and result types.
// skip drops leading parameters, which is how method receivers are ignored.
// A nil out slice skips the result check.
func signatureMatches(ft reflect.Type, skip int, in, out []reflect.Type) bool {
	if ft.Kind() != reflect.Func || ft.NumIn()-skip != len(in) {
		return false
	}
	for i, t := range in {
		if ft.In(i+skip) != t {
			return false
		}
	}
	if out == nil {
		return true
	}
	if ft.NumOut() != len(out) {
		return false
	}
	for i, t := range out {
		if ft.Out(i) != t {
			return false
		}
	}
	return true
}

func hasMethod(t reflect.Type, name string, in, out []reflect.Type) bool {
	m, ok := t.MethodByName(name)
	if !ok {
		return false
	}
	skip := 1
	if t.Kind() == reflect.Interface {
		skip = 0
	}
	if out == nil {
		out = []reflect.Type{}
	}
	return signatureMatches(m.Type, skip, in, out)
}

func errorFromValue(v reflect.Value) error {
	if isNilReflect(v) {
		return nil
	}
	err, _ := v.Interface().(error)
	return err
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	return isNilReflect(reflect.ValueOf(v))
}

func isNilReflect(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	return nillableKind(v.Kind()) && v.IsNil()
}

func nillableKind(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
