package client

// Callbacks is the user-installable callback table (spec.md §6). Any
// field left nil silently drops the corresponding notification.
type Callbacks struct {
	Get         GetCallback
	Store       StoreCallback
	Arithmetic  ArithmeticCallback
	Remove      RemoveCallback
	TapMutation TapMutationCallback
	Error       ErrorCallback
}

// GetCallback receives the outcome of a GET (or synthetic miss within a
// quiet batch).
type GetCallback func(cookie any, err error, key []byte, value []byte, flags uint32, cas uint64)

// StoreCallback receives the outcome of a SET/ADD/REPLACE/APPEND/PREPEND.
type StoreCallback func(cookie any, err error, key []byte, cas uint64)

// ArithmeticCallback receives the outcome of an INCREMENT/DECREMENT.
type ArithmeticCallback func(cookie any, err error, key []byte, value uint64, cas uint64)

// RemoveCallback receives the outcome of a DELETE.
type RemoveCallback func(cookie any, err error, key []byte)

// TapMutationCallback receives one mutation event from a TAP stream.
type TapMutationCallback func(cookie any, key []byte, data []byte, flags uint32, exp uint32, cas uint64, vbucket uint16)

// ErrorCallback receives the error of a response whose opcode belongs to
// none of the other callback families. It is not invoked when a server
// connection aborts; that server's in-flight requests receive synthesized
// callbacks instead.
type ErrorCallback func(cookie any, err error, errinfo string)
