package trace

// Op identifies the kind of runtime operation a record describes.
type Op string

const (
	OpAlloc     Op = "alloc"
	OpFree      Op = "free"
	OpGet       Op = "get"
	OpPut       Op = "put"
	OpBarrier   Op = "barrier"
	OpBroadcast Op = "broadcast"
	OpReduce    Op = "reduce"
)

// Record captures a single runtime operation.
type Record struct {
	Op     Op     `json:"op"`
	PE     int    `json:"pe"`               // PE that issued the operation
	Target int    `json:"target"`           // remote PE for get/put, root for broadcast; -1 if n/a
	Offset int64  `json:"offset,omitempty"` // region-local offset where applicable
	Bytes  int64  `json:"bytes,omitempty"`  // payload bytes moved or allocated
	Err    string `json:"err,omitempty"`    // error text for refused operations
}
