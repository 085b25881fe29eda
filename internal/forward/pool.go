package forward

import "sync"

// bufferPool recycles the read buffers each Socket's read loop uses.
// Adapted from a generic httputil.BufferPool shape into a plain sync.Pool
// helper, since forwarding sockets read directly into []byte rather than
// through net/http/httputil.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

func getBuffer() []byte {
	return *bufferPool.Get().(*[]byte)
}

func putBuffer(b []byte) {
	bufferPool.Put(&b)
}
