package solbuild

import (
	"fmt"
	"hash"
	"io"
	"sync"
)

const copyBufferSize = 32 * 1024

// copyBuffers is shared by everything that streams store inputs and objects into a hash.
var copyBuffers = sync.Pool{
	New: func() any {
		buffer := make([]byte, copyBufferSize)
		return &buffer
	},
}

// hashFile streams content into h through a pooled buffer.
func hashFile(content io.Reader, h hash.Hash) error {
	bufPtr := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(bufPtr)

	if _, err := io.CopyBuffer(h, content, *bufPtr); err != nil {
		return fmt.Errorf("failed to copy content: %w", err)
	}
	return nil
}
