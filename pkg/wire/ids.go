package wire

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// ClientIDLength is the size in bytes of a ClientID, matching the identity
// length meshstate's predecessor used for its router sockets.
const ClientIDLength = 5

// ClientID identifies one client connection for echo suppression on the
// watcher fanout. Task results are routed by ChunkID, not by ClientID.
type ClientID [ClientIDLength]byte

// NewClientID returns a random ClientID, drawn from a fresh uuid.UUID's
// random bytes and truncated to ClientIDLength.
func NewClientID() ClientID {
	var id ClientID
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

// IsZero reports whether c is the zero ClientID (used as a "no identity,
// don't suppress anything" sentinel on the server side).
func (c ClientID) IsZero() bool {
	return c == ClientID{}
}

func (c ClientID) String() string {
	return hex.EncodeToString(c[:])
}

const (
	taskNonceLength = 5
	taskInfoLength  = 12 // three big-endian uint32s: chunk length, length, num chunks
	// TaskIDLength is the encoded size of a TaskID.
	TaskIDLength = taskNonceLength + taskInfoLength

	chunkInfoLength = 4 // one big-endian int32: chunk index
	// ChunkIDLength is the encoded size of a ChunkID.
	ChunkIDLength = TaskIDLength + chunkInfoLength
)

// TaskID identifies one call to the task proxy: a single-call task (Run) or
// a chunked parallel-map task (Map). Its layout is a random nonce followed
// by the chunking parameters, so a ChunkID can be derived from it without a
// side table and a worker can recover chunking parameters from the ID alone.
type TaskID [TaskIDLength]byte

// NewTaskID returns a TaskID for a single, unchunked call. ChunkLength,
// Length and NumChunks all read back as zero.
func NewTaskID() TaskID {
	return newTaskID(0, 0, 0)
}

// NewChunkedTaskID returns a TaskID for a parallel-map call split into
// numChunks chunks, each chunkLength items long, covering length items
// total.
func NewChunkedTaskID(chunkLength, length, numChunks uint32) TaskID {
	return newTaskID(chunkLength, length, numChunks)
}

func newTaskID(chunkLength, length, numChunks uint32) TaskID {
	var id TaskID
	u := uuid.New()
	copy(id[:taskNonceLength], u[:])
	binary.BigEndian.PutUint32(id[taskNonceLength:], chunkLength)
	binary.BigEndian.PutUint32(id[taskNonceLength+4:], length)
	binary.BigEndian.PutUint32(id[taskNonceLength+8:], numChunks)
	return id
}

// Chunking returns the chunk length, total item count and number of chunks
// encoded in t. chunked is false for a TaskID minted by NewTaskID (a single
// call has no chunking).
func (t TaskID) Chunking() (chunkLength, length, numChunks uint32, chunked bool) {
	chunkLength = binary.BigEndian.Uint32(t[taskNonceLength:])
	length = binary.BigEndian.Uint32(t[taskNonceLength+4:])
	numChunks = binary.BigEndian.Uint32(t[taskNonceLength+8:])
	return chunkLength, length, numChunks, numChunks > 0
}

func (t TaskID) String() string {
	return hex.EncodeToString(t[:])
}

// SingleChunkIndex is the chunk index used for the sole result of an
// unchunked (Run) task.
const SingleChunkIndex int32 = -1

// ChunkID identifies one chunk's result within a task: the task's ID plus a
// chunk index, or SingleChunkIndex for a single-call task's only result.
type ChunkID [ChunkIDLength]byte

// ChunkID derives the ChunkID for the given index within task t.
func (t TaskID) ChunkID(index int32) ChunkID {
	var c ChunkID
	copy(c[:TaskIDLength], t[:])
	binary.BigEndian.PutUint32(c[TaskIDLength:], uint32(index))
	return c
}

// TaskID extracts the parent TaskID from a ChunkID.
func (c ChunkID) TaskID() TaskID {
	var t TaskID
	copy(t[:], c[:TaskIDLength])
	return t
}

// Index extracts the chunk index from a ChunkID.
func (c ChunkID) Index() int32 {
	return int32(binary.BigEndian.Uint32(c[TaskIDLength:]))
}

func (c ChunkID) String() string {
	return hex.EncodeToString(c[:])
}
