// Package queue defines where accepted commands are stored before they are processed, with
// in-memory, Redis, and NATS implementations.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is a command after it has been accepted by the service.
type Entry struct {
	ID                string    `json:"id"`
	Command           string    `json:"command"`
	Version           int       `json:"version"`
	Certname          string    `json:"certname"`
	ProducerTimestamp string    `json:"producer_timestamp,omitempty"`
	Compression       string    `json:"compression,omitempty"`
	Callback          string    `json:"callback,omitempty"`
	Payload           []byte    `json:"payload"`
	Received          time.Time `json:"received"`
}

// Queue stores accepted command entries.
type Queue interface {
	Store(ctx context.Context, entry Entry) error
}

func encodeEntry(entry Entry) ([]byte, error) {
	return json.Marshal(entry)
}

// DecodeEntry parses an entry in the form written by RedisQueue and NATSQueue.
func DecodeEntry(data []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(data, &e)
	return e, err
}

// MemoryQueue keeps entries in process memory.
type MemoryQueue struct {
	entries []Entry
	lock    sync.Mutex
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Store(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.lock.Lock()
	q.entries = append(q.entries, entry)
	q.lock.Unlock()
	return nil
}

// Entries returns a copy of the stored entries in the order they were stored.
func (q *MemoryQueue) Entries() []Entry {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]Entry(nil), q.entries...)
}

func (q *MemoryQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.entries)
}
