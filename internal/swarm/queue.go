package swarm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"cogito/internal/lockfile"
)

// Queue is the persisted offline upload queue: append-only JSONL, drained
// FIFO on the next successful sync.
type Queue struct {
	mu   sync.Mutex
	path string
}

// NewQueue opens the queue at path.
func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Enqueue appends a packet.
func (q *Queue) Enqueue(p *Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("swarm: marshal queued packet: %w", err)
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("swarm: open queue: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// Peek returns the oldest queued packet without removing it.
func (q *Queue) Peek() (*Packet, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	packets, err := q.readAll()
	if err != nil || len(packets) == 0 {
		return nil, false, err
	}
	return packets[0], true, nil
}

// Dequeue removes the oldest queued packet, rewriting the file atomically.
func (q *Queue) Dequeue() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	packets, err := q.readAll()
	if err != nil {
		return err
	}
	if len(packets) == 0 {
		return nil
	}

	var buf []byte
	for _, p := range packets[1:] {
		line, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("swarm: marshal queued packet: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return lockfile.WriteAtomic(q.path, buf)
}

// Len returns the number of queued packets.
func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	packets, err := q.readAll()
	return len(packets), err
}

func (q *Queue) readAll() ([]*Packet, error) {
	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("swarm: open queue: %w", err)
	}
	defer f.Close()

	var packets []*Packet
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p Packet
		if err := json.Unmarshal(line, &p); err != nil {
			continue
		}
		packets = append(packets, &p)
	}
	return packets, scanner.Err()
}
