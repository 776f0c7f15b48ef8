package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a bounded FIFO of messages held while disconnected.
// When full, the oldest QoS 0 message (telemetry) is evicted first so that
// lifecycle events survive a long outage.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if len(r.msgs) == r.capacity {
		if !r.overflow {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest telemetry", r.capacity)
			r.overflow = true
		}
		r.evict()
		r.dropped++
	}
	r.msgs = append(r.msgs, msg)
}

func (r *ringBuffer) evict() {
	victim := 0
	for i, m := range r.msgs {
		if m.qos == 0 {
			victim = i
			break
		}
	}
	r.msgs = append(r.msgs[:victim], r.msgs[victim+1:]...)
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.msgs) == 0 {
		return nil
	}
	result := make([]bufferedMsg, len(r.msgs))
	copy(result, r.msgs)
	r.msgs = r.msgs[:0]
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}
