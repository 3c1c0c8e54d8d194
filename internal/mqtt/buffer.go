package mqtt

// outbound is a lifecycle message waiting for the broker.
type outbound struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds outbound messages while the broker is unreachable. A
// heartbeat replaces a heartbeat queued directly before it, since only the
// newest snapshot is worth replaying. When full the oldest message goes.
// Not safe for concurrent use; the caller must synchronize.
type backlog struct {
	items   []outbound
	limit   int
	dropped int // since the last take
}

func newBacklog(limit int) *backlog {
	if limit < 1 {
		limit = 1
	}
	return &backlog{limit: limit}
}

// add queues m. It returns true when this add is the first since the last
// take to discard a message.
func (b *backlog) add(m outbound) bool {
	if n := len(b.items); n > 0 && !m.retained && !b.items[n-1].retained && b.items[n-1].topic == m.topic {
		b.items[n-1] = m
		return false
	}
	if len(b.items) < b.limit {
		b.items = append(b.items, m)
		return false
	}
	copy(b.items, b.items[1:])
	b.items[len(b.items)-1] = m
	b.dropped++
	return b.dropped == 1
}

// take returns the queued messages oldest first and empties the backlog.
func (b *backlog) take() []outbound {
	if len(b.items) == 0 {
		return nil
	}
	out := b.items
	b.items = nil
	b.dropped = 0
	return out
}

func (b *backlog) size() int {
	return len(b.items)
}
