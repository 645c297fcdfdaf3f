package driver

import "strings"

// optionRegistry tracks the last-sent value for each engine option and queues setoption
// lines that arrive while a search is running. Engines forbid option changes during search;
// deferring preserves the user's intent while keeping the search coherent. Options changed
// while idle take effect immediately and never touch the queue.
//
// Not safe for concurrent use -- like the rest of this package, it is mutated only on the
// Driver's event-loop goroutine.
type optionRegistry struct {
	sent    map[string]string // lowercased name -> last-sent value
	pending []string          // raw "setoption ..." lines, in arrival order
}

func newOptionRegistry() *optionRegistry {
	return &optionRegistry{sent: map[string]string{}}
}

// record stores the lowercased name/value pair and notifies the hub.
func (r *optionRegistry) record(hub Hub, name, value string) {
	key := strings.ToLower(name)
	r.sent[key] = value
	if hub != nil {
		hub.AckSetOption(key, value)
	}
}

// value returns the last-sent value for name (lowercased), or "" if never sent.
func (r *optionRegistry) value(name string) string {
	return r.sent[strings.ToLower(name)]
}

// queue appends a raw setoption line to the pending queue.
func (r *optionRegistry) queue(raw string) {
	r.pending = append(r.pending, raw)
}

// drain sends every queued line, in original order, via send, then clears the queue. If send
// fails partway through, the lines from that point on (inclusive) remain queued for a future
// drain -- a single bad write never silently drops the rest of the queue.
func (r *optionRegistry) drain(send func(line string) error) error {
	i := 0
	for ; i < len(r.pending); i++ {
		if err := send(r.pending[i]); err != nil {
			r.pending = r.pending[i:]
			return err
		}
	}
	r.pending = nil
	return nil
}

// in960Mode reports whether the stored value for UCI_Chess960 is the string "true".
func (r *optionRegistry) in960Mode() bool {
	return r.value("uci_chess960") == "true"
}

// reset clears all recorded values, as happens on a fresh engine launch that has not yet
// been told anything. Pending lines are untouched -- a relaunch mid-queue-drain should not
// lose user intent.
func (r *optionRegistry) reset() {
	r.sent = map[string]string{}
}
