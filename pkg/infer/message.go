package infer

import "treeprop/pkg/factorgraph"

// Message is the immutable summary of one node's influence on a neighbor:
// for each value of the destination's effective domain, the logarithm of
// the corresponding sum-product contribution. Origin and destination ids
// refer to factors or variables depending on which store holds the
// message; a Message is never mutated after creation.
type Message struct {
	origin int
	dest   int
	values map[factorgraph.Value]float64
}

func newMessage(origin, dest int, values map[factorgraph.Value]float64) *Message {
	return &Message{origin: origin, dest: dest, values: values}
}

// Origin returns the id of the emitting node.
func (m *Message) Origin() int { return m.origin }

// Dest returns the id of the receiving node.
func (m *Message) Dest() int { return m.dest }

// At returns the log contribution for one destination value. Values the
// message was not computed for read as 0; the traversal only ever asks
// for values it seeded.
func (m *Message) At(v factorgraph.Value) float64 { return m.values[v] }

// Max returns the largest log value carried by the message.
func (m *Message) Max() float64 {
	first := true
	var max float64
	for _, lv := range m.values {
		if first || lv > max {
			max = lv
			first = false
		}
	}
	return max
}
