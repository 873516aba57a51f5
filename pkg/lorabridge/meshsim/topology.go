package meshsim

import "github.com/exepirit/lorabridge/pkg/lorabridge"

// Chain joins ids into a line, each node hearing only its neighbours, and
// routes every pair along the line. quality gives the RSSI of the link
// between ids[i] and ids[i+1].
func (n *Network) Chain(ids []lorabridge.NodeID, quality func(i int) int16) {
	for _, id := range ids {
		n.Join(id)
	}
	for i := 0; i+1 < len(ids); i++ {
		n.Link(ids[i], ids[i+1], quality(i))
	}
	for i, from := range ids {
		for j, dest := range ids {
			switch {
			case j > i+1:
				n.SetRoute(from, dest, ids[i+1])
			case j < i-1:
				n.SetRoute(from, dest, ids[i-1])
			}
		}
	}
}
