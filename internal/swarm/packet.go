// Package swarm implements the federated client: packaging local strategy
// weights into checksummed packets, uploading them through the privacy
// scrubber with retries and an offline queue, and merging downloaded global
// weights back into the local maps.
package swarm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// PacketCategories is the fixed category ordering. Checksums depend on it;
// never reorder.
var PacketCategories = []string{"tools", "errors", "commands", "teams"}

// Packet is the wire format exchanged with the aggregator.
type Packet struct {
	Version   string                        `json:"version"`
	Timestamp int64                         `json:"timestamp"`
	Checksum  string                        `json:"checksum"`
	Weights   map[string]map[string]float64 `json:"weights"`
	Noise     float64                       `json:"noise"`
}

// canonical serializes the checksummed fields with fixed category and key
// ordering so checksums are stable across sites.
func (p *Packet) canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "v=%s;ts=%d;", p.Version, p.Timestamp)
	for _, cat := range PacketCategories {
		fmt.Fprintf(&b, "%s:", cat)
		weights := p.Weights[cat]
		keys := make([]string, 0, len(weights))
		for k := range weights {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%.9f,", k, weights[k])
		}
		b.WriteByte(';')
	}
	return b.String()
}

// ComputeChecksum returns the SHA-256 over the canonical form.
func (p *Packet) ComputeChecksum() string {
	sum := sha256.Sum256([]byte(p.canonical()))
	return hex.EncodeToString(sum[:])
}

// Seal stamps the packet's checksum.
func (p *Packet) Seal() {
	p.Checksum = p.ComputeChecksum()
}

// Verify recomputes the checksum against the advertised one.
func (p *Packet) Verify() bool {
	return p.Checksum != "" && p.Checksum == p.ComputeChecksum()
}

// NormalizeCategories scales every category's weights to a unit sum so
// packets are comparable across sites. Empty categories are left as empty
// maps, never nil. Weights are rounded to nine decimals, matching the
// checksum's canonical precision; a full-precision float can serialize as a
// digit run long enough to trip the scrubber's number rules.
func (p *Packet) NormalizeCategories() {
	if p.Weights == nil {
		p.Weights = map[string]map[string]float64{}
	}
	for _, cat := range PacketCategories {
		weights := p.Weights[cat]
		if weights == nil {
			p.Weights[cat] = map[string]float64{}
			continue
		}
		var sum float64
		for _, v := range weights {
			sum += v
		}
		if sum <= 0 {
			continue
		}
		for k, v := range weights {
			weights[k] = round9(v / sum)
		}
	}
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
