package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"cogito/internal/config"
	"cogito/internal/logging"
	"cogito/internal/privacy"
)

// Upload statuses.
const (
	StatusUploaded = "uploaded"
	StatusQueued   = "queued"
)

// Version travels in every packet so the aggregator can reject stale
// clients.
const Version = "1.0.0"

var (
	// ErrNetworkUnavailable reports an unreachable endpoint; the packet is
	// queued for the next sync.
	ErrNetworkUnavailable = errors.New("swarm: endpoint unreachable")
	// ErrChecksumMismatch reports a corrupt downloaded packet. The merge is
	// aborted and local weights are kept.
	ErrChecksumMismatch = errors.New("swarm: packet checksum mismatch")
)

// Client exchanges weight packets with the aggregator. Every outbound
// packet passes the privacy scrubber; residual findings abort the upload.
type Client struct {
	cfg      config.SwarmConfig
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	scrubber *privacy.Scrubber
	queue    *Queue
	rng      *rand.Rand
}

// NewClient builds a client. The scrubber is mandatory.
func NewClient(cfg config.SwarmConfig, scrubber *privacy.Scrubber, queuePath string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "swarm-uplink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		breaker:  breaker,
		scrubber: scrubber,
		queue:    NewQueue(queuePath),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BuildPacket assembles an unsealed packet from category weight maps.
// Unknown categories are dropped; the four standard ones are always
// present.
func (c *Client) BuildPacket(weights map[string]map[string]float64) *Packet {
	p := &Packet{
		Version:   Version,
		Timestamp: time.Now().Unix(),
		Weights:   map[string]map[string]float64{},
		Noise:     c.cfg.NoiseSigma,
	}
	for _, cat := range PacketCategories {
		p.Weights[cat] = map[string]float64{}
		for k, v := range weights[cat] {
			p.Weights[cat][k] = v
		}
	}
	p.NormalizeCategories()
	return p
}

// UploadResult reports the outcome of UploadWeights.
type UploadResult struct {
	Status   string `json:"status"`
	Checksum string `json:"checksum,omitempty"`
	Queued   int    `json:"queued,omitempty"` // offline queue depth after the call
}

// UploadWeights scrubs, noises, seals and posts a packet. An unreachable
// endpoint queues the packet and returns StatusQueued; a successful post
// drains the offline queue FIFO.
func (c *Client) UploadWeights(ctx context.Context, weights map[string]map[string]float64) (UploadResult, error) {
	p := c.BuildPacket(weights)

	if err := c.scrubCheck(p); err != nil {
		return UploadResult{}, err
	}

	c.addNoise(p)
	p.Seal()

	if err := c.post(ctx, p); err != nil {
		if err := c.queue.Enqueue(p); err != nil {
			return UploadResult{}, err
		}
		depth, _ := c.queue.Len()
		logging.Swarm("Upload queued (endpoint unreachable), queue depth %d", depth)
		return UploadResult{Status: StatusQueued, Queued: depth}, nil
	}

	drained, err := c.drainQueue(ctx)
	if err != nil {
		logging.Get(logging.CategorySwarm).Warn("Queue drain stopped: %v", err)
	}
	if drained > 0 {
		logging.Swarm("Drained %d queued packet(s)", drained)
	}
	depth, _ := c.queue.Len()
	return UploadResult{Status: StatusUploaded, Checksum: p.Checksum, Queued: depth}, nil
}

// scrubCheck validates the serialized packet through the scrubber. The
// payload is numeric weight data; any redaction means sensitive material
// leaked into strategy names and the upload must abort.
func (c *Client) scrubCheck(p *Packet) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("swarm: marshal packet: %w", err)
	}
	res := c.scrubber.Scrub(string(data), nil)
	if residual := c.scrubber.ValidateScrubbed(res.Scrubbed); len(residual) > 0 {
		return fmt.Errorf("%w: %d residual match(es)", privacy.ErrScrubResidual, len(residual))
	}
	if len(res.Redactions) > 0 {
		return fmt.Errorf("%w: packet contained %d sensitive value(s)", privacy.ErrScrubResidual, len(res.Redactions))
	}
	return nil
}

// addNoise applies Gaussian noise (differential-privacy stub) and
// renormalizes.
func (c *Client) addNoise(p *Packet) {
	if c.cfg.NoiseSigma <= 0 {
		return
	}
	for _, weights := range p.Weights {
		for k, v := range weights {
			weights[k] = math.Max(0, v+c.rng.NormFloat64()*c.cfg.NoiseSigma)
		}
	}
	p.NormalizeCategories()
}

// post sends one packet with exponential-backoff retries behind the
// circuit breaker. All transport failures collapse to
// ErrNetworkUnavailable.
func (c *Client) post(ctx context.Context, p *Packet) error {
	if c.cfg.Endpoint == "" {
		return ErrNetworkUnavailable
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("swarm: marshal packet: %w", err)
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		_, lastErr = c.breaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			if resp.StatusCode >= 300 {
				return nil, fmt.Errorf("status %d", resp.StatusCode)
			}
			return nil, nil
		})
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, lastErr)
}

// drainQueue posts queued packets FIFO, stopping at the first failure.
func (c *Client) drainQueue(ctx context.Context) (int, error) {
	drained := 0
	for {
		p, ok, err := c.queue.Peek()
		if err != nil || !ok {
			return drained, err
		}
		if err := c.post(ctx, p); err != nil {
			return drained, err
		}
		if err := c.queue.Dequeue(); err != nil {
			return drained, err
		}
		drained++
	}
}

// DownloadLatestWeights fetches the current global packet and verifies its
// checksum. Corrupt packets abort with ErrChecksumMismatch; the caller
// keeps its local weights. Delta downloads (missing categories) are
// verified over the categories present.
func (c *Client) DownloadLatestWeights(ctx context.Context) (*Packet, error) {
	if c.cfg.Endpoint == "" {
		return nil, ErrNetworkUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("swarm: build request: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	var p Packet
	if err := json.Unmarshal(res.([]byte), &p); err != nil {
		return nil, fmt.Errorf("swarm: parse packet: %w", err)
	}

	if !p.Verify() {
		logging.Get(logging.CategorySwarm).Error("Downloaded packet failed checksum verification")
		return nil, ErrChecksumMismatch
	}
	logging.Swarm("Downloaded global packet (checksum %.12s...)", p.Checksum)
	return &p, nil
}

// Merge folds a verified global packet into local weights:
// local = (1-ratio)*local + ratio*global, then renormalized. The default
// ratio 0.7 prioritizes the federated average while keeping site bias.
// Categories absent from the packet (delta download) are untouched.
func (c *Client) Merge(local map[string]map[string]float64, global *Packet) {
	ratio := c.cfg.MergeRatio
	for cat, gw := range global.Weights {
		if len(gw) == 0 {
			continue
		}
		lw, ok := local[cat]
		if !ok {
			lw = map[string]float64{}
			local[cat] = lw
		}
		for k, gv := range gw {
			lw[k] = (1-ratio)*lw[k] + ratio*gv
		}
		var sum float64
		for _, v := range lw {
			sum += v
		}
		if sum > 0 {
			for k, v := range lw {
				lw[k] = v / sum
			}
		}
	}
}

// QueueDepth returns the offline queue length.
func (c *Client) QueueDepth() int {
	n, _ := c.queue.Len()
	return n
}
