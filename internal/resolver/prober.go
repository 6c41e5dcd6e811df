package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openhood/bannerd/internal/observability"
	"github.com/openhood/bannerd/internal/urlutil"
)

// HTTPClient is the subset of an HTTP client the prober needs. Satisfied by
// *http.Client and by the resilient client's StandardClient().
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the outcome of driving a Sequencer to a terminal state.
type Result struct {
	// Reference is the original media reference.
	Reference string `json:"reference"`

	// URL is the resolved candidate, or the placeholder when exhausted.
	URL string `json:"url"`

	// State is the terminal state, either loaded or exhausted.
	State State `json:"state"`

	// Attempts is the number of candidates probed in this run.
	Attempts int `json:"attempts"`

	// Tried lists the candidate URLs probed in this run, in order.
	Tried []string `json:"tried,omitempty"`
}

// Prober verifies candidate URLs by issuing HTTP GET requests and feeding
// the outcomes back into a Sequencer. Probes for a single reference are
// strictly sequential; there is never more than one request in flight.
type Prober struct {
	client  HTTPClient
	baseURL string
	delay   time.Duration
	logger  *slog.Logger
}

// NewProber creates a Prober. baseURL anchors relative candidate paths;
// delay is an explicit pause inserted between consecutive probes.
func NewProber(client HTTPClient, baseURL string, delay time.Duration) *Prober {
	return &Prober{
		client:  client,
		baseURL: urlutil.NormalizeBaseURL(baseURL),
		delay:   delay,
		logger:  slog.Default(),
	}
}

// WithLogger sets the structured logger used for probe diagnostics.
func (p *Prober) WithLogger(logger *slog.Logger) *Prober {
	p.logger = observability.WithComponent(logger, "prober")
	return p
}

// Resolve drives the sequencer until it reaches a terminal state, probing
// each candidate in turn. Context cancellation aborts resolution; tried
// state accumulated so far is kept so a later run resumes where this one
// stopped.
func (p *Prober) Resolve(ctx context.Context, seq *Sequencer) (Result, error) {
	result := Result{Reference: seq.Reference()}

	for seq.State() == StateResolving {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if result.Attempts > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(p.delay):
			}
		}

		candidate := seq.Current()
		result.Attempts++
		result.Tried = append(result.Tried, candidate)

		ok, err := p.probe(ctx, candidate)
		if err != nil {
			return result, err
		}

		if ok {
			seq.RecordSuccess()
		} else {
			seq.RecordFailure()
		}
	}

	result.URL = seq.Current()
	result.State = seq.State()

	p.logger.Debug("resolution settled",
		slog.String("reference", seq.Reference()),
		slog.String("url", result.URL),
		slog.String("state", result.State.String()),
		slog.Int("attempts", result.Attempts),
	)

	return result, nil
}

// probe issues a single GET for the candidate. A 200 counts as success; any
// other status is a miss. Transport errors abort resolution only when the
// context was cancelled; otherwise they count as misses so the cascade can
// continue.
func (p *Prober) probe(ctx context.Context, candidate string) (bool, error) {
	target := candidate
	if !urlutil.IsRemoteURL(target) {
		target = urlutil.JoinPath(p.baseURL, target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		p.logger.Debug("unprobeable candidate",
			slog.String("candidate", candidate),
			slog.String("error", err.Error()),
		)
		return false, nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug("probe failed",
			slog.String("candidate", candidate),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, nil
	}

	p.logger.Debug("probe miss",
		slog.String("candidate", candidate),
		slog.Int("status", resp.StatusCode),
	)
	return false, nil
}

// String implements fmt.Stringer for logging.
func (r Result) String() string {
	return fmt.Sprintf("%s -> %s (%s, %d attempts)", r.Reference, r.URL, r.State, r.Attempts)
}
