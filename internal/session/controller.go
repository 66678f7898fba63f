package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/boutique/internal/apiclient"
	"github.com/hyperjump/boutique/internal/ingest"
	"github.com/hyperjump/boutique/internal/models"
	"go.uber.org/zap"
)

// DefaultFallbackMessage is shown when a failure carries no backend detail.
const DefaultFallbackMessage = "An error occurred during the search"

// Searcher is the backend surface a Controller needs. *apiclient.Client implements it.
type Searcher interface {
	SearchByKeyword(ctx context.Context, query string, topK int) (*models.SearchResponse, error)
	SearchByImageUpload(ctx context.Context, file *ingest.File, topK int) (*models.SearchResponse, error)
	SearchByImageURL(ctx context.Context, imageURL string, topK int) (*models.SearchResponse, error)
}

// Controller owns the state of one search surface.
// Submissions are never blocked or cancelled; only the latest one decides the final state.
type Controller struct {
	id       string
	kind     models.SearchType
	searcher Searcher
	topK     int
	fallback string
	observer func(State)
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	lastSeq uint64
	wg      sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithTopK sets the number of results requested per search.
func WithTopK(k int) Option {
	return func(c *Controller) { c.topK = k }
}

// WithObserver registers fn to receive every applied state. fn runs with the
// controller locked and must not call back into it.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithFallbackMessage overrides DefaultFallbackMessage.
func WithFallbackMessage(msg string) Option {
	return func(c *Controller) { c.fallback = msg }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates an Idle controller for a surface of the given kind.
func NewController(kind models.SearchType, searcher Searcher, opts ...Option) *Controller {
	c := &Controller{
		id:       uuid.NewString(),
		kind:     kind,
		searcher: searcher,
		topK:     models.DefaultTopK,
		fallback: DefaultFallbackMessage,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("session", c.id), zap.String("surface", string(kind)))
	return c
}

// ID returns the controller's session ID.
func (c *Controller) ID() string { return c.id }

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubmitQuery starts a keyword search. A blank query is ignored: ok is false and
// nothing changes. Otherwise the controller is Loading when SubmitQuery returns.
func (c *Controller) SubmitQuery(ctx context.Context, query string) (seq uint64, ok bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, false
	}
	return c.submit(ctx, func(ctx context.Context) (*models.SearchResponse, error) {
		return c.searcher.SearchByKeyword(ctx, query, c.topK)
	}), true
}

// SubmitImage starts an image search with the file currently selected in p.
// ok is false when p holds no accepted file.
func (c *Controller) SubmitImage(ctx context.Context, p *ingest.Pipeline) (seq uint64, ok bool) {
	return c.SubmitFile(ctx, p.SelectedFile())
}

// SubmitFile starts an image search for a file already accepted by an ingest.Pipeline.
func (c *Controller) SubmitFile(ctx context.Context, f *ingest.File) (seq uint64, ok bool) {
	if f == nil {
		return 0, false
	}
	return c.submit(ctx, func(ctx context.Context) (*models.SearchResponse, error) {
		return c.searcher.SearchByImageUpload(ctx, f, c.topK)
	}), true
}

// SubmitImageURL starts an image search by URL. A blank URL is ignored.
func (c *Controller) SubmitImageURL(ctx context.Context, imageURL string) (seq uint64, ok bool) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return 0, false
	}
	return c.submit(ctx, func(ctx context.Context) (*models.SearchResponse, error) {
		return c.searcher.SearchByImageURL(ctx, imageURL, c.topK)
	}), true
}

// Wait blocks until every submitted request has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) submit(ctx context.Context, call func(context.Context) (*models.SearchResponse, error)) uint64 {
	c.mu.Lock()
	c.lastSeq++
	seq := c.lastSeq
	c.applyLocked(event{kind: evSubmit, seq: seq})
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("search submitted", zap.Uint64("seq", seq))
	go func() {
		defer c.wg.Done()
		resp, err := call(ctx)
		if err != nil {
			c.fail(seq, err)
			return
		}
		var results []models.ProductResult
		if resp != nil {
			results = resp.Results
		}
		c.mu.Lock()
		applied := c.applyLocked(event{kind: evResolved, seq: seq, results: results})
		c.mu.Unlock()
		c.logger.Debug("search resolved", zap.Uint64("seq", seq), zap.Int("results", len(results)), zap.Bool("applied", applied))
	}()
	return seq
}

func (c *Controller) fail(seq uint64, err error) {
	msg := c.fallback
	if detail, ok := apiclient.DetailOf(err); ok {
		msg = detail
	}
	c.mu.Lock()
	applied := c.applyLocked(event{kind: evFailed, seq: seq, message: msg})
	c.mu.Unlock()
	c.logger.Info("search failed", zap.Uint64("seq", seq), zap.Bool("applied", applied), zap.Error(err))
}

func (c *Controller) applyLocked(ev event) bool {
	next, applied := transition(c.state, ev)
	if !applied {
		return false
	}
	c.state = next
	if c.observer != nil {
		c.observer(next)
	}
	return true
}
