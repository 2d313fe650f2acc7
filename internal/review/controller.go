// Package review drives a contract review from upload through polling to a
// terminal state. A Controller owns one review at a time: callers upload a
// document, the controller starts the review job and polls it in the
// background, and observers read progress through Snapshot, Wait, or the
// notify callback.
package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lexsuite/review-cli/internal/model"
	"github.com/lexsuite/review-cli/internal/resilience"
	"github.com/lexsuite/review-cli/pkg/reviewapi"
)

// State is the controller's lifecycle phase. Upload progress is tracked
// separately via Snapshot.IsUploading so a failed upload leaves the
// controller in StateNone, ready for another attempt.
type State int

const (
	StateNone State = iota
	StatePolling
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the controller has stopped polling for good.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// ErrPollTimeout is stored as the controller error when a review stays
// non-terminal past Config.PollTimeout.
var ErrPollTimeout = errors.New("review did not finish before the polling deadline")

// ValidationError rejects a file before any network traffic happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Config tunes upload validation and polling behavior. Tests shrink the
// intervals to milliseconds; production values come from the config file.
type Config struct {
	MaxFileSize     int64
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxPollFailures int
}

// DefaultConfig matches the backend's limits: .docx uploads up to 10 MiB,
// one poll every 2s, and a 5 minute ceiling per review.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:     10 * 1024 * 1024,
		PollInterval:    2 * time.Second,
		PollTimeout:     5 * time.Minute,
		MaxPollFailures: 3,
	}
}

// Snapshot is a point-in-time copy of the controller's observable state.
type Snapshot struct {
	State       State
	IsUploading bool
	Title       string
	Review      *model.Review
	Err         error
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotify registers a callback invoked after every state change with a
// fresh snapshot. The callback runs on the controller's goroutine and must
// not call back into the controller.
func WithNotify(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.notify = fn
	}
}

// Controller runs the upload -> start -> poll lifecycle for one review at a
// time. All mutation happens under mu; the poll loop is a single goroutine,
// so at most one GetReview call is ever in flight.
type Controller struct {
	client reviewapi.Client
	cfg    Config
	notify func(Snapshot)

	mu          sync.Mutex
	state       State
	isUploading bool
	title       string
	review      *model.Review
	err         error
	gen         int
	cancel      context.CancelFunc
	done        chan struct{}
}

// New returns a Controller in StateNone.
func New(client reviewapi.Client, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateFile checks extension and size without touching the network.
func ValidateFile(path string, maxSize int64) error {
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return &ValidationError{Reason: fmt.Sprintf("unsupported file type %q, only .docx contracts are accepted", filepath.Ext(path))}
	}
	info, err := os.Stat(path)
	if err != nil {
		return eris.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		return &ValidationError{Reason: fmt.Sprintf("%s is a directory", path)}
	}
	if info.Size() > maxSize {
		return &ValidationError{Reason: fmt.Sprintf("file is %d bytes, the limit is %d bytes", info.Size(), maxSize)}
	}
	return nil
}

// Upload validates and uploads the contract at path, starts a review for it,
// and kicks off background polling. It returns once the review job is
// created; use Wait or Snapshot to observe polling progress. If title is
// empty the file name without its extension is used.
//
// Any previous review owned by this controller is reset first, which also
// discards responses from its in-flight poll requests.
func (c *Controller) Upload(ctx context.Context, path, title string) error {
	if err := ValidateFile(path, c.cfg.MaxFileSize); err != nil {
		return err
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	c.Reset()

	c.mu.Lock()
	c.isUploading = true
	c.title = title
	gen := c.gen
	c.mu.Unlock()
	c.publish()

	file, err := os.Open(path)
	if err != nil {
		c.failUpload(gen, eris.Wrapf(err, "failed to open %s", path))
		return eris.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	resp, err := c.client.UploadContract(ctx, file, filepath.Base(path), title)
	if err != nil {
		err = eris.Wrap(err, "upload failed")
		c.failUpload(gen, err)
		return err
	}
	if !resp.Success {
		err = eris.Errorf("upload rejected: %s", resp.Message)
		c.failUpload(gen, err)
		return err
	}

	rev, err := c.client.StartReview(ctx, resp.ContractID)
	if err != nil {
		err = eris.Wrapf(err, "failed to start review for contract %s", resp.ContractID)
		c.failUpload(gen, err)
		return err
	}

	zap.L().Info("review started",
		zap.String("contract_id", resp.ContractID),
		zap.String("review_id", rev.ID),
		zap.String("title", title))

	c.mu.Lock()
	if c.gen != gen {
		// Reset raced with the upload; drop the stale review.
		c.mu.Unlock()
		return nil
	}
	c.isUploading = false
	c.review = rev
	c.state = StatePolling
	c.err = nil
	c.done = make(chan struct{})
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	done := c.done
	c.mu.Unlock()
	c.publish()

	go c.pollLoop(pollCtx, gen, rev.ID, done)
	return nil
}

// failUpload clears the uploading flag and records err, provided no Reset
// happened in between. The controller stays in StateNone.
func (c *Controller) failUpload(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.isUploading = false
	c.err = err
	c.mu.Unlock()
	c.publish()
}

// pollLoop polls the review until it reaches a terminal status, the timeout
// elapses, or ctx is cancelled. The first poll fires immediately; subsequent
// polls are spaced by PollInterval from the end of the previous request, so
// requests never overlap regardless of backend latency.
func (c *Controller) pollLoop(ctx context.Context, gen int, reviewID string, done chan struct{}) {
	defer close(done)

	start := time.Now()
	failures := 0

	for {
		rev, err := c.client.GetReview(ctx, reviewID)
		if ctx.Err() != nil {
			// Cancelled while the request was in flight. The response,
			// success or failure, belongs to a review nobody owns anymore.
			return
		}

		if err != nil {
			if transientPollError(err) && failures+1 < c.cfg.MaxPollFailures {
				failures++
				zap.L().Warn("transient poll failure",
					zap.String("review_id", reviewID),
					zap.Int("consecutive_failures", failures),
					zap.Error(err))
			} else {
				c.finish(gen, StateFailed, nil, eris.Wrapf(err, "polling review %s failed", reviewID))
				return
			}
		} else {
			failures = 0
			c.applyProgress(gen, rev)
			switch rev.Status {
			case model.ReviewCompleted:
				c.finish(gen, StateCompleted, rev, nil)
				return
			case model.ReviewFailed:
				msg := rev.ErrorMessage
				if msg == "" {
					msg = "review failed without an error message"
				}
				c.finish(gen, StateFailed, rev, eris.New(msg))
				return
			}
		}

		if time.Since(start) >= c.cfg.PollTimeout {
			zap.L().Warn("review polling timed out",
				zap.String("review_id", reviewID),
				zap.Duration("elapsed", time.Since(start)))
			c.finish(gen, StateTimedOut, nil, ErrPollTimeout)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func transientPollError(err error) bool {
	if resilience.IsTransient(err) {
		return true
	}
	var apiErr *reviewapi.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return false
}

// applyProgress publishes an intermediate (non-terminal) review snapshot.
func (c *Controller) applyProgress(gen int, rev *model.Review) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.review = rev
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) finish(gen int, state State, rev *model.Review, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = state
	if rev != nil {
		c.review = rev
	}
	c.err = err
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.publish()
}

// Reset cancels any active polling and returns the controller to StateNone.
// It is safe to call at any time, any number of times. Responses from poll
// requests that were in flight when Reset ran are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateNone
	c.isUploading = false
	c.title = ""
	c.review = nil
	c.err = nil
	c.done = nil
	c.mu.Unlock()
	c.publish()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotUnlocked()
}

func (c *Controller) snapshotUnlocked() Snapshot {
	s := Snapshot{
		State:       c.state,
		IsUploading: c.isUploading,
		Title:       c.title,
		Err:         c.err,
	}
	if c.review != nil {
		rev := *c.review
		s.Review = &rev
	}
	return s
}

func (c *Controller) publish() {
	if c.notify == nil {
		return
	}
	c.notify(c.Snapshot())
}

// Wait blocks until the active review reaches a terminal state, then returns
// the final snapshot. If no review is in flight it returns immediately. A
// cancelled ctx aborts the wait but leaves the review polling.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return c.Snapshot(), nil
	}

	select {
	case <-ctx.Done():
		return c.Snapshot(), eris.Wrap(ctx.Err(), "wait aborted")
	case <-done:
		return c.Snapshot(), nil
	}
}

// Close cancels any active polling. The controller must not be used after
// Close.
func (c *Controller) Close() {
	c.Reset()
}
