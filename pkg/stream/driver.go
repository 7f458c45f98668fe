package stream

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/clients"
	"github.com/ajitpratap0/comet/pkg/config"
	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/json"
	"github.com/ajitpratap0/comet/pkg/metrics"
	"github.com/ajitpratap0/comet/pkg/models"
	"github.com/ajitpratap0/comet/pkg/paginate"
	"github.com/ajitpratap0/comet/pkg/schema"
)

// driverState is the extraction state machine position.
type driverState int

const (
	stateInit driverState = iota
	stateFetching
	stateParsing
	statePaginate
	stateError
	stateDone
	stateFailed
)

func (s driverState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateFetching:
		return "fetching"
	case stateParsing:
		return "parsing"
	case statePaginate:
		return "paginate"
	case stateError:
		return "error"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Driver extracts one entity incrementally. The loop is strictly
// sequential per entity: fetch, parse, yield, commit the bookmark, then
// move to the next page. Bookmark and cursor are never touched
// concurrently, and cancellation is only honored between pages so a
// bookmark always reflects a whole committed page.
type Driver struct {
	entity    string
	endpoint  string
	client    *clients.HTTPClient
	breaker   *clients.CircuitBreaker
	bookmarks BookmarkStore
	flattener *schema.Flattener
	retry     *RetryPolicy
	cfg       *config.Config
	logger    *zap.Logger
	runID     string

	state driverState

	// now and sleep are swapped in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver builds a driver for one entity. Each driver owns its
// circuit breaker so a failing entity cannot trip a sibling's circuit.
func NewDriver(entity, endpoint string, client *clients.HTTPClient, bookmarks BookmarkStore, cfg *config.Config, logger *zap.Logger) *Driver {
	runID := uuid.NewString()
	return &Driver{
		entity:   entity,
		endpoint: endpoint,
		client:   client,
		breaker: clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			FailureThreshold: cfg.Reliability.FailureThreshold,
			RecoveryTimeout:  cfg.Reliability.RecoveryTimeout,
		}, entity, logger),
		bookmarks: bookmarks,
		flattener: schema.NewFlattener(cfg.Flatten.Separator, cfg.Flatten.MaxDepth, cfg.Flatten.Arrays, logger),
		retry:     NewRetryPolicy(&cfg.Reliability),
		cfg:       cfg,
		logger: logger.With(
			zap.String("component", "stream"),
			zap.String("entity", entity),
			zap.String("run_id", runID)),
		runID: runID,
		state: stateInit,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Extract starts the extraction and returns the record stream. Both
// channels are closed when the run finishes, fails, or is cancelled.
func (d *Driver) Extract(ctx context.Context) *models.RecordStream {
	records := make(chan *models.Record, d.cfg.Extraction.PageSize)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		if err := d.run(ctx, records); err != nil {
			errs <- err
		}
	}()

	return &models.RecordStream{Records: records, Errors: errs}
}

// run walks the page loop until pagination is exhausted, the retry
// budget runs out, or the context is cancelled. Stream-fatal errors are
// returned after the last good bookmark has already been committed, so
// a restart resumes from the last whole page.
func (d *Driver) run(ctx context.Context, records chan<- *models.Record) error {
	pageURL := d.firstPageURL()
	paginator := paginate.New()
	attempts := 0

	d.setState(stateFetching)
	d.logger.Info("extraction started",
		zap.String("url", pageURL),
		zap.Bool("incremental", d.cfg.Extraction.ReplicationKey != ""))

	for {
		// Cancellation is checked only at page boundaries.
		select {
		case <-ctx.Done():
			d.setState(stateDone)
			d.logger.Info("extraction cancelled", zap.Int("pages", paginator.Pages()))
			return nil
		default:
		}

		page, err := d.fetchAndParse(ctx, paginator, pageURL)
		if err != nil {
			if !errors.IsRetryable(err) {
				d.setState(stateFailed)
				metrics.ExtractionErrors.WithLabelValues(d.entity, string(errorType(err))).Inc()
				d.logger.Error("extraction failed", zap.Error(err))
				return err
			}

			attempts++
			if d.retry.Exhausted(attempts) {
				d.setState(stateFailed)
				metrics.ExtractionErrors.WithLabelValues(d.entity, string(errorType(err))).Inc()
				return errors.Wrapf(err, errorType(err),
					"retry budget exhausted after %d attempts", attempts).
					WithEntity(d.entity).
					WithHint("check upstream availability, then resume from the committed bookmark")
			}

			d.setState(stateError)
			delay := d.retryDelay(err, attempts)
			metrics.Retries.WithLabelValues(d.entity, string(errorType(err))).Inc()
			d.logger.Warn("page fetch failed, backing off",
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
				zap.Error(err))
			if serr := d.sleep(ctx, delay); serr != nil {
				d.setState(stateDone)
				return nil
			}
			d.setState(stateFetching)
			continue
		}
		attempts = 0

		d.emitPage(page, paginator.Pages(), records)
		d.commitBookmark(page)
		metrics.PagesFetched.WithLabelValues(d.entity).Inc()

		if !paginator.HasMore(page) {
			d.setState(stateDone)
			d.logger.Info("extraction complete", zap.Int("pages", paginator.Pages()))
			return nil
		}

		d.setState(statePaginate)
		pageURL = paginator.NextURL(page)
		d.setState(stateFetching)
	}
}

// fetchAndParse performs one page request under the circuit breaker and
// decodes the body. A parse failure is retriable at the page level, so
// the paginator's position is unchanged and the same URL is fetched
// again.
func (d *Driver) fetchAndParse(ctx context.Context, paginator *paginate.Paginator, pageURL string) (*paginate.Page, error) {
	body := json.GetBuffer()
	defer json.PutBuffer(body)

	err := d.breaker.Execute(func() error {
		resp, err := d.client.Get(ctx, pageURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := clients.ClassifyStatus(d.entity, resp); err != nil {
			return err
		}

		body.Reset()
		if _, err := io.Copy(body, resp.Body); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read page body").
				WithEntity(d.entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.setState(stateParsing)
	return paginator.ParsePage(body.Bytes())
}

// emitPage flattens and sends every row in upstream order. Flattening
// conflicts are logged and the record still flows; the original values
// stay reachable under their flat keys.
func (d *Driver) emitPage(page *paginate.Page, pageNbr int, records chan<- *models.Record) {
	for _, row := range page.Results {
		flat, conflicts := d.flattener.Flatten(row)
		for _, c := range conflicts {
			d.logger.Warn("flatten conflict",
				zap.String("path", c.Path),
				zap.String("kind", string(c.Kind)))
		}

		record := models.NewRecord(d.entity, flat)
		record.SetMetadata("run_id", d.runID)
		record.SetMetadata("page", pageNbr)
		records <- record
	}
	metrics.RecordsExtracted.WithLabelValues(d.entity).Add(float64(len(page.Results)))
}

// commitBookmark advances the bookmark to the largest replication key
// value in the page. Called exactly once per page, after the page's
// records have been emitted.
func (d *Driver) commitBookmark(page *paginate.Page) {
	key := d.cfg.Extraction.ReplicationKey
	if key == "" || len(page.Results) == 0 {
		return
	}

	var max time.Time
	for _, row := range page.Results {
		if t, ok := parseTimestamp(row[key]); ok && t.After(max) {
			max = t
		}
	}
	if max.IsZero() {
		return
	}

	if current, ok := d.bookmarks.Get(d.entity); !ok || max.After(current) {
		d.bookmarks.Set(d.entity, max)
		d.logger.Debug("bookmark committed", zap.Time("bookmark", max))
	}
}

// firstPageURL builds the initial request. With a replication key the
// filter is gte (start - overlap): the overlap window re-reads rows
// written non-atomically around the bookmark, trading bounded duplicate
// re-emission for completeness. Without one, a full scan ordered
// descending by the unique key lets a crash-restart stop early instead
// of rereading the whole table.
func (d *Driver) firstPageURL() string {
	params := url.Values{}
	params.Set("page_size", strconv.Itoa(d.cfg.Extraction.PageSize))
	params.Set("page_mode", "sequenced")

	key := d.cfg.Extraction.ReplicationKey
	if key != "" {
		start := d.startingTimestamp()
		since := start.Add(-d.cfg.Extraction.Overlap())
		params.Set(key+"__gte", since.UTC().Format(time.RFC3339))
		params.Set("ordering", key)
	} else {
		params.Set("ordering", "-"+d.cfg.Extraction.UniqueKey)
	}

	return d.endpoint + "?" + params.Encode()
}

// startingTimestamp is max(persisted bookmark, configured start date).
func (d *Driver) startingTimestamp() time.Time {
	start := d.cfg.Extraction.StartDate
	if bookmark, ok := d.bookmarks.Get(d.entity); ok && bookmark.After(start) {
		start = bookmark
	}
	return start
}

// retryDelay prefers an upstream Retry-After over computed backoff.
func (d *Driver) retryDelay(err error, attempt int) time.Duration {
	if after, ok := clients.RetryAfter(err); ok && after > 0 {
		return after
	}
	return d.retry.Delay(attempt)
}

func (d *Driver) setState(next driverState) {
	if d.state == next {
		return
	}
	d.logger.Debug("state transition",
		zap.Stringer("from", d.state),
		zap.Stringer("to", next))
	d.state = next
}

// errorType extracts the taxonomy type for metric labels.
func errorType(err error) errors.ErrorType {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Type
	}
	return errors.ErrorTypeInternal
}

// parseTimestamp accepts the timestamp layouts the upstream emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(value interface{}) (time.Time, bool) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

