package service

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Middleware decorates a Backend.
type Middleware func(Backend) Backend

// Chain wraps b with mws; the first middleware is the outermost.
func Chain(b Backend, mws ...Middleware) Backend {
	for i := len(mws) - 1; i >= 0; i-- {
		b = mws[i](b)
	}
	return b
}

// LoggingMiddleware logs every call with its arguments and outcome.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Backend) Backend {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Backend
}

func (mw loggingMiddleware) log(err error, keyvals ...interface{}) {
	if err != nil {
		level.Error(mw.logger).Log(append(keyvals, "err", err)...)
		return
	}
	level.Debug(mw.logger).Log(keyvals...)
}

func (mw loggingMiddleware) ListItems(ctx context.Context) (items []Task, err error) {
	defer func(begin time.Time) {
		mw.log(err, "method", "ListItems", "items", len(items), "took", time.Since(begin))
	}(time.Now())
	return mw.next.ListItems(ctx)
}

func (mw loggingMiddleware) CreateItem(ctx context.Context, title, owner string) (t Task, err error) {
	defer func(begin time.Time) {
		mw.log(err, "method", "CreateItem", "title", title, "owner", owner, "id", t.ID, "took", time.Since(begin))
	}(time.Now())
	return mw.next.CreateItem(ctx, title, owner)
}

func (mw loggingMiddleware) UpdateItem(ctx context.Context, id int64, patch Patch) (t Task, err error) {
	defer func(begin time.Time) {
		mw.log(err, "method", "UpdateItem", "id", id, "completed", patch.Completed, "took", time.Since(begin))
	}(time.Now())
	return mw.next.UpdateItem(ctx, id, patch)
}

func (mw loggingMiddleware) DeleteItem(ctx context.Context, id int64) (err error) {
	defer func(begin time.Time) {
		mw.log(err, "method", "DeleteItem", "id", id, "took", time.Since(begin))
	}(time.Now())
	return mw.next.DeleteItem(ctx, id)
}

func (mw loggingMiddleware) GetSession(ctx context.Context) (s *Session, err error) {
	defer func() {
		mw.log(err, "method", "GetSession", "signed_in", s != nil)
	}()
	return mw.next.GetSession(ctx)
}

func (mw loggingMiddleware) OnSessionChange(l SessionListener) func() {
	return mw.next.OnSessionChange(func(event SessionEvent, s *Session) {
		mw.log(nil, "event", string(event), "signed_in", s != nil)
		l(event, s)
	})
}

func (mw loggingMiddleware) SignInWithEmail(ctx context.Context, email string) (err error) {
	defer func() {
		mw.log(err, "method", "SignInWithEmail", "email", email)
	}()
	return mw.next.SignInWithEmail(ctx, email)
}

func (mw loggingMiddleware) VerifyEmailCode(ctx context.Context, email, code string) (s *Session, err error) {
	defer func() {
		mw.log(err, "method", "VerifyEmailCode", "email", email)
	}()
	return mw.next.VerifyEmailCode(ctx, email, code)
}

func (mw loggingMiddleware) SignOut(ctx context.Context) (err error) {
	defer func() {
		mw.log(err, "method", "SignOut")
	}()
	return mw.next.SignOut(ctx)
}

// InstrumentingMiddleware records call counts and latency of the store operations.
func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Backend) Backend {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	Backend
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = AsError(err).Kind.String()
	}
	mw.requestCount.With("method", method, "outcome", outcome).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) ListItems(ctx context.Context) (items []Task, err error) {
	defer func(begin time.Time) { mw.observe("list_items", begin, err) }(time.Now())
	return mw.Backend.ListItems(ctx)
}

func (mw instrumentingMiddleware) CreateItem(ctx context.Context, title, owner string) (t Task, err error) {
	defer func(begin time.Time) { mw.observe("create_item", begin, err) }(time.Now())
	return mw.Backend.CreateItem(ctx, title, owner)
}

func (mw instrumentingMiddleware) UpdateItem(ctx context.Context, id int64, patch Patch) (t Task, err error) {
	defer func(begin time.Time) { mw.observe("update_item", begin, err) }(time.Now())
	return mw.Backend.UpdateItem(ctx, id, patch)
}

func (mw instrumentingMiddleware) DeleteItem(ctx context.Context, id int64) (err error) {
	defer func(begin time.Time) { mw.observe("delete_item", begin, err) }(time.Now())
	return mw.Backend.DeleteItem(ctx, id)
}

// BreakerMiddleware fails store calls fast while the store keeps failing at
// the transport level. Errors reported by the store do not count as failures.
func BreakerMiddleware(cb *gobreaker.CircuitBreaker) Middleware {
	return func(next Backend) Backend {
		return breakerMiddleware{cb, next}
	}
}

type breakerMiddleware struct {
	cb *gobreaker.CircuitBreaker
	Backend
}

// run executes call inside the breaker and returns the call's own error.
func (mw breakerMiddleware) run(call func() error) error {
	var callErr error
	_, err := mw.cb.Execute(func() (interface{}, error) {
		callErr = call()
		if e := AsError(callErr); e != nil && !e.Reported() {
			return nil, callErr
		}
		return nil, nil
	})
	if callErr != nil {
		return callErr
	}
	if err != nil {
		return Transport(err)
	}
	return nil
}

func (mw breakerMiddleware) ListItems(ctx context.Context) (items []Task, err error) {
	err = mw.run(func() error {
		var e error
		items, e = mw.Backend.ListItems(ctx)
		return e
	})
	return items, err
}

func (mw breakerMiddleware) CreateItem(ctx context.Context, title, owner string) (t Task, err error) {
	err = mw.run(func() error {
		var e error
		t, e = mw.Backend.CreateItem(ctx, title, owner)
		return e
	})
	return t, err
}

func (mw breakerMiddleware) UpdateItem(ctx context.Context, id int64, patch Patch) (t Task, err error) {
	err = mw.run(func() error {
		var e error
		t, e = mw.Backend.UpdateItem(ctx, id, patch)
		return e
	})
	return t, err
}

func (mw breakerMiddleware) DeleteItem(ctx context.Context, id int64) error {
	return mw.run(func() error {
		return mw.Backend.DeleteItem(ctx, id)
	})
}

// RateLimitMiddleware delays store calls to stay under the limiter's rate.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next Backend) Backend {
		return rateLimitMiddleware{limiter, next}
	}
}

type rateLimitMiddleware struct {
	limiter *rate.Limiter
	Backend
}

func (mw rateLimitMiddleware) wait(ctx context.Context) error {
	if err := mw.limiter.Wait(ctx); err != nil {
		return Transport(err)
	}
	return nil
}

func (mw rateLimitMiddleware) ListItems(ctx context.Context) ([]Task, error) {
	if err := mw.wait(ctx); err != nil {
		return nil, err
	}
	return mw.Backend.ListItems(ctx)
}

func (mw rateLimitMiddleware) CreateItem(ctx context.Context, title, owner string) (Task, error) {
	if err := mw.wait(ctx); err != nil {
		return Task{}, err
	}
	return mw.Backend.CreateItem(ctx, title, owner)
}

func (mw rateLimitMiddleware) UpdateItem(ctx context.Context, id int64, patch Patch) (Task, error) {
	if err := mw.wait(ctx); err != nil {
		return Task{}, err
	}
	return mw.Backend.UpdateItem(ctx, id, patch)
}

func (mw rateLimitMiddleware) DeleteItem(ctx context.Context, id int64) error {
	if err := mw.wait(ctx); err != nil {
		return err
	}
	return mw.Backend.DeleteItem(ctx, id)
}
