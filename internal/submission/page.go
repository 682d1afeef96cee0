// Package submission drives a lead form through its page lifecycle: the
// enrichment done on load, validation on user input, and the guarded
// submit that validates, enriches, posts and redirects.
package submission

import (
	"context"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/leadform/internal/attribution"
	"github.com/jonathan/leadform/internal/dynamic"
	"github.com/jonathan/leadform/internal/fetch"
	"github.com/jonathan/leadform/internal/fingerprint"
	"github.com/jonathan/leadform/internal/form"
	"github.com/jonathan/leadform/internal/geo"
	"github.com/jonathan/leadform/internal/identity"
	"github.com/jonathan/leadform/internal/location"
	"github.com/jonathan/leadform/internal/validation"
)

const tracerName = "github.com/jonathan/leadform/internal/submission"

// Options holds the collaborators a Page works with. Location and Cookies
// are required.
type Options struct {
	Location   *location.Context
	Cookies    identity.CookieStore
	Validator  *validation.Validator
	Resolver   *fingerprint.Resolver
	Geo        *geo.Client // nil skips the geo lookup
	Navigator  location.Navigator
	HTTP       *fetch.Options
	Logger     *zap.Logger
	OnProgress ProgressCallback
	Identity   []identity.Option
}

// Result describes a successful submission.
type Result struct {
	Action     string
	Payload    url.Values
	StatusCode int
	Target     string
	Visitor    identity.Visitor
}

// Page is one lead form with its collaborators.
type Page struct {
	form      *form.Form
	loc       *location.Context
	cookies   identity.CookieStore
	store     *identity.Store
	validator *validation.Validator
	resolver  *fingerprint.Resolver
	dynamic   *dynamic.Controller
	geo       *geo.Client
	navigator location.Navigator
	http      *fetch.Options
	logger    *zap.Logger
	tracer    trace.Tracer
	progress  ProgressCallback

	mu      sync.Mutex
	state   State
	geoDone <-chan struct{}
}

// NewPage binds a form to its collaborators.
func NewPage(f *form.Form, opts Options) (*Page, error) {
	if f == nil {
		return nil, &Error{Message: "form is required"}
	}
	if opts.Location == nil {
		return nil, &Error{Message: "location is required"}
	}
	if opts.Cookies == nil {
		return nil, &Error{Message: "cookie store is required"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator := opts.Validator
	if validator == nil {
		validator = validation.New(nil, logger)
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = fingerprint.NewResolver()
	}
	navigator := opts.Navigator
	if navigator == nil {
		navigator = &location.Recorder{}
	}
	httpOpts := opts.HTTP
	if httpOpts == nil {
		httpOpts = fetch.DefaultOptions()
	}
	return &Page{
		form:      f,
		loc:       opts.Location,
		cookies:   opts.Cookies,
		store:     identity.NewStore(opts.Cookies, opts.Identity...),
		validator: validator,
		resolver:  resolver,
		dynamic:   dynamic.New(f, logger),
		geo:       opts.Geo,
		navigator: navigator,
		http:      httpOpts,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		progress:  opts.OnProgress,
	}, nil
}

// Form returns the page's form.
func (p *Page) Form() *form.Form {
	return p.form
}

// State returns the current submission state.
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Dynamic returns the page's dynamic field controller.
func (p *Page) Dynamic() *dynamic.Controller {
	return p.dynamic
}

func (p *Page) transition(ctx context.Context, s State, message string, content any) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	trace.SpanFromContext(ctx).AddEvent(s.String())
	p.logger.Debug("submission state", zap.Stringer("state", s), zap.String("message", message))
	if p.progress != nil {
		p.progress(ProgressEvent{State: s, Message: message, Content: content})
	}
}

// Load runs the page-load enrichment: attribution, identity ids and the
// fingerprint, then starts the geo lookup in the background and brings the
// dynamic fields in line with the subject.
func (p *Page) Load(ctx context.Context) (identity.Visitor, error) {
	ctx, span := p.tracer.Start(ctx, "leadform.load")
	defer span.End()

	visitor, err := p.populate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrichment failed")
		return visitor, err
	}
	if p.geo != nil {
		done := geo.Start(context.WithoutCancel(ctx), p.form, p.geo, p.logger)
		p.mu.Lock()
		p.geoDone = done
		p.mu.Unlock()
	}
	p.dynamic.Sync()
	return visitor, nil
}

// GeoDone returns a channel closed when the geo lookup started by Load
// ends. It is nil when no lookup was started. Submit never waits on it.
func (p *Page) GeoDone() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.geoDone
}

// populate writes attribution values and the visitor ids. It returns only
// once the fingerprint has been written.
func (p *Page) populate(ctx context.Context) (identity.Visitor, error) {
	params := p.loc.Params()
	durableID := p.store.DurableID()
	visitor := identity.Visitor{
		DomoID:            durableID,
		AnalyticsClientID: p.store.AnalyticsID(),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		attribution.Apply(p.form, params, p.cookies.Get(attribution.FallbackCookie))
		p.form.SetAll(DurableIDField, visitor.DomoID)
		p.form.SetAll(AnalyticsIDField, visitor.AnalyticsClientID)
		return nil
	})
	var ffid string
	g.Go(func() error {
		id, err := p.resolver.Populate(gCtx, p.form, params, durableID)
		if err != nil {
			return &Error{Message: "fingerprint resolution failed", Cause: err}
		}
		ffid = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return visitor, err
	}
	visitor.FingerprintID = ffid
	return visitor, nil
}

// Change records a user edit. A subject change re-syncs the dynamic fields
// and a required select is validated on change. It returns false when the
// field does not exist.
func (p *Page) Change(name, value string) bool {
	if !p.form.SetValue(name, value) {
		return false
	}
	if name == dynamic.SubjectField {
		p.dynamic.Sync()
	}
	if p.form.Tag(name) == "select" && p.form.Required(name) {
		p.validator.Select(p.form, name)
	}
	return true
}

// Blur validates a field the user has left.
func (p *Page) Blur(name string) bool {
	if _, ok := p.validator.Rule(name); ok {
		return p.validator.Field(p.form, name)
	}
	if p.form.Tag(name) == "select" && p.form.Required(name) {
		return p.validator.Select(p.form, name)
	}
	return true
}

// Submit validates, enriches, serializes and posts the form, then navigates
// to the redirect target. Validation failures return an *InvalidError and
// leave the page idle; a failed post returns the transport error. Nothing
// is retried. Concurrent calls are not serialized.
func (p *Page) Submit(ctx context.Context) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "leadform.submit")
	defer span.End()

	p.transition(ctx, Validating, "validating form", nil)
	p.dynamic.Sync()
	ok, outcomes := p.validator.All(p.form)
	if !ok {
		err := &InvalidError{Failures: failures(outcomes)}
		p.logger.Info("Please fix errors and try again.", zap.Int("failures", len(err.Failures)))
		span.SetStatus(codes.Error, "invalid")
		p.transition(ctx, Idle, "validation failed", err.Failures)
		return nil, err
	}

	p.transition(ctx, Enriching, "populating hidden fields", nil)
	visitor, err := p.populate(ctx)
	if err != nil {
		return nil, p.fail(ctx, span, err)
	}
	Derive(p.form, p.loc)
	if p.form.Value(FormNameField) == SnapshotFormName {
		p.store.WriteSnapshot(Snapshot(p.form, p.cookies))
	}

	p.transition(ctx, Serializing, "serializing form", nil)
	payload := p.form.Serialize()
	action, err := p.loc.Resolve(p.form.Action())
	if err != nil {
		return nil, p.fail(ctx, span, &Error{Message: "invalid form action", Cause: err})
	}

	p.transition(ctx, Submitting, "posting form", payload)
	span.SetAttributes(attribute.String("leadform.action", action))
	res, err := fetch.PostForm(ctx, action, payload, p.http)
	if err != nil {
		return nil, p.fail(ctx, span, err)
	}
	p.logger.Info("form submission successful",
		zap.String("action", action),
		zap.Int("status", res.StatusCode))

	target := p.form.Value(ContentURLField)
	if target == "" {
		target = p.loc.Origin()
	}
	p.transition(ctx, Redirecting, "redirecting", target)
	if err := p.navigator.Navigate(target); err != nil {
		p.logger.Warn("navigation failed", zap.String("target", target), zap.Error(err))
	}

	return &Result{
		Action:     action,
		Payload:    payload,
		StatusCode: res.StatusCode,
		Target:     target,
		Visitor:    visitor,
	}, nil
}

func (p *Page) fail(ctx context.Context, span trace.Span, err error) error {
	p.logger.Error("form submission failed", zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.transition(ctx, Failed, err.Error(), nil)
	p.transition(ctx, Idle, "ready", nil)
	return err
}

func failures(outcomes []validation.Outcome) []validation.Outcome {
	var out []validation.Outcome
	for _, o := range outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}
