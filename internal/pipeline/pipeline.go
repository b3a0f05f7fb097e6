// Package pipeline reads text aloud: it segments the text, then synthesizes,
// decodes and plays each segment in order on one playback sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/example/go-readaloud/internal/audio"
	"github.com/example/go-readaloud/internal/synth"
	"github.com/example/go-readaloud/internal/text"
)

const tracerName = "github.com/example/go-readaloud/internal/pipeline"

// Player plays decoded clips in order. *playback.Sink implements it.
type Player interface {
	Play(clip *audio.Clip) error
	Close() error
}

// SinkOpener acquires the playback sink for one call.
type SinkOpener func() (Player, error)

// DecodeFunc loads the clip written by the engine.
type DecodeFunc func(path string) (*audio.Clip, error)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	voice     synth.Voice
	stops     text.StopWordSet
	workDir   string
	keepClips bool
	skipBlank bool
	lookahead int
	observer  Observer
	logger    *slog.Logger
	newID     func() string
	decode    DecodeFunc
}

func defaultOptions() options {
	return options{
		voice:     synth.DefaultVoiceConfig(),
		stops:     text.DefaultStopWordSet(),
		workDir:   filepath.Join(os.TempDir(), "readaloud"),
		skipBlank: true,
		logger:    slog.Default(),
		newID:     uuid.NewString,
		decode:    audio.DecodeFile,
	}
}

// Option configures a Pipeline.
type Option func(*options)

// WithVoice sets the voice used when Run is given an incomplete one.
func WithVoice(v synth.Voice) Option {
	return func(o *options) { o.voice = v }
}

// WithStopWords sets the segment delimiters.
func WithStopWords(s text.StopWordSet) Option {
	return func(o *options) { o.stops = s }
}

// WithWorkDir sets the directory under which each call gets its clip dir.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithKeepClips keeps the synthesized clips after the call.
func WithKeepClips(keep bool) Option {
	return func(o *options) { o.keepClips = keep }
}

// WithSkipBlank controls whether whitespace-only segments are skipped.
func WithSkipBlank(skip bool) Option {
	return func(o *options) { o.skipBlank = skip }
}

// WithLookahead lets synthesis run up to n segments ahead of playback.
// Zero keeps the call strictly sequential.
func WithLookahead(n int) Option {
	return func(o *options) { o.lookahead = n }
}

// WithObserver registers a state-transition callback.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDFunc replaces the call id generator.
func WithIDFunc(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithDecoder replaces the clip decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(o *options) { o.decode = fn }
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline is safe for concurrent use, but every Run opens its own sink, so
// callers sharing one output device must serialize calls themselves.
type Pipeline struct {
	engine synth.Engine
	open   SinkOpener
	opts   options
	log    *slog.Logger
	tracer trace.Tracer

	emitMu sync.Mutex
}

// New returns a pipeline speaking through engine and playing on sinks
// obtained from open.
func New(engine synth.Engine, open SinkOpener, optFns ...Option) *Pipeline {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.lookahead < 0 {
		opts.lookahead = 0
	}
	return &Pipeline{
		engine: engine,
		open:   open,
		opts:   opts,
		log:    opts.logger.With(slog.String("component", "pipeline")),
		tracer: otel.Tracer(tracerName),
	}
}

// Segments splits input with the pipeline's stop words.
func (p *Pipeline) Segments(input string) []string {
	return text.Segment(input, p.opts.stops)
}

type item struct {
	index int
	text  string
}

// call is the state of one Run.
type call struct {
	id    string
	total int
	dir   string
	voice synth.Voice
	sink  Player

	mu      sync.Mutex
	summary Summary
}

// Run reads input aloud and returns once the last segment has finished
// playing. The first failure stops the call and is returned as a
// *SegmentError; segments already played stay played. Empty fields of voice
// fall back to the configured voice.
func (p *Pipeline) Run(ctx context.Context, input string, voice synth.Voice) (summary Summary, err error) {
	start := time.Now()
	c := &call{id: p.opts.newID(), voice: p.resolveVoice(voice)}
	c.summary.CallID = c.id
	log := p.log.With(slog.String("call_id", c.id))

	ctx, span := p.tracer.Start(ctx, "readaloud.run", trace.WithAttributes(
		attribute.String("call.id", c.id),
		attribute.Int("text.bytes", len(input)),
	))
	defer func() {
		summary.Elapsed = time.Since(start)
		span.SetAttributes(attribute.Int("segments.played", summary.Played))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Kind(err))
			p.emit(Event{CallID: c.id, Stage: StageFailed, Index: -1, Total: c.total, Err: err})
			log.Error("read-aloud failed",
				slog.String("kind", Kind(err)),
				slog.Int("played", summary.Played),
				slog.String("error", err.Error()),
			)
		} else {
			p.emit(Event{CallID: c.id, Stage: StageDone, Index: -1, Total: c.total})
			log.Info("read-aloud finished",
				slog.Int("segments", summary.Segments),
				slog.Int("played", summary.Played),
				slog.Int("skipped", summary.Skipped),
				slog.Duration("elapsed", summary.Elapsed),
			)
		}
		span.End()
	}()

	p.emit(Event{CallID: c.id, Stage: StageSegmenting, Index: -1})
	segments := p.Segments(input)
	c.total = len(segments)
	c.summary.Segments = len(segments)

	var items []item
	for i, s := range segments {
		if p.opts.skipBlank && text.IsBlank(s) {
			c.summary.Skipped++
			continue
		}
		items = append(items, item{index: i, text: s})
	}
	if len(items) == 0 {
		return c.summary, nil
	}

	c.dir = filepath.Join(p.opts.workDir, c.id)
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return c.summary, fmt.Errorf("create work dir: %w", err)
	}
	if !p.opts.keepClips {
		defer os.RemoveAll(c.dir)
	}

	sink, err := p.open()
	if err != nil {
		return c.summary, fmt.Errorf("open playback sink: %w", err)
	}
	c.sink = sink
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close playback sink: %w", cerr)
		}
	}()

	if p.opts.lookahead > 0 {
		err = p.runLookahead(ctx, c, items)
	} else {
		err = p.runSequential(ctx, c, items)
	}
	return c.snapshot(), err
}

func (p *Pipeline) resolveVoice(v synth.Voice) synth.Voice {
	if v.Lang == "" {
		v.Lang = p.opts.voice.Lang
	}
	if v.Name == "" {
		v.Name = p.opts.voice.Name
	}
	return v
}

func (p *Pipeline) runSequential(ctx context.Context, c *call, items []item) error {
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return c.fail(it, StageSynthesizing, err)
		}
		prep := p.prepare(ctx, c, it)
		if prep.err != nil {
			prep.end()
			return prep.err
		}
		if err := p.play(c, prep); err != nil {
			return err
		}
	}
	return nil
}

// runLookahead synthesizes ahead of playback on a second goroutine. Clips are
// handed over in segment order and the consumer stops at the first failed
// one, so the reported error is the same one a sequential run would hit.
func (p *Pipeline) runLookahead(ctx context.Context, c *call, items []item) error {
	g, gctx := errgroup.WithContext(ctx)
	ready := make(chan prepared, p.opts.lookahead-1)

	g.Go(func() error {
		defer close(ready)
		for _, it := range items {
			if gctx.Err() != nil {
				return nil
			}
			prep := p.prepare(gctx, c, it)
			select {
			case ready <- prep:
			case <-gctx.Done():
				prep.end()
				return nil
			}
			if prep.err != nil {
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for prep := range ready {
			if prep.err != nil {
				prep.end()
				return c.restamp(prep.err)
			}
			if err := ctx.Err(); err != nil {
				prep.end()
				return c.fail(prep.item, StagePlaying, err)
			}
			if err := p.play(c, prep); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	for prep := range ready {
		prep.end()
	}
	if err != nil {
		return err
	}

	// The producer stops quietly when ctx ends between segments.
	if played := c.snapshot().Played; played < len(items) {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = errors.New("synthesis stopped early")
		}
		return c.fail(items[played], StageSynthesizing, cause)
	}
	return nil
}

// prepared is a synthesized and decoded segment waiting for the sink.
type prepared struct {
	item
	clip *audio.Clip
	stat SegmentStat
	span trace.Span
	err  error
}

func (pr prepared) end() {
	if pr.span == nil {
		return
	}
	if pr.err != nil {
		pr.span.RecordError(pr.err)
		pr.span.SetStatus(codes.Error, Kind(pr.err))
	}
	pr.span.End()
}

func (p *Pipeline) prepare(ctx context.Context, c *call, it item) prepared {
	ctx, span := p.tracer.Start(ctx, "readaloud.segment", trace.WithAttributes(
		attribute.Int("segment.index", it.index),
		attribute.Int("segment.bytes", len(it.text)),
	))
	pr := prepared{item: it, span: span, stat: SegmentStat{Index: it.index, Bytes: len(it.text)}}
	path := filepath.Join(c.dir, fmt.Sprintf("seg-%04d.wav", it.index))

	p.emit(Event{CallID: c.id, Stage: StageSynthesizing, Index: it.index, Total: c.total, Text: it.text})
	span.SetAttributes(attribute.String("stage", StageSynthesizing.String()))
	t0 := time.Now()
	if err := p.engine.Synthesize(ctx, it.text, c.voice, path); err != nil {
		pr.err = c.fail(it, StageSynthesizing, err)
		return pr
	}
	pr.stat.Synthesis = time.Since(t0)

	p.emit(Event{CallID: c.id, Stage: StageDecoding, Index: it.index, Total: c.total, Text: it.text})
	span.SetAttributes(attribute.String("stage", StageDecoding.String()))
	clip, err := p.opts.decode(path)
	if err != nil {
		pr.err = c.fail(it, StageDecoding, err)
		return pr
	}
	pr.clip = clip
	pr.stat.Audio = clip.Duration()
	return pr
}

func (p *Pipeline) play(c *call, pr prepared) error {
	defer func() { pr.end() }()

	p.emit(Event{CallID: c.id, Stage: StagePlaying, Index: pr.index, Total: c.total, Text: pr.text})
	pr.span.SetAttributes(attribute.String("stage", StagePlaying.String()))
	t0 := time.Now()
	if err := c.sink.Play(pr.clip); err != nil {
		pr.err = c.fail(pr.item, StagePlaying, err)
		return pr.err
	}
	pr.stat.Playback = time.Since(t0)

	c.played(pr.stat)
	p.log.Debug("segment played",
		slog.String("call_id", c.id),
		slog.Int("segment", pr.index+1),
		slog.Duration("synthesis", pr.stat.Synthesis),
		slog.Duration("audio", pr.stat.Audio),
	)
	return nil
}

func (p *Pipeline) emit(ev Event) {
	if p.opts.observer == nil {
		return
	}
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.opts.observer(ev)
}

func (c *call) played(st SegmentStat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Played++
	c.summary.Stats = append(c.summary.Stats, st)
}

func (c *call) fail(it item, stage Stage, err error) error {
	var se *SegmentError
	if errors.As(err, &se) {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &SegmentError{Index: it.index, Text: it.text, Stage: stage, Played: c.summary.Played, Err: err}
}

// restamp updates the played count of an error raised ahead of playback.
func (c *call) restamp(err error) error {
	var se *SegmentError
	if errors.As(err, &se) {
		c.mu.Lock()
		se.Played = c.summary.Played
		c.mu.Unlock()
	}
	return err
}

func (c *call) snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.summary
	s.Stats = append([]SegmentStat(nil), c.summary.Stats...)
	return s
}
