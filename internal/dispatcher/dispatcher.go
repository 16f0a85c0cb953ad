// Package dispatcher routes named control commands to handlers, optionally
// through a bounded async queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Command is one control request, e.g. ":SIGNAL:" with args ["2"].
type Command struct {
	Name     string
	Args     []string
	Received time.Time
}

// ParseLine reads the text form ":NAME: arg1 arg2".
func ParseLine(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}
	name := strings.ToUpper(fields[0])
	if len(name) < 3 || !strings.HasPrefix(name, ":") || !strings.HasSuffix(name, ":") {
		return Command{}, fmt.Errorf("malformed command name: %q", fields[0])
	}
	return Command{Name: name, Args: fields[1:], Received: time.Now()}, nil
}

// HandlerFunc processes a command and returns a result.
type HandlerFunc func(Command) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	logged     bool
}

// Buffered makes the handler async with a queue of the given size. A full
// queue drops the command.
func Buffered(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

type queue struct {
	name string
	ch   chan Command
	attr attribute.KeyValue
}

// Dispatcher routes commands to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *metrics

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	queues   map[string]*queue
	closed   bool
	workers  sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op unless the process configured one.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]*queue),
	}
	m, err := newMetrics(d)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

// Register adds a handler for name. Registering a name twice replaces the
// earlier handler.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.bufferSize > 0 {
		h = d.queued(name, o.bufferSize, h)
	}
	if o.logged {
		h = d.withLogging(name, h)
	}

	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

// Dispatch routes a command to its registered handler.
func (d *Dispatcher) Dispatch(c Command) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[c.Name]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", c.Name)
	}
	if c.Received.IsZero() {
		c.Received = time.Now()
	}
	return h(c)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Commands lists registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops accepting commands and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q.ch)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) queued(name string, size int, h HandlerFunc) HandlerFunc {
	q := &queue{
		name: name,
		ch:   make(chan Command, size),
		attr: attribute.String("command", name),
	}

	d.mu.Lock()
	d.queues[name] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go d.drain(q, h)

	return func(c Command) (any, error) {
		return d.enqueue(q, c)
	}
}

func (d *Dispatcher) drain(q *queue, h HandlerFunc) {
	defer d.workers.Done()
	for c := range q.ch {
		if _, err := h(c); err != nil {
			d.logger.Error("queued command failed", "command", q.name, "error", err)
		}
		d.metrics.processed.Add(context.Background(), 1, metric.WithAttributes(q.attr))
	}
}

// enqueue holds the read lock so Close cannot close the channel mid-send.
func (d *Dispatcher) enqueue(q *queue, c Command) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	select {
	case q.ch <- c:
		return "queued", nil
	default:
		d.metrics.dropped.Add(context.Background(), 1, metric.WithAttributes(q.attr))
		return nil, fmt.Errorf("queue full: %s", q.name)
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(c Command) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", name, "args", len(c.Args))

		result, err := h(c)
		if err != nil {
			d.logger.Error("command failed", "command", name, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("command complete", "command", name, "duration", time.Since(start))
		return result, nil
	}
}
