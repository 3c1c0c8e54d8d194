package input

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Hub runs sources on one shared event channel, so every device feeds a
// single consumer in arrival order.
type Hub struct {
	log    zerolog.Logger
	opener Opener
	out    chan Event

	// OpenRetries and RetryDelay control how long a hotplugged node is
	// retried while udev is still applying permissions.
	OpenRetries int
	RetryDelay  time.Duration

	mu         sync.Mutex
	active     map[string]Source
	onChange   func(names []string)
	wg         sync.WaitGroup
	endOnEmpty bool
	ending     bool
	closeOut   sync.Once
}

// NewHub returns a hub whose channel buffers up to buffer events.
func NewHub(opener Opener, buffer int, log zerolog.Logger) *Hub {
	return &Hub{
		log:         log,
		opener:      opener,
		out:         make(chan Event, buffer),
		OpenRetries: 5,
		RetryDelay:  200 * time.Millisecond,
		active:      make(map[string]Source),
	}
}

// Events returns the merged event channel.
func (h *Hub) Events() <-chan Event {
	return h.out
}

// OnChange registers a callback run with the sorted source names whenever
// a source starts or stops.
func (h *Hub) OnChange(f func(names []string)) {
	h.mu.Lock()
	h.onChange = f
	h.mu.Unlock()
}

// Start runs src under key until it stops or ctx is done. It returns false
// if a source with that key is already running or the channel is closing.
func (h *Hub) Start(ctx context.Context, key string, src Source) bool {
	h.mu.Lock()
	if _, ok := h.active[key]; ok || h.ending {
		h.mu.Unlock()
		return false
	}
	h.active[key] = src
	h.wg.Add(1)
	h.mu.Unlock()
	h.changed()

	h.log.Info().Str("source", src.Name()).Msg("input source started")

	go func() {
		defer h.wg.Done()
		err := src.Run(ctx, h.out)
		if err != nil {
			h.log.Warn().Err(err).Str("source", src.Name()).Msg("input source stopped")
		} else {
			h.log.Info().Str("source", src.Name()).Msg("input source stopped")
		}
		h.remove(key, src)
	}()
	return true
}

func (h *Hub) remove(key string, src Source) {
	h.mu.Lock()
	if h.active[key] == src {
		delete(h.active, key)
	}
	last := h.endOnEmpty && !h.ending && len(h.active) == 0
	if last {
		h.ending = true
	}
	h.mu.Unlock()
	if err := src.Close(); err != nil {
		h.log.Debug().Err(err).Str("source", src.Name()).Msg("close input source")
	}
	h.changed()
	if last {
		h.log.Info().Msg("no input sources left")
		go h.finish()
	}
}

// CloseWhenEmpty makes the hub close its event channel once no source is
// running, immediately if none is. No source can start after that. Use it
// when there is no hotplug watch to bring new devices.
func (h *Hub) CloseWhenEmpty() {
	h.mu.Lock()
	h.endOnEmpty = true
	now := !h.ending && len(h.active) == 0
	if now {
		h.ending = true
	}
	h.mu.Unlock()
	if now {
		go h.finish()
	}
}

// finish closes the channel after the last sender has returned.
func (h *Hub) finish() {
	h.wg.Wait()
	h.closeOut.Do(func() { close(h.out) })
}

func (h *Hub) changed() {
	h.mu.Lock()
	f := h.onChange
	h.mu.Unlock()
	if f != nil {
		f(h.Active())
	}
}

// Open opens path with the hub's opener and starts it.
func (h *Hub) Open(ctx context.Context, path string) error {
	h.mu.Lock()
	_, running := h.active[path]
	h.mu.Unlock()
	if running {
		return nil
	}

	src, err := h.opener.Open(path)
	if err != nil {
		return err
	}
	if !h.Start(ctx, path, src) {
		src.Close()
	}
	return nil
}

// Scan opens every path, skipping non-pointer devices, and returns the
// number of sources started.
func (h *Hub) Scan(ctx context.Context, paths []string) int {
	n := 0
	for _, p := range paths {
		err := h.Open(ctx, p)
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrNotPointer):
			h.log.Debug().Str("path", p).Msg("skipping non-pointer device")
		default:
			h.log.Warn().Err(err).Str("path", p).Msg("cannot open input device")
		}
	}
	return n
}

// Watch opens event nodes created in dir until ctx is done.
func (h *Hub) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	h.log.Debug().Str("dir", dir).Msg("watching for input devices")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !strings.HasPrefix(filepath.Base(ev.Name), "event") {
				continue
			}
			h.wg.Add(1)
			go func(path string) {
				defer h.wg.Done()
				h.openWithRetry(ctx, path)
			}(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.log.Warn().Err(err).Msg("input device watcher error")
		}
	}
}

func (h *Hub) openWithRetry(ctx context.Context, path string) {
	var err error
	for i := 0; i <= h.OpenRetries; i++ {
		if err = h.Open(ctx, path); err == nil || errors.Is(err, ErrNotPointer) {
			if err == nil {
				h.log.Info().Str("path", path).Msg("pointer device attached")
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.RetryDelay):
		}
	}
	h.log.Warn().Err(err).Str("path", path).Msg("cannot open hotplugged device")
}

// Active returns the sorted names of running sources.
func (h *Hub) Active() []string {
	h.mu.Lock()
	names := make([]string, 0, len(h.active))
	for _, src := range h.active {
		names = append(names, src.Name())
	}
	h.mu.Unlock()
	sort.Strings(names)
	return names
}

// Close closes every running source.
func (h *Hub) Close() error {
	h.mu.Lock()
	srcs := make([]Source, 0, len(h.active))
	for _, src := range h.active {
		srcs = append(srcs, src)
	}
	h.mu.Unlock()

	var errs []error
	for _, src := range srcs {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every source goroutine has returned.
func (h *Hub) Wait() {
	h.wg.Wait()
}
