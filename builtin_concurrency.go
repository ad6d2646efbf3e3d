// builtin_concurrency.go — channels, atoms, goroutines, scopes, pmap, timers.
//
// Isolation contract: nothing a spawned Qi function does can crash the host
// or another goroutine. Every goroutine boundary recovers; failures surface
// as error markers on the joined result. Channel close is idempotent and a
// racing send is caught by recovering the closed-send panic rather than by
// locking around every send.

package qi

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// --- tasks and scopes ---------------------------------------------------------

// Task is one spawned unit of work. The result is readable after done closes
// and is an error marker when the work failed.
type Task struct {
	ID     uuid.UUID
	done   chan struct{}
	result Value
}

// Join blocks until the task finishes and returns its result.
func (t *Task) Join() Value {
	<-t.done
	return t.result
}

// Scope groups tasks for collective cancellation and joining. Cancellation
// is advisory: children observe it by polling cancelled?.
type Scope struct {
	ID        uuid.UUID
	mu        sync.Mutex
	tasks     []*Task
	cancelled atomic.Bool
}

// NewScope returns an empty scope.
func NewScope() *Scope { return &Scope{ID: uuid.New()} }

// Cancel sets the advisory cancellation flag.
func (s *Scope) Cancel() { s.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (s *Scope) Cancelled() bool { return s.cancelled.Load() }

func (s *Scope) add(t *Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// Wait joins every task spawned so far, in spawn order.
func (s *Scope) Wait() []Value {
	s.mu.Lock()
	ts := append([]*Task(nil), s.tasks...)
	s.mu.Unlock()
	out := make([]Value, len(ts))
	for i, t := range ts {
		out[i] = t.Join()
	}
	return out
}

// NewChannel returns a channel value holder for embedders; capacity 0 is
// unbuffered.
func NewChannel(capacity int) *Channel { return newChannel(capacity) }

// NewAtom returns an atom holding v.
func NewAtom(v Value) *Atom { return newAtom(v) }

// --- goroutine plumbing ---------------------------------------------------------

// safeSend delivers v unless the channel is (or becomes) closed; the
// closed-send panic is the detection mechanism.
func safeSend(c *Channel, v Value) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	c.ch <- v
	return true
}

// safeClose closes idempotently; a second close recovers its own panic.
func safeClose(c *Channel) {
	defer func() { _ = recover() }()
	c.closed.Store(true)
	close(c.ch)
}

// spawnTask runs thunk on a new goroutine. The result lands in the returned
// task and, when out is non-nil, on out as well.
func (ip *Interp) spawnTask(thunk Value, out *Channel) *Task {
	t := &Task{ID: uuid.New(), done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.result = errorMarker(fmt.Sprintf("goroutine panic: %v", r), KindNative.keyword())
				runtimeLog.WithField("task", t.ID).WithField("panic", r).Error("goroutine crashed")
			}
			close(t.done)
			if out != nil {
				safeSend(out, t.result)
			}
		}()
		v, err := ip.Call0(thunk)
		if err != nil {
			t.result = markerFromError(err)
			runtimeLog.WithField("task", t.ID).WithError(err).Debug("goroutine task failed")
			return
		}
		t.result = v
	}()
	return t
}

// SpawnGoroutine runs a zero-argument function value on its own goroutine.
// The task's joined result is an error marker when the function failed.
func (ip *Interp) SpawnGoroutine(fn Value) (*Task, error) {
	if fn.Tag != TFunc {
		return nil, errf(KindTypeMismatch, "goroutine target must be a function, got %s", TypeName(fn))
	}
	return ip.spawnTask(fn, nil), nil
}

// applyGuarded is Apply with a recover fence, for worker pools that must
// survive anything a native might do.
func (ip *Interp) applyGuarded(fv Value, args []Value) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errf(KindNative, "panic: %v", r)
		}
	}()
	return ip.Apply(fv, args)
}

// --- natives -------------------------------------------------------------------

func chanArg(name string, v Value) (*Channel, error) {
	if v.Tag != TChan {
		return nil, errf(KindTypeMismatch, "%s needs a channel, got %s", name, TypeName(v))
	}
	return v.Data.(*Channel), nil
}

func atomArg(name string, v Value) (*Atom, error) {
	if v.Tag != TAtom {
		return nil, errf(KindTypeMismatch, "%s needs an atom, got %s", name, TypeName(v))
	}
	return v.Data.(*Atom), nil
}

func scopeArg(name string, v Value) (*Scope, error) {
	h, err := asHandle(v, "scope")
	if err != nil {
		return nil, err
	}
	return h.Data.(*Scope), nil
}

func registerConcurrencyBuiltins(ip *Interp) {
	// --- channels -------------------------------------------------------------

	ip.RegisterNative("chan", Arity{0, 1}, func(_ *Interp, args []Value) (Value, error) {
		capacity := int64(0)
		if len(args) == 1 {
			if args[0].Tag != TInt {
				return Value{}, errf(KindTypeMismatch, "chan capacity must be an int, got %s", TypeName(args[0]))
			}
			capacity = args[0].Data.(int64)
			if capacity < 0 {
				return Value{}, errf(KindTypeMismatch, "chan capacity must be >= 0")
			}
		}
		return ChanVal(newChannel(int(capacity))), nil
	})
	setBuiltinDoc(ip, "chan", `New channel; (chan n) buffers n values, (chan) is unbuffered.`)

	ip.RegisterNative("send!", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		c, err := chanArg("send!", args[0])
		if err != nil {
			return Value{}, err
		}
		if c.closed.Load() || !safeSend(c, args[1]) {
			return Value{}, errf(KindChannelClosed, "send! on closed channel")
		}
		return args[1], nil
	})
	setBuiltinDoc(ip, "send!", `Blocking send; returns the sent value. Sending on a closed channel is
an error.`)

	ip.RegisterNative("recv!", Arity{1, 2}, func(_ *Interp, args []Value) (Value, error) {
		c, err := chanArg("recv!", args[0])
		if err != nil {
			return Value{}, err
		}
		if len(args) == 1 {
			v, ok := <-c.ch
			if !ok {
				return Value{}, errf(KindChannelClosed, "recv! on closed channel")
			}
			return v, nil
		}
		if args[1].Tag != TInt {
			return Value{}, errf(KindTypeMismatch, "recv! timeout must be an int, got %s", TypeName(args[1]))
		}
		ms := args[1].Data.(int64)
		select {
		case v, ok := <-c.ch:
			if !ok {
				return Value{}, errf(KindChannelClosed, "recv! on closed channel")
			}
			return v, nil
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return errorMarker(fmt.Sprintf("recv! timed out after %dms", ms), kwVal(kwTimeout)), nil
		}
	})
	setBuiltinDoc(ip, "recv!", `Blocking receive. (recv! c ms) gives up after ms milliseconds and
yields a :timeout error marker instead of blocking forever. Buffered
values remain receivable after close; a drained closed channel errors.`)

	ip.RegisterNative("try-recv!", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		c, err := chanArg("try-recv!", args[0])
		if err != nil {
			return Value{}, err
		}
		out := NewMapObject()
		select {
		case v, ok := <-c.ch:
			out.Set(kwVal(kwOk), Bool(true))
			if !ok {
				// Closed and drained still counts as an answer; the marker
				// value says which kind of answer.
				out.Set(kwVal(kwValue), errorMarker("channel closed", KindChannelClosed.keyword()))
			} else {
				out.Set(kwVal(kwValue), v)
			}
		default:
			out.Set(kwVal(kwOk), Bool(false))
			out.Set(kwVal(kwValue), Nil)
		}
		return MapVal(out), nil
	})
	setBuiltinDoc(ip, "try-recv!", `Non-blocking receive: {:ok true :value v} when something was there,
{:ok false :value nil} when not.`)

	ip.RegisterNative("close!", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		c, err := chanArg("close!", args[0])
		if err != nil {
			return Value{}, err
		}
		safeClose(c)
		return Nil, nil
	})
	setBuiltinDoc(ip, "close!", `Close a channel. Closing twice is a no-op; buffered values stay
receivable until drained.`)

	ip.RegisterNative("closed?", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		c, err := chanArg("closed?", args[0])
		if err != nil {
			return Value{}, err
		}
		return Bool(c.closed.Load()), nil
	})

	// --- atoms ------------------------------------------------------------------

	ip.RegisterNative("atom", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		return AtomVal(newAtom(args[0])), nil
	})
	ip.RegisterNative("deref", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		a, err := atomArg("deref", args[0])
		if err != nil {
			return Value{}, err
		}
		return a.Load(), nil
	})
	ip.RegisterNative("swap!", Arity{2, -1}, func(ip *Interp, args []Value) (Value, error) {
		a, err := atomArg("swap!", args[0])
		if err != nil {
			return Value{}, err
		}
		if args[1].Tag != TFunc {
			return Value{}, errf(KindTypeMismatch, "swap! needs a function, got %s", TypeName(args[1]))
		}
		extra := args[2:]
		return a.Swap(func(cur Value) (Value, error) {
			call := make([]Value, 0, 1+len(extra))
			call = append(call, cur)
			call = append(call, extra...)
			return ip.Apply(args[1], call)
		})
	})
	setBuiltinDoc(ip, "swap!", `Atomically update: (swap! a f x...) installs (f current x...) by
compare-and-swap, retrying under contention. f may run more than once
and must be pure. Returns the installed value.`)
	ip.RegisterNative("reset!", Arity{2, 2}, func(_ *Interp, args []Value) (Value, error) {
		a, err := atomArg("reset!", args[0])
		if err != nil {
			return Value{}, err
		}
		a.Store(args[1])
		return args[1], nil
	})
	setBuiltinDoc(ip, "atom", `Mutable reference cell. deref reads, swap! updates atomically,
reset! overwrites.`)

	// --- goroutines and scopes ----------------------------------------------------

	ip.RegisterNative("go", Arity{1, 1}, func(ip *Interp, args []Value) (Value, error) {
		if args[0].Tag != TFunc {
			return Value{}, errf(KindTypeMismatch, "go needs a zero-argument function, got %s", TypeName(args[0]))
		}
		out := newChannel(1)
		ip.spawnTask(args[0], out)
		return ChanVal(out), nil
	})
	setBuiltinDoc(ip, "go", `Run a zero-argument function on a new goroutine. Yields a capacity-1
channel that resolves to the result; a failure inside resolves to an
error marker and never disturbs the caller.`)

	ip.RegisterNative("scope", Arity{0, 0}, func(_ *Interp, args []Value) (Value, error) {
		return HandleVal("scope", NewScope()), nil
	})
	ip.RegisterNative("spawn!", Arity{2, 2}, func(ip *Interp, args []Value) (Value, error) {
		sc, err := scopeArg("spawn!", args[0])
		if err != nil {
			return Value{}, err
		}
		if args[1].Tag != TFunc {
			return Value{}, errf(KindTypeMismatch, "spawn! needs a zero-argument function, got %s", TypeName(args[1]))
		}
		out := newChannel(1)
		sc.add(ip.spawnTask(args[1], out))
		return ChanVal(out), nil
	})
	ip.RegisterNative("cancel!", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		sc, err := scopeArg("cancel!", args[0])
		if err != nil {
			return Value{}, err
		}
		sc.Cancel()
		return Nil, nil
	})
	ip.RegisterNative("cancelled?", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		sc, err := scopeArg("cancelled?", args[0])
		if err != nil {
			return Value{}, err
		}
		return Bool(sc.Cancelled()), nil
	})
	ip.RegisterNative("wait", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		sc, err := scopeArg("wait", args[0])
		if err != nil {
			return Value{}, err
		}
		return Vec(sc.Wait()), nil
	})
	setBuiltinDoc(ip, "scope", `Task group. spawn! runs functions under it, wait joins them all in
spawn order, cancel! raises an advisory flag children poll with
cancelled?. Cancellation never kills a goroutine.`)

	// --- pmap --------------------------------------------------------------------

	ip.RegisterNative("pmap", Arity{2, 2}, func(ip *Interp, args []Value) (Value, error) {
		if args[0].Tag != TFunc {
			return Value{}, errf(KindTypeMismatch, "pmap needs a function, got %s", TypeName(args[0]))
		}
		xs, err := seqArg("pmap", args[1])
		if err != nil {
			return Value{}, err
		}
		if len(xs) == 0 {
			return sameSeqKind(args[1], nil), nil
		}
		workers := runtime.NumCPU()
		if workers > len(xs) {
			workers = len(xs)
		}
		results := make([]Value, len(xs))
		errs := make([]error, len(xs))
		work := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range work {
					results[i], errs[i] = ip.applyGuarded(args[0], []Value{xs[i]})
				}
			}()
		}
		for i := range xs {
			work <- i
		}
		close(work)
		wg.Wait()
		// First failure by input order wins, so outcomes are deterministic.
		for _, e := range errs {
			if e != nil {
				return Value{}, e
			}
		}
		return sameSeqKind(args[1], results), nil
	})
	setBuiltinDoc(ip, "pmap", `Parallel map over a bounded worker pool (one worker per CPU). Results
keep input order; when applications fail, the earliest input's error
is the one reported.`)

	// --- timers --------------------------------------------------------------------

	ip.RegisterNative("timer", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		ms, err := msArg("timer", args[0])
		if err != nil {
			return Value{}, err
		}
		out := newChannel(1)
		go func() {
			time.Sleep(time.Duration(ms) * time.Millisecond)
			safeSend(out, Int(time.Now().UnixMilli()))
			safeClose(out)
		}()
		return ChanVal(out), nil
	})
	setBuiltinDoc(ip, "timer", `Channel that delivers one tick (Unix millis) after ms, then closes.`)

	ip.RegisterNative("ticker", Arity{1, 1}, func(_ *Interp, args []Value) (Value, error) {
		ms, err := msArg("ticker", args[0])
		if err != nil {
			return Value{}, err
		}
		if ms == 0 {
			return Value{}, errf(KindTypeMismatch, "ticker interval must be > 0")
		}
		out := newChannel(1)
		go func() {
			tk := time.NewTicker(time.Duration(ms) * time.Millisecond)
			defer tk.Stop()
			for t := range tk.C {
				if !safeSend(out, Int(t.UnixMilli())) {
					return
				}
			}
		}()
		return ChanVal(out), nil
	})
	setBuiltinDoc(ip, "ticker", `Channel delivering a tick (Unix millis) every ms. Close the channel
to stop the ticker goroutine.`)
}

func msArg(name string, v Value) (int64, error) {
	if v.Tag != TInt {
		return 0, errf(KindTypeMismatch, "%s needs milliseconds as an int, got %s", name, TypeName(v))
	}
	ms := v.Data.(int64)
	if ms < 0 {
		return 0, errf(KindTypeMismatch, "%s needs a non-negative duration", name)
	}
	return ms, nil
}
