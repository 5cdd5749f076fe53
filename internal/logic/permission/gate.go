// Package permission gates capture actions on the camera, microphone and
// storage permissions. Requests go to the platform one at a time in a fixed
// precedence order.
package permission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cjeanneret/CamGo/internal/debug"
)

// Kind is a permission the session may need.
type Kind int

const (
	Camera Kind = iota
	Microphone
	Storage
)

// Precedence is the order permissions are requested in.
var Precedence = []Kind{Camera, Microphone, Storage}

func (k Kind) String() string {
	switch k {
	case Camera:
		return "camera"
	case Microphone:
		return "microphone"
	case Storage:
		return "storage"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "camera", "microphone" (or "mic", "audio") and "storage".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "camera":
		return Camera, nil
	case "microphone", "mic", "audio":
		return Microphone, nil
	case "storage":
		return Storage, nil
	default:
		return 0, fmt.Errorf("unknown permission %q", s)
	}
}

// Status is the outcome of Ensure.
type Status int

const (
	// Satisfied: the permission is held; proceed.
	Satisfied Status = iota
	// Pending: a platform request is outstanding; the action is not performed.
	Pending
)

func (s Status) String() string {
	if s == Satisfied {
		return "satisfied"
	}
	return "pending"
}

// Platform is the OS permission service.
type Platform interface {
	// CurrentStatus reports whether kind is granted right now.
	CurrentStatus(kind Kind) bool
	// RequestPermission shows the permission prompt. done is called once
	// with the user's answer, possibly from another goroutine.
	RequestPermission(kind Kind, done func(granted bool))
	// Version is the platform API level.
	Version() int
}

// Set is a snapshot of known grant states.
type Set map[Kind]bool

// Granted lists the granted kinds in precedence order.
func (s Set) Granted() []Kind {
	var out []Kind
	for k, ok := range s {
		if ok {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Options configure a Gate.
type Options struct {
	// ScopedStorageVersion is the first platform version with scoped
	// storage. Below it the storage permission is required.
	ScopedStorageVersion int
	// OnResult is handed to the platform as the request callback. The
	// session uses it to marshal the answer onto its worker.
	OnResult func(kind Kind, granted bool)
}

// pendingRequest is the remembered action chain waiting on the platform.
type pendingRequest struct {
	kinds  []Kind
	resume func()
}

// Gate tracks grant state and issues platform requests. It is not safe for
// concurrent use; the session calls it from its worker only.
type Gate struct {
	platform Platform
	opts     Options

	outstanding map[Kind]bool
	pending     *pendingRequest
}

// NewGate creates a Gate over platform.
func NewGate(platform Platform, opts Options) *Gate {
	return &Gate{
		platform:    platform,
		opts:        opts,
		outstanding: make(map[Kind]bool),
	}
}

// StorageRequired reports whether the platform version predates scoped storage.
func (g *Gate) StorageRequired() bool {
	return g.platform.Version() < g.opts.ScopedStorageVersion
}

// Granted checks kind against the platform without requesting anything.
// Storage counts as granted when it is not required.
func (g *Gate) Granted(kind Kind) bool {
	if kind == Storage && !g.StorageRequired() {
		return true
	}
	return g.platform.CurrentStatus(kind)
}

// Ensure returns Satisfied when kind is held. Otherwise it issues one
// platform request (unless one is already outstanding for kind) and
// returns Pending.
func (g *Gate) Ensure(kind Kind) Status {
	if g.Granted(kind) {
		return Satisfied
	}
	if g.outstanding[kind] {
		debug.Verbose("permission: %s request already outstanding", kind)
		return Pending
	}
	g.outstanding[kind] = true
	debug.Event("permission requested", "kind", kind.String())
	g.platform.RequestPermission(kind, func(granted bool) {
		if g.opts.OnResult != nil {
			g.opts.OnResult(kind, granted)
		}
	})
	return Pending
}

// EnsureAll walks kinds in precedence order and stops at the first one that
// is not held, requesting it. resume, if non-nil, is remembered and handed
// back by Resolve once every kind is granted; pass nil for user gestures
// that must not replay on their own.
func (g *Gate) EnsureAll(resume func(), kinds ...Kind) Status {
	ordered := inPrecedence(kinds)
	for _, k := range ordered {
		if g.Ensure(k) == Pending {
			// A gesture never displaces a replayable chain.
			if resume != nil || g.pending == nil || g.pending.resume == nil {
				g.pending = &pendingRequest{kinds: ordered, resume: resume}
			}
			return Pending
		}
	}
	return Satisfied
}

// Resolve records a platform answer. On denial the remembered action is
// dropped. On grant the remembered chain is re-run: the next missing
// permission is requested, or, when all are held, the remembered resume
// function is returned for the caller to run.
func (g *Gate) Resolve(kind Kind, granted bool) (resume func()) {
	delete(g.outstanding, kind)
	debug.Event("permission result", "kind", kind.String(), "granted", granted)

	p := g.pending
	if p == nil || !contains(p.kinds, kind) {
		return nil
	}
	g.pending = nil
	if !granted {
		debug.Live("permission: %s denied, action dropped", kind)
		return nil
	}
	if g.EnsureAll(p.resume, p.kinds...) == Pending {
		return nil
	}
	return p.resume
}

// Snapshot returns the grant state of every kind as the platform reports it.
func (g *Gate) Snapshot() Set {
	out := make(Set, len(Precedence))
	for _, k := range Precedence {
		out[k] = g.Granted(k)
	}
	return out
}

// Outstanding lists kinds with a request in flight.
func (g *Gate) Outstanding() []Kind {
	var out []Kind
	for _, k := range Precedence {
		if g.outstanding[k] {
			out = append(out, k)
		}
	}
	return out
}

func inPrecedence(kinds []Kind) []Kind {
	var out []Kind
	for _, k := range Precedence {
		if contains(kinds, k) {
			out = append(out, k)
		}
	}
	return out
}

func contains(kinds []Kind, k Kind) bool {
	for _, have := range kinds {
		if have == k {
			return true
		}
	}
	return false
}
