package permission

import (
	"sync"

	"github.com/cjeanneret/CamGo/internal/debug"
)

// MemoryPlatform is a Platform whose prompts are answered programmatically,
// e.g. by the web surface or the CLI. Answers persist like OS grants do.
type MemoryPlatform struct {
	version int

	mu      sync.Mutex
	granted map[Kind]bool
	prompts map[Kind][]func(bool)
	auto    *bool
}

// NewMemoryPlatform creates a platform at the given API version with the
// listed kinds already granted.
func NewMemoryPlatform(version int, granted ...Kind) *MemoryPlatform {
	p := &MemoryPlatform{
		version: version,
		granted: make(map[Kind]bool),
		prompts: make(map[Kind][]func(bool)),
	}
	for _, k := range granted {
		p.granted[k] = true
	}
	return p
}

// AutoAnswer makes every future prompt resolve immediately with answer.
func (p *MemoryPlatform) AutoAnswer(answer bool) {
	p.mu.Lock()
	p.auto = &answer
	p.mu.Unlock()
}

func (p *MemoryPlatform) Version() int { return p.version }

func (p *MemoryPlatform) CurrentStatus(kind Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted[kind]
}

// RequestPermission records a prompt. The answer is delivered on its own
// goroutine, never inline, like a platform dialog.
func (p *MemoryPlatform) RequestPermission(kind Kind, done func(granted bool)) {
	p.mu.Lock()
	auto := p.auto
	if auto == nil {
		p.prompts[kind] = append(p.prompts[kind], done)
	} else if *auto {
		p.granted[kind] = true
	}
	p.mu.Unlock()

	if auto != nil {
		answer := *auto
		go done(answer)
		return
	}
	debug.Live("permission prompt shown: %s", kind)
}

// Answer resolves every open prompt for kind. It reports whether any prompt
// was open. The grant state is updated either way.
func (p *MemoryPlatform) Answer(kind Kind, granted bool) bool {
	p.mu.Lock()
	p.granted[kind] = granted
	waiting := p.prompts[kind]
	delete(p.prompts, kind)
	p.mu.Unlock()

	for _, done := range waiting {
		go done(granted)
	}
	return len(waiting) > 0
}

// Prompts lists kinds with an open prompt in precedence order.
func (p *MemoryPlatform) Prompts() []Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Kind
	for _, k := range Precedence {
		if len(p.prompts[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Revoke withdraws a grant, as a user would in system settings.
func (p *MemoryPlatform) Revoke(kind Kind) {
	p.mu.Lock()
	delete(p.granted, kind)
	p.mu.Unlock()
}
