package identity

import (
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	identityport "github.com/chapter-connect/membership-api/internal/ports/out/identity"
)

// Provider is an in-process session identity source. Listeners are notified
// synchronously, in registration order, after the state changes.
type Provider struct {
	mu        sync.Mutex
	cur       identityport.State
	nextID    int
	listeners map[int]func(identityport.State)
	order     []int
}

func NewProvider() *Provider {
	return &Provider{listeners: make(map[int]func(identityport.State))}
}

func (p *Provider) Current() identityport.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *Provider) Subscribe(fn func(identityport.State)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.order = append(p.order, id)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
		for i, v := range p.order {
			if v == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

func (p *Provider) SignIn(id domain.IdentityID) {
	p.set(identityport.State{ID: id, Authenticated: id != ""})
}

func (p *Provider) SignOut() {
	p.set(identityport.State{})
}

func (p *Provider) set(s identityport.State) {
	p.mu.Lock()
	if p.cur == s {
		p.mu.Unlock()
		return
	}
	p.cur = s
	fns := make([]func(identityport.State), 0, len(p.order))
	for _, id := range p.order {
		fns = append(fns, p.listeners[id])
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
