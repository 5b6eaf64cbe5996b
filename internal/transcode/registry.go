package transcode

import (
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/eleven-am/transcoder/internal/observability"
)

type jobKey struct {
	clientID    string
	transcodeID string
}

// claimKey names a transcode or, with only artifact set, a cache name.
type claimKey struct {
	job      jobKey
	artifact string
}

type claim struct {
	mu   sync.Mutex
	refs int
}

// Registry tracks running contexts per client and transcode. One mutex
// guards every mutation.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	clients  map[string]map[string][]*Context
	claims   map[claimKey]*claim
	sessions map[jobKey]*Context
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   observability.WithComponent(logger, "registry"),
		clients:  make(map[string]map[string][]*Context),
		claims:   make(map[claimKey]*claim),
		sessions: make(map[jobKey]*Context),
	}
}

// Claim serializes requests for one client and transcode. The caller holds
// the claim while it checks for reusable work and registers new work, and
// calls the returned function to let the next caller in.
func (r *Registry) Claim(clientID, transcodeID string) func() {
	return r.claim(claimKey{job: jobKey{clientID, transcodeID}})
}

// ClaimName serializes requests of any client for one artifact. It is taken
// after Claim and held until the job writing name is registered.
func (r *Registry) ClaimName(name string) func() {
	return r.claim(claimKey{artifact: name})
}

func (r *Registry) claim(k claimKey) func() {
	r.mu.Lock()
	cl, ok := r.claims[k]
	if !ok {
		cl = &claim{}
		r.claims[k] = cl
	}
	cl.refs++
	r.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		r.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(r.claims, k)
		}
		r.mu.Unlock()
	}
}

// Add registers c. A client moving to another transcode, or starting a full
// transcode, has all its other jobs stopped; a new partial job stops the
// other partial jobs of the same transcode. Add returns the contexts it
// stopped.
func (r *Registry) Add(c *Context) []*Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stopped []*Context

	jobs, ok := r.clients[c.ClientID]
	if !ok {
		jobs = make(map[string][]*Context)
		r.clients[c.ClientID] = jobs
	}

	_, sameTranscode := jobs[c.TranscodeID]
	switch {
	case len(jobs) > 0 && (!sameTranscode || !c.Partial):
		n := 0
		for id, list := range jobs {
			for _, other := range list {
				other.Stop()
				stopped = append(stopped, other)
				n++
			}
			delete(jobs, id)
		}
		r.logger.Debug("stopped client transcodes",
			slog.String("client_id", c.ClientID),
			slog.Int("count", n),
		)
	case len(jobs) > 0:
		for _, other := range jobs[c.TranscodeID] {
			if other.Partial && other != c {
				other.Stop()
				stopped = append(stopped, other)
			}
		}
	}

	jobs[c.TranscodeID] = append(jobs[c.TranscodeID], c)
	r.updateGauge()
	return stopped
}

// Remove unregisters c. Removing an unknown context is a no-op.
func (r *Registry) Remove(c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, ok := r.clients[c.ClientID]
	if !ok {
		return
	}
	list := jobs[c.TranscodeID]
	for i, other := range list {
		if other == c {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(jobs, c.TranscodeID)
	} else {
		jobs[c.TranscodeID] = list
	}
	if len(jobs) == 0 {
		delete(r.clients, c.ClientID)
	}
	r.updateGauge()
}

// Get returns the registered context for a transcode. A non-partial
// context wins over partial ones; among partial ones the newest wins.
func (r *Registry) Get(clientID, transcodeID string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.clients[clientID][transcodeID]
	for _, c := range list {
		if !c.Partial {
			return c
		}
	}
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// ByName returns a running context of any client writing the artifact
// name.
func (r *Registry) ByName(name string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName(name, nil)
}

func (r *Registry) byName(name string, except *Context) *Context {
	for _, jobs := range r.clients {
		for _, list := range jobs {
			for _, c := range list {
				if c != except && c.Name == name && !c.stopping() {
					return c
				}
			}
		}
	}
	return nil
}

// Stopping returns the stopped contexts that still write name.
func (r *Registry) Stopping(name string) []*Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Context
	for _, jobs := range r.clients {
		for _, list := range jobs {
			for _, c := range list {
				if c.Name == name && c.stopping() {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// InUse reports whether a registered context writes name or a file inside
// it. The cache sweeper skips such entries.
func (r *Registry) InUse(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, jobs := range r.clients {
		for _, list := range jobs {
			for _, c := range list {
				if c.Name == "" {
					continue
				}
				if c.Name == name || strings.HasPrefix(c.Name, name+"/") || strings.HasPrefix(name, c.Name+"/") {
					return true
				}
				for _, sub := range c.Subtitles {
					if path.Base(sub) == name {
						return true
					}
				}
			}
		}
	}
	return false
}

// Remember records c as the context a client was last handed for a
// transcode, so later segment and playlist requests find it after the job
// has ended. A coalesced context may belong to another client.
func (r *Registry) Remember(clientID, transcodeID string, c *Context) {
	r.mu.Lock()
	r.sessions[jobKey{clientID, transcodeID}] = c
	r.mu.Unlock()
}

// Lookup returns the running context for a transcode, or the one last
// handed out.
func (r *Registry) Lookup(clientID, transcodeID string) *Context {
	if c := r.Get(clientID, transcodeID); c != nil {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[jobKey{clientID, transcodeID}]
}

// Stop stops every context of one transcode and returns how many it
// signalled.
func (r *Registry) Stop(clientID, transcodeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, jobKey{clientID, transcodeID})
	list := r.clients[clientID][transcodeID]
	for _, c := range list {
		c.Stop()
	}
	return len(list)
}

func (r *Registry) StopAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, jobs := range r.clients {
		for _, list := range jobs {
			for _, c := range list {
				c.Stop()
				n++
			}
		}
	}
	clear(r.sessions)
	return n
}

// Active returns every registered context.
func (r *Registry) Active() []*Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Context
	for _, jobs := range r.clients {
		for _, list := range jobs {
			out = append(out, list...)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count()
}

func (r *Registry) count() int {
	n := 0
	for _, jobs := range r.clients {
		for _, list := range jobs {
			n += len(list)
		}
	}
	return n
}

func (r *Registry) updateGauge() {
	observability.JobsActive.Set(float64(r.count()))
}
