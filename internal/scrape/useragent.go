package scrape

import "sync/atomic"

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
}

// UserAgentRotator hands out user agents round-robin. Safe for concurrent use.
type UserAgentRotator struct {
	agents []string
	next   atomic.Uint64
}

// NewUserAgentRotator creates a rotator over agents, or a built-in browser
// pool when agents is empty.
func NewUserAgentRotator(agents ...string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	cp := make([]string, len(agents))
	copy(cp, agents)
	return &UserAgentRotator{agents: cp}
}

// Next returns the next user agent in the pool.
func (r *UserAgentRotator) Next() string {
	n := r.next.Add(1) - 1
	return r.agents[n%uint64(len(r.agents))]
}

// Len returns the pool size.
func (r *UserAgentRotator) Len() int { return len(r.agents) }
