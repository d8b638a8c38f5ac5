package scraper

import (
	"net/url"
	"sort"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/domain"
)

// Registry maps URL hosts to site adapters.
type Registry struct {
	adapters map[string]domain.SiteAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.SiteAdapter)}
}

func NewDefaultRegistry(fetcher *Fetcher) *Registry {
	r := NewRegistry()
	r.Register(NewAmazon(fetcher), "amazon.in", "www.amazon.in", "m.amazon.in")
	r.Register(NewFlipkart(fetcher), "flipkart.com", "www.flipkart.com", "dl.flipkart.com")
	return r
}

func (r *Registry) Register(adapter domain.SiteAdapter, hosts ...string) {
	for _, host := range hosts {
		r.adapters[strings.ToLower(host)] = adapter
	}
}

func (r *Registry) Resolve(rawURL string) (domain.SiteAdapter, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}
	adapter, ok := r.adapters[strings.ToLower(u.Hostname())]
	return adapter, ok
}

func (r *Registry) Hosts() []string {
	hosts := make([]string, 0, len(r.adapters))
	for host := range r.adapters {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}
