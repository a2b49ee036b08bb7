package mcp

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultFallbackDir is the last candidate probed for provider roots.
const DefaultFallbackDir = "/opt/campus-agent/providers"

// ProviderSpec is the static description of a provider from configuration.
type ProviderSpec struct {
	Name    string
	Root    string // explicit override; wins when it exists
	Command string // defaults to <root>/server
	Args    []string
	Env     []string
}

// Provider is a ProviderSpec after root resolution.
type Provider struct {
	Name       string
	Root       string
	Command    string
	Args       []string
	Env        []string
	Available  bool
	Candidates []string
}

// RegistryOptions configure root probing.
type RegistryOptions struct {
	RepoRoot    string
	WorkDir     string
	FallbackDir string
	LookupEnv   func(string) (string, bool)
	Logger      *slog.Logger
}

// Registry holds the resolved providers and one mutex per provider. It is
// built once at startup and only read afterwards.
type Registry struct {
	providers map[string]Provider
	locks     map[string]*sync.Mutex
	order     []string
}

// NewRegistry resolves every spec's root by probing, in order: the explicit
// override (spec or CAMPUS_PROVIDER_<NAME>_ROOT), the repository-relative
// providers/<name>, the working-directory-relative providers/<name>, and the
// fixed fallback directory. The first existing directory wins. Providers with
// no existing root are kept but marked unavailable.
func NewRegistry(specs []ProviderSpec, opts RegistryOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	workDir := opts.WorkDir
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}
	fallback := opts.FallbackDir
	if fallback == "" {
		fallback = DefaultFallbackDir
	}

	r := &Registry{
		providers: make(map[string]Provider, len(specs)),
		locks:     make(map[string]*sync.Mutex, len(specs)),
	}

	for _, spec := range specs {
		name := normalizeName(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("mcp: provider name is empty")
		}
		if _, dup := r.providers[name]; dup {
			return nil, fmt.Errorf("mcp: provider %s registered twice", name)
		}

		candidates := candidateRoots(name, spec.Root, lookup, opts.RepoRoot, workDir, fallback)
		p := Provider{
			Name:       name,
			Args:       append([]string(nil), spec.Args...),
			Env:        append([]string(nil), spec.Env...),
			Candidates: candidates,
		}
		for _, dir := range candidates {
			if isDir(dir) {
				p.Root = dir
				p.Available = true
				break
			}
		}

		p.Command = spec.Command
		if p.Command == "" && p.Root != "" {
			p.Command = filepath.Join(p.Root, "server")
		}

		if p.Available {
			logger.Debug("provider resolved", "provider", name, "root", p.Root)
		} else {
			logger.Warn("provider unavailable; tools backed by it will degrade",
				"provider", name, "candidates", candidates)
		}

		r.providers[name] = p
		r.locks[name] = &sync.Mutex{}
		r.order = append(r.order, name)
	}
	return r, nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	p, ok := r.providers[normalizeName(name)]
	return p, ok
}

// Providers returns all providers in registration order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Available returns the names of providers whose root was found, sorted.
func (r *Registry) Available() []string {
	var names []string
	for _, p := range r.Providers() {
		if p.Available {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}

// lock returns the mutex serialising subprocess spawns for a provider.
func (r *Registry) lock(name string) *sync.Mutex {
	return r.locks[normalizeName(name)]
}

func candidateRoots(name, override string, lookup func(string) (string, bool), repoRoot, workDir, fallback string) []string {
	var out []string
	add := func(dir string) {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return
		}
		dir = filepath.Clean(dir)
		for _, existing := range out {
			if existing == dir {
				return
			}
		}
		out = append(out, dir)
	}

	add(override)
	if v, ok := lookup(envOverrideKey(name)); ok {
		add(v)
	}
	if repoRoot != "" {
		add(filepath.Join(repoRoot, "providers", name))
	}
	if workDir != "" {
		add(filepath.Join(workDir, "providers", name))
	}
	add(filepath.Join(fallback, name))
	return out
}

func envOverrideKey(name string) string {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	return "CAMPUS_PROVIDER_" + key + "_ROOT"
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
