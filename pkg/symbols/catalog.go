package symbols

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"vinalytics-hq/mekong/pkg/market"
)

// DefaultSymbols is the built-in catalog: liquid HOSE tickers served when
// no catalog file is configured.
var DefaultSymbols = []string{
	"VCB", "FPT", "HPG", "MWG", "VNM", "VIC", "BID", "CTG", "TCB", "ACB",
	"HDB", "MBB", "STB", "TPB", "VGI", "SAB", "PLX", "GAS", "POW", "REE",
}

// Catalog is the thread-safe set of known symbols.
type Catalog struct {
	mu      sync.RWMutex
	path    string
	ordered []string
	index   map[string]struct{}

	logger *slog.Logger
}

// catalogFile is the YAML shape of a catalog file.
type catalogFile struct {
	Symbols []string `yaml:"symbols"`
}

// NewCatalog creates a catalog holding the built-in symbol list.
func NewCatalog() *Catalog {
	c := &Catalog{
		logger: slog.Default().With("component", "symbols"),
	}
	c.replace(DefaultSymbols)
	return c
}

// NewCatalogFromFile creates a catalog backed by a YAML file. Subsequent
// Reload calls re-read the same file.
func NewCatalogFromFile(path string) (*Catalog, error) {
	c := NewCatalog()
	c.path = path
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the backing file path, empty for the built-in catalog.
func (c *Catalog) Path() string {
	return c.path
}

// Symbols returns the catalog contents in file order.
func (c *Catalog) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.ordered...)
}

// Len returns the number of symbols in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// Contains reports whether the normalized symbol is in the catalog.
func (c *Catalog) Contains(symbol string) bool {
	normalized, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[normalized]
	return ok
}

// Reload re-reads the backing file. A catalog without a backing file
// reloads to the built-in list. On error the previous contents stay in
// place.
func (c *Catalog) Reload() error {
	if c.path == "" {
		c.replace(DefaultSymbols)
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading symbol catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing symbol catalog %s: %w", c.path, err)
	}
	if len(file.Symbols) == 0 {
		return fmt.Errorf("symbol catalog %s lists no symbols", c.path)
	}

	c.replace(file.Symbols)
	c.logger.Info("symbol catalog loaded", "path", c.path, "symbols", c.Len())
	return nil
}

// replace swaps the catalog contents, normalizing and deduplicating.
func (c *Catalog) replace(symbols []string) {
	ordered := make([]string, 0, len(symbols))
	index := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		normalized, err := market.NormalizeSymbol(s)
		if err != nil {
			continue
		}
		if _, seen := index[normalized]; seen {
			continue
		}
		ordered = append(ordered, normalized)
		index[normalized] = struct{}{}
	}

	c.mu.Lock()
	c.ordered = ordered
	c.index = index
	c.mu.Unlock()
}
