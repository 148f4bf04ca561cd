package internal

import (
	"bufio"
	"fmt"
	"github.com/shopspring/decimal"
	"io"
	"os"
	"paygate/entity"
	"paygate/services"
	"sort"
	"strings"
	"sync"
)

// Catalog maps resource names to prices. It is filled once and only read afterwards,
// so concurrent lookups need no locking.
type Catalog struct {
	currency string
	prices   map[string]decimal.Decimal
}

var catalog *Catalog
var catalogErr error
var catalogOnce sync.Once

// GetCatalog loads the price list from path on the first call and returns the same
// catalog (or the same error) on every later call, whatever path is passed.
func GetCatalog(path, currency string, logger services.LogHandler) (*Catalog, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = LoadCatalog(path, currency, logger)
	})
	return catalog, catalogErr
}

func LoadCatalog(path, currency string, logger services.LogHandler) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return ReadCatalog(file, currency, logger)
}

// ReadCatalog reads name=price lines. Blank lines and lines starting with '#' are ignored;
// lines that do not split into exactly one name and one decimal price are skipped.
func ReadCatalog(r io.Reader, currency string, logger services.LogHandler) (*Catalog, error) {
	c := &Catalog{
		currency: currency,
		prices:   make(map[string]decimal.Decimal),
	}

	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) != 2 {
			warn(logger, fmt.Sprintf("catalog line %d: expected name=price", number))
			continue
		}
		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			warn(logger, fmt.Sprintf("catalog line %d: empty name or price", number))
			continue
		}
		price, err := decimal.NewFromString(value)
		if err != nil {
			warn(logger, fmt.Sprintf("catalog line %d: invalid price %q", number, value))
			continue
		}
		if _, exists := c.prices[name]; exists {
			warn(logger, fmt.Sprintf("catalog line %d: %s redefined", number, name))
		}
		c.prices[name] = price
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (entity.Resource, error) {
	price, ok := c.prices[name]
	if !ok {
		return entity.Resource{}, newError(ErrResourceNotFound, "lookup "+name, nil)
	}
	return entity.Resource{
		Name:     name,
		Price:    price,
		Currency: c.currency,
	}, nil
}

func (c *Catalog) Len() int {
	return len(c.prices)
}

// Resources lists the catalog sorted by name.
func (c *Catalog) Resources() []entity.Resource {
	resources := make([]entity.Resource, 0, len(c.prices))
	for name, price := range c.prices {
		resources = append(resources, entity.Resource{Name: name, Price: price, Currency: c.currency})
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})
	return resources
}

func warn(logger services.LogHandler, text string) {
	if logger != nil {
		logger.Warn(text)
	}
}
