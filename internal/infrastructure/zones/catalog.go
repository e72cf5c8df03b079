// Package zones holds the catalog of named municipal areas shown on the map and
// optionally enforced at intake.
package zones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"civicdesk/internal/bootstrap/logging"
	"civicdesk/internal/errs"
)

const DefaultDebounce = 300 * time.Millisecond

type Zone struct {
	Name string  `toml:"name" json:"name"`
	Lat  float64 `toml:"lat" json:"lat"`
	Lng  float64 `toml:"lng" json:"lng"`
}

type catalogFile struct {
	Zones []Zone `toml:"zones"`
}

// DefaultZones is used when no catalog file is configured.
func DefaultZones() []Zone {
	return []Zone{
		{Name: "Bhanugudi", Lat: 16.9604, Lng: 82.2381},
		{Name: "Sarpavaram", Lat: 16.9945, Lng: 82.2530},
		{Name: "Gandhi Nagar", Lat: 16.9535, Lng: 82.2435},
		{Name: "Main Road", Lat: 16.9341, Lng: 82.2270},
		{Name: "Jagannaickpur", Lat: 16.9320, Lng: 82.2350},
		{Name: "Ramanayyapeta", Lat: 16.9750, Lng: 82.2450},
	}
}

type Catalog struct {
	path string

	mu    sync.RWMutex
	zones []Zone
	index map[string]Zone
}

// Load reads path, or returns the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: strings.TrimSpace(path)}
	if c.path == "" {
		if err := c.set(DefaultZones()); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the file. On error the previous zones stay in effect.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return errs.Wrapf(err, "read zones file %q", c.path)
	}
	zones, err := Parse(raw)
	if err != nil {
		return errs.Wrapf(err, "parse zones file %q", c.path)
	}
	return c.set(zones)
}

// Parse decodes a TOML document of [[zones]] tables.
func Parse(raw []byte) ([]Zone, error) {
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Zones) == 0 {
		return nil, errors.New("no zones defined")
	}
	return file.Zones, nil
}

func (c *Catalog) set(zones []Zone) error {
	index := make(map[string]Zone, len(zones))
	cleaned := make([]Zone, 0, len(zones))
	for i, zone := range zones {
		zone.Name = strings.TrimSpace(zone.Name)
		if zone.Name == "" {
			return fmt.Errorf("zone %d: name is required", i)
		}
		if zone.Lat < -90 || zone.Lat > 90 || zone.Lng < -180 || zone.Lng > 180 {
			return fmt.Errorf("zone %q: coordinates out of range", zone.Name)
		}
		key := normalize(zone.Name)
		if _, dup := index[key]; dup {
			return fmt.Errorf("zone %q: duplicate name", zone.Name)
		}
		index[key] = zone
		cleaned = append(cleaned, zone)
	}

	c.mu.Lock()
	c.zones = cleaned
	c.index = index
	c.mu.Unlock()
	return nil
}

func (c *Catalog) List() []Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Zone(nil), c.zones...)
}

// Lookup matches area names case-insensitively, ignoring surrounding and repeated spaces.
func (c *Catalog) Lookup(area string) (Zone, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	zone, ok := c.index[normalize(area)]
	return zone, ok
}

func (c *Catalog) Contains(area string) bool {
	_, ok := c.Lookup(area)
	return ok
}

// Watch reloads the catalog when its file changes until ctx is done. The parent
// directory is watched so editors that replace the file are picked up too.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create zones watcher")
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return errs.Wrapf(err, "watch %q", dir)
	}
	target := filepath.Clean(c.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := c.Reload(); err != nil {
					logging.Warn(ctx, "zones reload failed, keeping previous catalog", slog.Any("err", errs.Loggable(err)))
					return
				}
				logging.Info(ctx, "zones reloaded", slog.Int("count", len(c.List())))
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "zones watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
