// Package catalog holds the trigger and action kinds known to the engine.
//
// The catalog is built in two phases: every kind is registered while the
// process starts, then Freeze is called before requests are served. A frozen
// catalog rejects registrations and is safe for concurrent reads.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrCatalogFrozen  = errors.New("catalog is frozen")
	ErrKindRegistered = errors.New("kind already registered")
	ErrUnknownKind    = errors.New("unknown kind")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidSchema  = errors.New("invalid configuration schema")
)

// Entry describes a registered kind for listings.
type Entry struct {
	Kind        string         `json:"kind"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

type Catalog struct {
	logger *slog.Logger

	mu       sync.RWMutex
	frozen   bool
	actions  map[models.ActionKind]protocol.ActionFactory
	triggers map[models.TriggerKind]protocol.TriggerFactory
	schemas  map[string]*gojsonschema.Schema
}

func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		logger:   logger,
		actions:  make(map[models.ActionKind]protocol.ActionFactory),
		triggers: make(map[models.TriggerKind]protocol.TriggerFactory),
		schemas:  make(map[string]*gojsonschema.Schema),
	}
}

func (c *Catalog) RegisterAction(factory protocol.ActionFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := models.ActionKind(factory.ID())
	if err := c.checkRegistration("action", factory.ID(), c.hasAction(kind)); err != nil {
		return err
	}

	schema, err := compileSchema(factory.Schema())
	if err != nil {
		return fmt.Errorf("action %s: %w", kind, err)
	}

	c.actions[kind] = factory
	c.schemas[actionKey(kind)] = schema

	c.logger.Debug("Registered action", "kind", kind)

	return nil
}

func (c *Catalog) RegisterTrigger(factory protocol.TriggerFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := models.TriggerKind(factory.ID())
	if err := c.checkRegistration("trigger", factory.ID(), c.hasTrigger(kind)); err != nil {
		return err
	}

	schema, err := compileSchema(factory.Schema())
	if err != nil {
		return fmt.Errorf("trigger %s: %w", kind, err)
	}

	c.triggers[kind] = factory
	c.schemas[triggerKey(kind)] = schema

	c.logger.Debug("Registered trigger", "kind", kind)

	return nil
}

// LoadActionPlugins opens every Go plugin under <pluginsPath>/actions and
// registers the ActionFactory each one exports as the "Action" symbol.
func (c *Catalog) LoadActionPlugins(pluginsPath string) error {
	factories, err := loadPlugins[protocol.ActionFactory](c.logger, pluginsPath, "Action")
	if err != nil {
		return err
	}

	for _, factory := range factories {
		if err := c.RegisterAction(factory); err != nil {
			return err
		}
	}

	return nil
}

// Freeze ends the registration phase.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frozen = true
	c.logger.Info("Catalog frozen", "actions", len(c.actions), "triggers", len(c.triggers))
}

func (c *Catalog) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.frozen
}

func (c *Catalog) Action(kind models.ActionKind) (protocol.ActionFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, ok := c.actions[kind]

	return factory, ok
}

func (c *Catalog) Trigger(kind models.TriggerKind) (protocol.TriggerFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, ok := c.triggers[kind]

	return factory, ok
}

// Actions lists the registered action kinds sorted by kind.
func (c *Catalog) Actions() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.actions))
	for _, f := range c.actions {
		entries = append(entries, Entry{Kind: f.ID(), Label: f.Name(), Description: f.Description(), Schema: f.Schema()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Kind < entries[j].Kind })

	return entries
}

// Triggers lists the registered trigger kinds sorted by kind.
func (c *Catalog) Triggers() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.triggers))
	for _, f := range c.triggers {
		entries = append(entries, Entry{Kind: f.ID(), Label: f.Name(), Description: f.Description(), Schema: f.Schema()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Kind < entries[j].Kind })

	return entries
}

// ValidateActionConfig checks config against the JSON schema of kind.
func (c *Catalog) ValidateActionConfig(kind models.ActionKind, config models.ActionConfig) error {
	c.mu.RLock()
	schema, ok := c.schemas[actionKey(kind)]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: action %q", ErrUnknownKind, kind)
	}

	return validateDocument(schema, config)
}

// ValidateTriggerConfig checks config against the JSON schema of kind and
// the kind's own validation.
func (c *Catalog) ValidateTriggerConfig(kind models.TriggerKind, config map[string]any) error {
	c.mu.RLock()
	schema, ok := c.schemas[triggerKey(kind)]
	factory := c.triggers[kind]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: trigger %q", ErrUnknownKind, kind)
	}

	if config == nil {
		config = map[string]any{}
	}

	if err := validateDocument(schema, config); err != nil {
		return err
	}

	if err := factory.Validate(config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func (c *Catalog) checkRegistration(what, kind string, exists bool) error {
	if c.frozen {
		return fmt.Errorf("%w: cannot register %s %q", ErrCatalogFrozen, what, kind)
	}

	if kind == "" {
		return fmt.Errorf("%w: %s kind is empty", ErrUnknownKind, what)
	}

	if exists {
		return fmt.Errorf("%w: %s %q", ErrKindRegistered, what, kind)
	}

	return nil
}

func (c *Catalog) hasAction(kind models.ActionKind) bool {
	_, ok := c.actions[kind]

	return ok
}

func (c *Catalog) hasTrigger(kind models.TriggerKind) bool {
	_, ok := c.triggers[kind]

	return ok
}

func actionKey(kind models.ActionKind) string   { return "action:" + string(kind) }
func triggerKey(kind models.TriggerKind) string { return "trigger:" + string(kind) }

func compileSchema(schema map[string]any) (*gojsonschema.Schema, error) {
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	return compiled, nil
}

func validateDocument(schema *gojsonschema.Schema, document any) error {
	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(messages, "; "))
}

func loadPlugins[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := filepath.Join(pluginsPath, strings.ToLower(symbolName)+"s")
	if _, err := os.Stat(rootPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", rootPath), slog.String("type", symbolName))
	l.Info("Loading plugins", "count", len(pluginPathList))

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s does not export %s: %w", p, symbolName, err)
		}

		value, ok := symbol.(T)
		if !ok {
			if ptr, isPtr := symbol.(*T); isPtr {
				value = *ptr
			} else {
				return nil, fmt.Errorf("plugin %s: %s has unexpected type %T", p, symbolName, symbol)
			}
		}

		pluginList = append(pluginList, value)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
