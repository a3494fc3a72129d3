// Package catalog loads the configuration documents that describe what the
// broker knows: item types, rules, services, value cross references,
// message texts and translators. Everything returned is read-only and shared
// by all requests.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"citebroker/internal/broker"
	"citebroker/internal/messages"
	"citebroker/internal/schema"
	"citebroker/internal/service"
	"citebroker/internal/translator"
)

const (
	applicationFile = "application.yaml"
	dataFile        = "data.yaml"
	rulesFile       = "rules.yaml"
	servicesFile    = "services.yaml"
	xrefFile        = "xref.yaml"
	messageFile     = "message.yaml"
	translationDir  = "translation"

	// OpenURLTranslator is the translator applied to inbound query strings.
	OpenURLTranslator = "openurl"
)

// Application holds the broker-wide settings from application.yaml.
type Application struct {
	ServiceAPIVersion         string            `yaml:"service_api_version"`
	ClientAPIVersion          string            `yaml:"client_api_version"`
	TierTimeoutMS             int               `yaml:"tier_timeout"`
	ServiceMaxResponseLength  int64             `yaml:"service_max_response_length"`
	OpenURLClientAffiliation  string            `yaml:"openurl_client_affiliation"`
	DefaultContentService     bool              `yaml:"default_content_service"`
	DefaultContentServicePort int               `yaml:"default_content_service_port"`
	Consortial                *ConsortialConfig `yaml:"consortial_service"`
}

// ConsortialConfig points at the affiliation lookup service. A "?" in each
// target is replaced by the value being translated.
type ConsortialConfig struct {
	TranslateFromIP   string `yaml:"translate_from_ip"`
	TranslateFromCode string `yaml:"translate_from_code"`
	TimeoutMS         int    `yaml:"timeout"`
}

// TierTimeout is the per tier deadline.
func (a Application) TierTimeout() time.Duration {
	if a.TierTimeoutMS <= 0 {
		return broker.DefaultTierTimeout
	}
	return time.Duration(a.TierTimeoutMS) * time.Millisecond
}

// Timeout bounds one consortial lookup.
func (c ConsortialConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Catalog is the loaded configuration.
type Catalog struct {
	Application Application
	Registry    *schema.Registry
	Rules       *broker.Rules
	Tiers       []service.TierSpec
	Messages    messages.Catalog
	Translators map[string]*translator.Translator
}

// Translator returns the named translator or nil, which translates nothing.
func (c *Catalog) Translator(name string) *translator.Translator {
	if name == "" {
		return nil
	}
	return c.Translators[name]
}

// Load reads the documents under dir.
func Load(dir string, logger *slog.Logger) (*Catalog, error) {
	return LoadFS(os.DirFS(dir), logger)
}

// LoadFS reads the documents from fsys. data.yaml, rules.yaml and
// services.yaml are required; the rest are optional. Rules naming services
// that are not configured are logged and left to resolution to ignore.
func LoadFS(fsys fs.FS, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{Translators: make(map[string]*translator.Translator)}

	if data, ok, err := readOptional(fsys, applicationFile); err != nil {
		return nil, err
	} else if ok {
		if err := yaml.Unmarshal(data, &c.Application); err != nil {
			return nil, fmt.Errorf("parse %s: %w", applicationFile, err)
		}
	}

	data, err := fs.ReadFile(fsys, dataFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dataFile, err)
	}
	defs, err := schema.ParseDefinitions(data)
	if err != nil {
		return nil, err
	}

	var xrefs schema.CrossReferences
	if data, ok, err := readOptional(fsys, xrefFile); err != nil {
		return nil, err
	} else if ok {
		if xrefs, err = schema.ParseCrossReferences(data); err != nil {
			return nil, err
		}
	}

	if c.Registry, err = schema.NewRegistry(defs, xrefs); err != nil {
		return nil, fmt.Errorf("build item registry: %w", err)
	}

	if data, err = fs.ReadFile(fsys, rulesFile); err != nil {
		return nil, fmt.Errorf("read %s: %w", rulesFile, err)
	}
	if c.Rules, err = broker.ParseRules(data); err != nil {
		return nil, err
	}

	if data, err = fs.ReadFile(fsys, servicesFile); err != nil {
		return nil, fmt.Errorf("read %s: %w", servicesFile, err)
	}
	if c.Tiers, err = service.ParseTiers(data); err != nil {
		return nil, err
	}

	if data, ok, err := readOptional(fsys, messageFile); err != nil {
		return nil, err
	} else if ok {
		if c.Messages, err = messages.Parse(data); err != nil {
			return nil, err
		}
	} else {
		c.Messages = messages.New(nil)
	}

	if err := c.loadTranslators(fsys); err != nil {
		return nil, err
	}

	c.check(logger)
	return c, nil
}

func (c *Catalog) loadTranslators(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, translationDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", translationDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".yaml")
		data, err := fs.ReadFile(fsys, path.Join(translationDir, e.Name()))
		if err != nil {
			return fmt.Errorf("read translator %s: %w", name, err)
		}
		t, err := translator.Parse(name, data)
		if err != nil {
			return err
		}
		c.Translators[name] = t
	}
	return nil
}

// check logs references that point nowhere.
func (c *Catalog) check(logger *slog.Logger) {
	configured := make(map[string]bool)
	for _, t := range c.Tiers {
		for _, def := range t.Services {
			configured[def.Name] = true
			if def.Translator != "" && c.Translators[def.Translator] == nil {
				logger.Warn("service names an unknown translator", "service", def.Name, "translator", def.Translator)
			}
		}
	}
	for _, name := range c.Rules.ServiceNames() {
		if !configured[name] {
			logger.Warn("rules reference an unconfigured service", "service", name)
		}
	}
	for typ := range c.Rules.Objects {
		if _, ok := c.Registry.Definition(typ); !ok {
			logger.Warn("rules reference an undefined item type", "type", typ)
		}
	}
}

func readOptional(fsys fs.FS, name string) ([]byte, bool, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return data, true, nil
}
