package config

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Profile describes one SQL datasource.
type Profile struct {
	Name         string
	Driver       string
	DSN          string
	Boot         []string // SQL files executed once after connecting
	MaxOpenConns int
	// Options holds the remaining keys of the section, used to build the
	// DSN of drivers that support it when dsn is empty.
	Options map[string]string
}

var profileKeys = map[string]bool{"driver": true, "dsn": true, "boot": true, "max_open_conns": true}

type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, name string) (*Profile, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

// NewRegistry loads datasource profiles from an ini file:
//
//	[warehouse]
//	driver = sqlite
//	dsn    = file:warehouse.db
//	boot   = schema.sql, seed.sql
func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &cfgRegistry{cfg: cfg}, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetProfile(_ context.Context, name string) (*Profile, error) {
	section, err := cr.cfg.GetSection(name)
	if err != nil || len(section.Keys()) == 0 {
		return nil, fmt.Errorf("profile %s not found", name)
	}

	driver := section.Key("driver").String()
	if driver == "" {
		return nil, fmt.Errorf("profile %s: driver is required", name)
	}

	var boot []string
	for _, f := range section.Key("boot").Strings(",") {
		if f = strings.TrimSpace(f); f != "" {
			boot = append(boot, f)
		}
	}

	options := make(map[string]string)
	for _, key := range section.Keys() {
		if !profileKeys[key.Name()] {
			options[key.Name()] = key.String()
		}
	}

	return &Profile{
		Name:         name,
		Driver:       driver,
		DSN:          section.Key("dsn").String(),
		Boot:         boot,
		MaxOpenConns: section.Key("max_open_conns").MustInt(0),
		Options:      options,
	}, nil
}
