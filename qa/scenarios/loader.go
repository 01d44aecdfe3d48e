// Package scenarios loads reproducible assignment datasets from YAML files
// and runs them through the engine on an in-memory store.
package scenarios

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
)

type ClientDef struct {
	ID              string   `yaml:"id"`
	CompanyName     string   `yaml:"company_name,omitempty"`
	Region          string   `yaml:"region"`
	Route           string   `yaml:"route"`
	SiteID          string   `yaml:"site_id,omitempty"`
	Services        []string `yaml:"services"`
	Frequency       string   `yaml:"frequency"`
	LastServiceDate string   `yaml:"last_service_date,omitempty"`
	Quantity        *int     `yaml:"quantity,omitempty"`
	// Status is one of active, inactive or prospect. Empty means active.
	Status string `yaml:"status,omitempty"`
}

func (c ClientDef) ToModel() (model.Client, error) {
	m := model.Client{
		ID:          c.ID,
		CompanyName: c.CompanyName,
		Region:      c.Region,
		Route:       c.Route,
		SiteID:      c.SiteID,
		Services:    c.Services,
		Frequency:   c.Frequency,
		Quantity:    c.Quantity,
	}
	if c.LastServiceDate != "" {
		d, err := model.ParseDate(c.LastServiceDate)
		if err != nil {
			return model.Client{}, fmt.Errorf("client %s: %w", c.ID, err)
		}
		m.LastServiceDate = &d
	}
	switch strings.ToLower(c.Status) {
	case "", "active":
		m.Active = true
	case "inactive":
		m.Inactive = true
	case "prospect":
		m.Prospect = true
	default:
		return model.Client{}, fmt.Errorf("client %s: unknown status %q", c.ID, c.Status)
	}
	return m, nil
}

type StaffDef struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name,omitempty"`
	Region          string   `yaml:"region"`
	Specializations []string `yaml:"specializations"`
	HandlesAll      bool     `yaml:"handles_all"`
	MultiRegion     bool     `yaml:"multi_region"`
	OnLeave         bool     `yaml:"on_leave"`
	LaidOff         bool     `yaml:"laid_off"`
	Emergency       bool     `yaml:"emergency"`
	Active          *bool    `yaml:"active,omitempty"`
}

func (s StaffDef) ToModel() model.Staff {
	return model.Staff{
		ID:              s.ID,
		Name:            s.Name,
		Region:          s.Region,
		Specializations: s.Specializations,
		HandlesAll:      s.HandlesAll,
		MultiRegion:     s.MultiRegion,
		OnLeave:         s.OnLeave,
		LaidOff:         s.LaidOff,
		Emergency:       s.Emergency,
		Active:          orTrue(s.Active),
	}
}

type VehicleDef struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name,omitempty"`
	Region          string   `yaml:"region"`
	Capacity        int      `yaml:"capacity"`
	Specializations []string `yaml:"specializations"`
	HandlesAll      bool     `yaml:"handles_all"`
	Available       *bool    `yaml:"available,omitempty"`
}

func (v VehicleDef) ToModel() model.Vehicle {
	return model.Vehicle{
		ID:              v.ID,
		Name:            v.Name,
		Region:          v.Region,
		Capacity:        v.Capacity,
		Specializations: v.Specializations,
		HandlesAll:      v.HandlesAll,
		Available:       orTrue(v.Available),
	}
}

type SubRegionDef struct {
	Region       string   `yaml:"region"`
	Name         string   `yaml:"name"`
	Routes       []string `yaml:"routes"`
	AllowedStaff []string `yaml:"allowed_staff,omitempty"`
}

func (s SubRegionDef) ToModel() model.SubRegion {
	return model.SubRegion{Region: s.Region, Name: s.Name, Routes: s.Routes, AllowedStaff: s.AllowedStaff}
}

type AccessDef struct {
	ClientID     string   `yaml:"client_id"`
	AllowedStaff []string `yaml:"allowed_staff"`
	Comment      string   `yaml:"comment,omitempty"`
}

func (a AccessDef) ToModel() model.SpecialAccess {
	return model.SpecialAccess{ClientID: a.ClientID, AllowedStaff: a.AllowedStaff, Comment: a.Comment}
}

type FrequencyDef struct {
	Name         string `yaml:"name"`
	Label        string `yaml:"label,omitempty"`
	IntervalDays int    `yaml:"interval_days"`
	Active       *bool  `yaml:"active,omitempty"`
}

func (f FrequencyDef) ToModel() model.FrequencySetting {
	return model.FrequencySetting{Name: f.Name, Label: f.Label, IntervalDays: f.IntervalDays, Active: orTrue(f.Active)}
}

type BandsDef struct {
	Low      int `yaml:"low"`
	Mid      int `yaml:"mid"`
	High     int `yaml:"high"`
	Overflow int `yaml:"overflow"`
}

// SettingsDef is stored as the record store settings of the scenario.
type SettingsDef struct {
	Enabled             *bool    `yaml:"enabled,omitempty"`
	NoAutomationWeekday *int     `yaml:"no_automation_weekday,omitempty"`
	Bands               BandsDef `yaml:"bands"`
	LowClientThreshold  int      `yaml:"low_client_threshold"`
	MidClientThreshold  int      `yaml:"mid_client_threshold"`
	HighClientThreshold int      `yaml:"high_client_threshold"`
	ServiceCheck        string   `yaml:"service_check,omitempty"`
	MaxQuantity         int      `yaml:"max_quantity"`
	RegionPriority      []string `yaml:"region_priority,omitempty"`
}

func (s SettingsDef) ToModel() model.AssignmentSettings {
	return model.AssignmentSettings{
		Enabled:             s.Enabled,
		NoAutomationWeekday: s.NoAutomationWeekday,
		Bands:               model.StaffingBands(s.Bands),
		LowClientThreshold:  s.LowClientThreshold,
		MidClientThreshold:  s.MidClientThreshold,
		HighClientThreshold: s.HighClientThreshold,
		ServiceCheck:        s.ServiceCheck,
		MaxQuantity:         s.MaxQuantity,
		RegionPriority:      s.RegionPriority,
	}
}

// Expected lists the checks applied to the final run of a scenario. Unset
// fields are not checked.
type Expected struct {
	Status     string `yaml:"status"`
	SkipReason string `yaml:"skip_reason,omitempty"`
	Due        *int   `yaml:"due,omitempty"`
	Assigned   *int   `yaml:"assigned,omitempty"`
	Unassigned *int   `yaml:"unassigned,omitempty"`
	// Staff maps client id to the staff member serving it.
	Staff map[string]string `yaml:"staff,omitempty"`
	// Reasons maps client id to its unassigned reason.
	Reasons map[string]string `yaml:"reasons,omitempty"`
	// Vehicles maps region/subregion to the covering vehicle ids.
	Vehicles    map[string][]string `yaml:"vehicles,omitempty"`
	Uncovered   []string            `yaml:"uncovered,omitempty"`
	DataQuality []string            `yaml:"data_quality,omitempty"`
	MaxSpread   *int                `yaml:"max_spread,omitempty"`
}

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Date is the target date of the checked run.
	Date     string `yaml:"date"`
	LeadDays int    `yaml:"lead_days,omitempty"`
	// History lists target dates run, in order, before Date.
	History       []string       `yaml:"history,omitempty"`
	Settings      *SettingsDef   `yaml:"settings,omitempty"`
	Clients       []ClientDef    `yaml:"clients"`
	Staff         []StaffDef     `yaml:"staff"`
	Vehicles      []VehicleDef   `yaml:"vehicles"`
	SubRegions    []SubRegionDef `yaml:"subregions"`
	SpecialAccess []AccessDef    `yaml:"special_access,omitempty"`
	Frequencies   []FrequencyDef `yaml:"frequencies,omitempty"`
	Expected      Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	return &sc, nil
}

// Target parses the scenario date.
func (sc *Scenario) Target() (time.Time, error) {
	d, err := model.ParseDate(sc.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("scenario %s date: %w", sc.Name, err)
	}
	return d, nil
}

// Dataset converts the scenario records to store input.
func (sc *Scenario) Dataset() (store.Dataset, error) {
	var ds store.Dataset
	for _, c := range sc.Clients {
		m, err := c.ToModel()
		if err != nil {
			return store.Dataset{}, err
		}
		ds.Clients = append(ds.Clients, m)
	}
	for _, s := range sc.Staff {
		ds.Staff = append(ds.Staff, s.ToModel())
	}
	for _, v := range sc.Vehicles {
		ds.Vehicles = append(ds.Vehicles, v.ToModel())
	}
	for _, s := range sc.SubRegions {
		ds.SubRegions = append(ds.SubRegions, s.ToModel())
	}
	for _, a := range sc.SpecialAccess {
		ds.SpecialAccess = append(ds.SpecialAccess, a.ToModel())
	}
	for _, f := range sc.Frequencies {
		ds.Frequencies = append(ds.Frequencies, f.ToModel())
	}
	if sc.Settings != nil {
		s := sc.Settings.ToModel()
		ds.Settings = &s
	}
	return ds, nil
}

func orTrue(b *bool) bool {
	return b == nil || *b
}
