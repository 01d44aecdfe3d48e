package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientValidate(t *testing.T) {
	assert.NoError(t, Client{ID: "c", Active: true}.Validate())
	err := Client{ID: "c", Active: true, Prospect: true}.Validate()
	assert.True(t, errors.Is(err, ErrClientStatus))
	assert.Error(t, Client{ID: "c"}.Validate())
}

func TestClientLocationKey(t *testing.T) {
	assert.Equal(t, "site-1", Client{SiteID: " Site-1 ", Route: "R"}.LocationKey())
	assert.Equal(t, "route a", Client{Route: " Route A"}.LocationKey())
}

func TestStaffAvailability(t *testing.T) {
	assert.True(t, Staff{Active: true}.Available())
	assert.Equal(t, StaffInactive, Staff{}.UnavailableReason())
	assert.Equal(t, StaffOnLeave, Staff{Active: true, OnLeave: true}.UnavailableReason())
	assert.Equal(t, StaffLaidOff, Staff{Active: true, LaidOff: true}.UnavailableReason())
	assert.Equal(t, StaffEmergency, Staff{Active: true, Emergency: true}.UnavailableReason())
}

func TestServiceSet(t *testing.T) {
	a := NewServiceSet("Sanitary_Bins", " mats ", "")
	b := NewServiceSet("mats")
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Covers(b))
	assert.False(t, b.Covers(a))
	assert.Equal(t, 1, a.Overlap(b))
	assert.Equal(t, []string{"sanitary_bins"}, a.Minus(b).Sorted())
	assert.Equal(t, []string{"mats", "sanitary_bins"}, b.Union(a).Sorted())
	assert.True(t, NewServiceSet().Covers(NewServiceSet()))
}

func TestVehicleServes(t *testing.T) {
	v := Vehicle{Specializations: []string{"mats"}}
	assert.True(t, v.Serves(NewServiceSet("MATS")))
	assert.False(t, v.Serves(NewServiceSet("mats", "sanitary_bins")))
	v.HandlesAll = true
	assert.True(t, v.Serves(NewServiceSet("mats", "sanitary_bins")))
}

func TestSettingsRequiredStaff(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())
	assert.True(t, s.IsEnabled())
	assert.Equal(t, 1, s.RequiredStaff(1))
	assert.Equal(t, 1, s.RequiredStaff(10))
	assert.Equal(t, 2, s.RequiredStaff(11))
	assert.Equal(t, 3, s.RequiredStaff(30))
	assert.Equal(t, 4, s.RequiredStaff(31))
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.Bands.Mid = 0
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	w := 7
	s.NoAutomationWeekday = &w
	assert.Error(t, s.Validate())

	off := false
	s = DefaultSettings()
	s.Enabled = &off
	assert.False(t, s.IsEnabled())
}

func TestDates(t *testing.T) {
	d := time.Date(2024, 1, 1, 22, 30, 0, 0, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-01-01", DateKey(d))
	assert.Equal(t, 14, DaysBetween(Day(d), AddDays(d, 14)))
	p, err := ParseDate("2024-02-29")
	assert.NoError(t, err)
	assert.Equal(t, time.February, p.Month())
}
