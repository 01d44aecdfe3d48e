package assign

import (
	"time"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

var nop = logger.NopLogger{}

func date(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func intPtr(i int) *int { return &i }

// newClient returns an active weekly client last served on 2024-01-08, so it
// is due on 2024-01-15.
func newClient(id, region, route string, services ...string) model.Client {
	return model.Client{
		ID:              id,
		CompanyName:     "Company " + id,
		Region:          region,
		Route:           route,
		Services:        services,
		Frequency:       "weekly",
		LastServiceDate: datePtr("2024-01-08"),
		Active:          true,
	}
}

func newStaff(id, region string, specs ...string) model.Staff {
	return model.Staff{ID: id, Name: "Staff " + id, Region: region, Specializations: specs, Active: true}
}

func newVehicle(id, region string, specs ...string) model.Vehicle {
	return model.Vehicle{ID: id, Region: region, Capacity: 10, Specializations: specs, Available: true}
}

func dueOf(c model.Client) DueClient {
	return DueClient{Client: c, DueDate: date("2024-01-15"), Services: c.ServiceSet()}
}

func settingsWithBands(low, mid, high, overflow int) model.AssignmentSettings {
	s := model.DefaultSettings()
	s.Bands = model.StaffingBands{Low: low, Mid: mid, High: high, Overflow: overflow}
	return s
}
