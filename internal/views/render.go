package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/mverbeek/windmask-monitor/internal/models"
)

var dashboardTmpl *template.Template

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup
// before serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// StationOption is the view model for a station in the dashboard selector.
type StationOption struct {
	ID       string
	Name     string
	Selected bool
}

// DashboardData is the view model for the dashboard page.
type DashboardData struct {
	StationName string
	StationID   string

	BannerClass string // required | clear | unknown | error
	BannerText  string

	Bearing     string // formatted degrees or an em-dash placeholder
	MeasuredAt  string
	RetrievedAt string

	MinDegrees float64
	MaxDegrees float64

	Stations       []StationOption
	LookbackHours  int
	RefreshSeconds int
	AutoRefresh    bool

	FetchError string
}

// BuildDashboardData maps an evaluated station status onto the view model.
func BuildDashboardData(status models.StationStatus) DashboardData {
	d := DashboardData{
		StationName: status.StationName,
		StationID:   status.StationID,
		MinDegrees:  status.MinDegrees,
		MaxDegrees:  status.MaxDegrees,
		Bearing:     "—",
		MeasuredAt:  "unknown",
		RetrievedAt: formatLocal(status.Observation.RetrievedAt),
	}
	switch {
	case !status.Observation.HasReading():
		d.BannerClass = "unknown"
		d.BannerText = "No recent wind data"
	case status.MaskRequired:
		d.BannerClass = "required"
		d.BannerText = "Advisory: wear a mask in marked areas"
	default:
		d.BannerClass = "clear"
		d.BannerText = "No mask advisory in effect"
	}
	if status.Observation.HasReading() {
		d.Bearing = fmt.Sprintf("%.0f°", *status.Observation.Direction)
		d.MeasuredAt = formatLocal(*status.Observation.MeasuredAt)
	}
	return d
}

// RenderDashboard executes the dashboard template into w.
func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

func formatLocal(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05 MST")
}
