package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RainfallMode selects how the design depth is obtained when no verbatim
// rainfall table is supplied.
type RainfallMode string

const (
	RainfallModeTotalDepth   RainfallMode = "total_depth"
	RainfallModeReturnPeriod RainfallMode = "return_period"
)

// RunDescriptor carries the resolved run settings used for the summary text
// and the NetCDF global attributes.
type RunDescriptor struct {
	RainfallMode     RainfallMode `json:"rainfall_mode"`
	RainfallTotalMM  float64      `json:"rainfall_total_mm"`
	DurationHours    float64      `json:"duration_hours"`
	PostEventHours   float64      `json:"post_event_hours"`
	Size             float64      `json:"size,omitempty"`
	X                float64      `json:"x,omitempty"`
	Y                float64      `json:"y,omitempty"`
	OpenBoundaries   bool         `json:"open_boundaries"`
	PermeableAreas   string       `json:"permeable_areas"`
	RoofStorage      float64      `json:"roof_storage"`
	ReturnPeriod     int          `json:"return_period,omitempty"`
	TimeHorizon      string       `json:"time_horizon,omitempty"`
	UpliftPercent    float64      `json:"uplift_percent,omitempty"`
	Discharge        float64      `json:"discharge,omitempty"`
	Buildings        int          `json:"buildings"`
	GreenAreas       int          `json:"green_areas"`
	VerbatimRainfall bool         `json:"verbatim_rainfall"`
	ProjectionEPSG   int          `json:"projection"`
}

// Title returns a one-line run label such as "CityCat 2080 100yr 62mm".
func (d RunDescriptor) Title() string {
	var b strings.Builder
	b.WriteString("CityCat")
	if d.RainfallMode == RainfallModeReturnPeriod && !d.VerbatimRainfall {
		fmt.Fprintf(&b, " %s %dyr", d.TimeHorizon, d.ReturnPeriod)
	}
	fmt.Fprintf(&b, " %dmm", int(math.Round(d.RainfallTotalMM)))
	if d.RoofStorage > 0 {
		fmt.Fprintf(&b, " storage=%gm", d.RoofStorage)
	}
	if d.Discharge > 0 {
		fmt.Fprintf(&b, " %gm3/s", d.Discharge)
	}
	return b.String()
}

// Description returns a prose summary of the run settings.
func (d RunDescriptor) Description() string {
	var b strings.Builder
	if d.RainfallMode == RainfallModeReturnPeriod && !d.VerbatimRainfall {
		fmt.Fprintf(&b, "The %dyr %ghr event was extracted from the UKCP18 baseline (1980-2000)", d.ReturnPeriod, d.DurationHours)
		if d.TimeHorizon != BaselineHorizon {
			fmt.Fprintf(&b, " and uplifted by %g%%", d.UpliftPercent)
		}
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "Total depth of rainfall was %dmm. ", int(math.Round(d.RainfallTotalMM)))
	if d.PostEventHours > 0 {
		fmt.Fprintf(&b, "Following the %ghr event, the simulation continued for %ghrs. ", d.DurationHours, d.PostEventHours)
	}
	if d.Buildings > 0 {
		fmt.Fprintf(&b, "%d buildings were extracted from the domain. ", d.Buildings)
	}
	if d.GreenAreas > 0 {
		fmt.Fprintf(&b, "%d green areas where infiltration can take place were defined. ", d.GreenAreas)
	}
	state := "closed"
	if d.OpenBoundaries {
		state = "open"
	}
	fmt.Fprintf(&b, "The boundaries of the domain were set to %s.", state)
	if d.RoofStorage > 0 {
		fmt.Fprintf(&b, " There was %gm of roof storage.", d.RoofStorage)
	}
	if d.Discharge > 0 {
		fmt.Fprintf(&b, " A flow of %g cumecs was used as a boundary condition.", d.Discharge)
	}
	return b.String()
}

// RunEvent is published when a run finishes.
type RunEvent struct {
	RunID         string        `json:"run_id"`
	Status        RunStatus     `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Domain        BoundingBox   `json:"bbox"`
	Title         string        `json:"title,omitempty"`
	Description   string        `json:"description,omitempty"`
	Run           RunDescriptor `json:"run"`
	Artifacts     []string      `json:"artifacts,omitempty"`
	SolverSeconds float64       `json:"solver_seconds,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Stage names a pipeline step.
type Stage string

const (
	StagePending Stage = "pending"
	StagePrepare Stage = "prepare"
	StageSolve   Stage = "solve"
	StageDerive  Stage = "derive"
	StagePublish Stage = "publish"
	StageDone    Stage = "done"
)

// RunProgress is a point-in-time view of the current run.
type RunProgress struct {
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}
