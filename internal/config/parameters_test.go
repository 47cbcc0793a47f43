package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/citycat-pipeline/internal/config"
	"github.com/couchcryptid/citycat-pipeline/internal/domain"
	"github.com/smartystreets/goconvey/convey"
)

var parameterEnv = []string{
	"RAINFALL_MODE", "TOTAL_DEPTH", "DURATION", "POST_EVENT_DURATION",
	"OUTPUT_INTERVAL", "OPEN_BOUNDARIES", "ROOF_STORAGE", "PERMEABLE_AREAS",
	"PROJECTION", "GRID_PROJ", "SIZE", "X", "Y", "RETURN_PERIOD",
	"TIME_HORIZON", "DISCHARGE", "NODATA",
}

// clearParameterEnv unsets every parameter variable for the rest of the test.
func clearParameterEnv(t *testing.T) {
	t.Helper()
	for _, key := range parameterEnv {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func writeParameterFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunParameterLoader(t *testing.T) {
	convey.Convey("Given a run parameter loader", t, func() {
		clearParameterEnv(t)
		dir := t.TempDir()

		convey.Convey("When nothing overrides the defaults", func() {
			p, err := config.LoadRunParameters(dir)

			convey.Convey("Then the defaults are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.RainfallMode, convey.ShouldEqual, "total_depth")
				convey.So(p.TotalDepth, convey.ShouldEqual, 40)
				convey.So(p.Duration, convey.ShouldEqual, 1)
				convey.So(p.OutputInterval, convey.ShouldEqual, 600)
				convey.So(p.OpenBoundaries, convey.ShouldBeTrue)
				convey.So(p.PermeableAreas, convey.ShouldEqual, "polygons")
				convey.So(p.Projection, convey.ShouldEqual, 27700)
				convey.So(p.NoData, convey.ShouldEqual, -9999)
				convey.So(p.HasCenter, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When environment variables are set", func() {
			t.Setenv("DURATION", "3")
			t.Setenv("TOTAL_DEPTH", "62.5")
			t.Setenv("POST_EVENT_DURATION", "2")
			t.Setenv("OPEN_BOUNDARIES", "false")
			t.Setenv("PERMEABLE_AREAS", "permeable")
			t.Setenv("SIZE", "1.5")
			t.Setenv("X", "258722")
			t.Setenv("Y", "665028")

			p, err := config.LoadRunParameters(dir)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Duration, convey.ShouldEqual, 3)
				convey.So(p.TotalDepth, convey.ShouldEqual, 62.5)
				convey.So(p.OpenBoundaries, convey.ShouldBeFalse)
				convey.So(p.PermeableAreas, convey.ShouldEqual, "permeable")
				convey.So(p.SizeMetres(), convey.ShouldEqual, 1500)
				convey.So(p.HasCenter, convey.ShouldBeTrue)
				convey.So(p.X, convey.ShouldEqual, 258722)
				convey.So(p.TotalDurationSec(), convey.ShouldEqual, 5*3600)
			})
		})

		convey.Convey("When a YAML file and the environment disagree", func() {
			t.Setenv("DURATION", "3")
			t.Setenv("ROOF_STORAGE", "0.2")
			writeParameterFile(t, dir, "run.yaml", "duration: 6\noutput_interval: 300\n")

			p, err := config.LoadRunParameters(dir)

			convey.Convey("Then the file wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Duration, convey.ShouldEqual, 6)
				convey.So(p.OutputInterval, convey.ShouldEqual, 300)
				convey.So(p.RoofStorage, convey.ShouldEqual, 0.2)
			})
		})

		convey.Convey("When a CSV parameter file is present", func() {
			t.Setenv("TOTAL_DEPTH", "10")
			writeParameterFile(t, dir, "run.yaml", "total_depth: 20\nduration: 2\n")
			writeParameterFile(t, dir, "dafni.csv", "PARAMETER,VALUE\nTOTAL_DEPTH,30\nPERMEABLE_AREAS,impermeable\nUNRELATED,1\n")

			p, err := config.LoadRunParameters(dir)

			convey.Convey("Then it has the highest precedence", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.TotalDepth, convey.ShouldEqual, 30)
				convey.So(p.Duration, convey.ShouldEqual, 2)
				convey.So(p.PermeableAreas, convey.ShouldEqual, "impermeable")
			})
		})

		convey.Convey("When return period mode lacks its settings", func() {
			t.Setenv("RAINFALL_MODE", "return_period")

			_, err := config.LoadRunParameters(dir)

			convey.Convey("Then loading fails with a configuration error", func() {
				convey.So(err, convey.ShouldWrap, domain.ErrConfiguration)
				convey.So(err.Error(), convey.ShouldContainSubstring, "RETURN_PERIOD")
				convey.So(err.Error(), convey.ShouldContainSubstring, "TIME_HORIZON")
			})
		})

		convey.Convey("When values are out of range", func() {
			t.Setenv("DURATION", "0")
			t.Setenv("PERMEABLE_AREAS", "sometimes")

			_, err := config.LoadRunParameters(dir)

			convey.Convey("Then every problem is reported", func() {
				convey.So(err, convey.ShouldWrap, domain.ErrConfiguration)
				convey.So(err.Error(), convey.ShouldContainSubstring, "duration")
				convey.So(err.Error(), convey.ShouldContainSubstring, "sometimes")
			})
		})

		convey.Convey("When a value cannot be decoded", func() {
			t.Setenv("DURATION", "an hour")

			_, err := config.LoadRunParameters(dir)

			convey.Convey("Then loading fails with a configuration error", func() {
				convey.So(err, convey.ShouldWrap, domain.ErrConfiguration)
			})
		})

		convey.Convey("When the parameter directory does not exist", func() {
			p, err := config.LoadRunParameters(filepath.Join(dir, "missing"))

			convey.Convey("Then only the environment and defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.TotalDepth, convey.ShouldEqual, 40)
			})
		})
	})
}

func TestRunParameterConversions(t *testing.T) {
	convey.Convey("Given resolved run parameters", t, func() {
		p := config.DefaultRunParameters()
		p.Duration = 2
		p.PostEventDuration = 1
		p.RoofStorage = 0.1
		p.PermeableAreas = "impermeable"
		p.Size = 2
		p.X, p.Y, p.HasCenter = 1000, 2000, true
		p.Discharge = 15

		convey.Convey("Then the model scalars cover storm and post-event time", func() {
			mp, err := p.ModelParameters()
			convey.So(err, convey.ShouldBeNil)
			convey.So(mp.DurationSec, convey.ShouldEqual, 3*3600)
			convey.So(mp.PermeableAreas, convey.ShouldEqual, domain.PermeableNone)
			convey.So(mp.UseInfiltration, convey.ShouldBeTrue)
			convey.So(mp.RoofStorage, convey.ShouldEqual, 0.1)
		})

		convey.Convey("Then the descriptor carries the domain settings", func() {
			d := p.Descriptor()
			convey.So(d.Size, convey.ShouldEqual, 2000)
			convey.So(d.X, convey.ShouldEqual, 1000)
			convey.So(d.Discharge, convey.ShouldEqual, 15)
			convey.So(d.RainfallMode, convey.ShouldEqual, domain.RainfallModeTotalDepth)
		})

		convey.Convey("Then the parameter record lists the resolved values", func() {
			var buf bytes.Buffer
			convey.So(p.WriteRecord(&buf), convey.ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			convey.So(lines[0], convey.ShouldEqual, "PARAMETER,VALUE")
			convey.So(lines, convey.ShouldContain, "RAINFALL_MODE,total_depth")
			convey.So(lines, convey.ShouldContain, "ROOF_STORAGE,0.1")
			convey.So(lines, convey.ShouldContain, "SIZE,2000")
			convey.So(lines, convey.ShouldContain, "X,1000")
			convey.So(lines, convey.ShouldContain, "DISCHARGE,15")
			convey.So(lines, convey.ShouldNotContain, "RETURN_PERIOD,0")
		})
	})
}
