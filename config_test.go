package qsim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConfig(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := NewConfig()

		Convey("It should validate", func() {
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.schedulingTimeout(), ShouldEqual, 10*time.Second)
		})

		Convey("Broken limits should be rejected", func() {
			cfg.MaxQubits = 0
			So(errors.Is(cfg.Validate(), ErrInvalidArgument), ShouldBeTrue)
		})
	})

	Convey("Given a YAML file", t, func() {
		path := filepath.Join(t.TempDir(), "qsim.yml")

		Convey("Listed keys should override the defaults", func() {
			data := "max_qubits: 12\nworkers: 8\nscheduling_timeout: 3s\nlog_level: debug\n"
			So(os.WriteFile(path, []byte(data), 0o600), ShouldBeNil)

			cfg, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(cfg.MaxQubits, ShouldEqual, 12)
			So(cfg.Workers, ShouldEqual, 8)
			So(cfg.SchedulingTimeout, ShouldEqual, 3*time.Second)
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.ShotsPerJob, ShouldEqual, 256)

			_, err = NewQState(13, WithConfig(cfg))
			So(errors.Is(err, ErrSizeExceeded), ShouldBeTrue)
		})

		Convey("Invalid values should fail validation", func() {
			So(os.WriteFile(path, []byte("workers: 0\n"), 0o600), ShouldBeNil)
			_, err := LoadConfig(path)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("A missing file should be an error", func() {
			_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given log levels", t, func() {
		Reset(func() { _ = SetLogLevel("warn") })

		So(SetLogLevel("debug"), ShouldBeNil)
		So(Logger().GetLevel().String(), ShouldEqual, "debug")
		So(SetLogLevel("chatty"), ShouldNotBeNil)
	})
}
