// Package diag reports host facts relevant to interpreting a DWARF
// index: kernel, arch, and boot time.
package diag

import (
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-sysinfo"
	"github.com/pkg/errors"
)

// Report is a snapshot of host facts, printed by the CLI's diag
// subcommand so a bug report carries the host it was captured on.
type Report struct {
	Hostname      string
	OS            string
	Architecture  string
	KernelVersion string
	BootTime      time.Time
	Uptime        time.Duration
}

func Collect() (r Report, err error) {
	host, err := sysinfo.Host()
	if err != nil {
		return r, errors.Wrap(err, "diag: read host info")
	}
	info := host.Info()
	r = Report{
		Hostname:      info.Hostname,
		OS:            info.OS.Name,
		Architecture:  info.Architecture,
		KernelVersion: info.KernelVersion,
		BootTime:      info.BootTime,
		Uptime:        time.Since(info.BootTime),
	}
	return r, nil
}

// Fprint writes the report in a short human-readable form.
func Fprint(w io.Writer, r Report) {
	fmt.Fprintf(w, "host:    %s (%s/%s)\n", r.Hostname, r.OS, r.Architecture)
	fmt.Fprintf(w, "kernel:  %s\n", r.KernelVersion)
	fmt.Fprintf(w, "booted:  %s (up %s)\n", r.BootTime.Format("2006-01-02 15:04:05"), r.Uptime.Round(time.Second))
}
