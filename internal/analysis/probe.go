package analysis

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ando01/BirdView/internal/accelerator"
	"github.com/ando01/BirdView/internal/conf"
)

// Probe prints the detected hardware and the backend each model would use.
func Probe(settings *conf.Settings, w io.Writer) error {
	return writeProbe(w, newDispatcher(settings), accelerator.HostCPU(), settings)
}

func writeProbe(w io.Writer, d *accelerator.Dispatcher, cpu accelerator.CPUInfo, settings *conf.Settings) error {
	probe := d.Probe()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ACCELERATOR\t")
	if probe.Available {
		fmt.Fprintf(tw, "  available\tyes (%d device(s) at %s)\n", probe.Devices, probe.DevicePath)
	} else {
		fmt.Fprintf(tw, "  available\tno (%s)\n", probe.Reason)
	}
	if len(probe.Checked) > 0 {
		fmt.Fprintf(tw, "  checked\t%s\n", strings.Join(probe.Checked, ", "))
	}

	fmt.Fprintln(tw, "CPU\t")
	fmt.Fprintf(tw, "  model\t%s\n", cpu.BrandName)
	fmt.Fprintf(tw, "  cores\t%d physical, %d logical\n", cpu.PhysicalCores, cpu.LogicalCores)
	fmt.Fprintf(tw, "  xnnpack\t%t\n", cpu.XNNPACK)
	fmt.Fprintf(tw, "  threads\t%d\n", d.Threads())

	fmt.Fprintln(tw, "MODELS\t")
	fmt.Fprintf(tw, "  detector\t%s\n", d.Backend(settings.Detection.AcceleratorModelPath))
	fmt.Fprintf(tw, "  classifier\t%s\n", d.Backend(settings.Classification.AcceleratorModelPath))

	return tw.Flush()
}
