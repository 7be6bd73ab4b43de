package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clprof/internal/cl"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List OpenCL platforms and devices",
	Long:  `Lists the OpenCL platforms and their devices. Requires a build with -tags gpu.`,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	platforms, err := cl.EnumeratePlatforms()
	if err != nil {
		return fmt.Errorf("failed to enumerate OpenCL platforms: %w", err)
	}
	if len(platforms) == 0 {
		fmt.Println("No OpenCL platforms found.")
		return nil
	}

	for i, p := range platforms {
		if i > 0 {
			fmt.Println()
		}
		heading(os.Stdout, fmt.Sprintf("Platform %d: %s", i, p.Name))
		fmt.Println(dimStyle.Render(fmt.Sprintf("%s, %s", p.Vendor, p.Version)))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tTYPE\tCOMPUTE UNITS\tMEMORY\tTIMER")
		for _, d := range p.Devices {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d ns\n",
				d.Name,
				d.Type,
				d.MaxComputeUnits,
				humanize.IBytes(d.GlobalMemSize),
				d.TimerResolutionNano,
			)
		}
		w.Flush()
	}
	return nil
}
