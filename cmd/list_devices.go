package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/stereoscan/device"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List available compute devices.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	platforms, err := device.GetPlatformInfo()
	if err != nil {
		logger.Error(err)
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\nSystem provides %d platform(s):\n\n", len(platforms)))

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Platform", "Version", "Device", "Type", "Units", "Clock", "Speed"})
	for pIdx, platformInfo := range platforms {
		for dIdx, dev := range platformInfo.Devices {
			info := dev.Info()
			table.Append([]string{
				fmt.Sprintf("[%02d] %s", pIdx, platformInfo.Name),
				platformInfo.Version,
				fmt.Sprintf("[%02d] %s", dIdx, info.Name),
				info.Type.String(),
				fmt.Sprintf("%d", info.ComputeUnits),
				fmt.Sprintf("%d Mhz", info.ClockSpeed),
				fmt.Sprintf("%d GFlops", info.Speed),
			})
		}
	}
	table.Render()

	logger.Notice(buf.String())
	return nil
}
