package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"

	"quarterload/core"
	"quarterload/util"
)

var metersCmd = &cobra.Command{
	Use:   "meters [name ...]",
	Short: "Sample configured meters once and dump their state",
	Run:   runMeters,
}

func init() {
	rootCmd.AddCommand(metersCmd)
}

func runMeters(cmd *cobra.Command, args []string) {
	util.LogLevel(viper.GetString("log"), nil)

	var conf config
	if err := loadConfigFile(&conf); err != nil {
		log.FATAL.Fatal(err)
	}

	if err := configureEnvironment(conf); err != nil {
		log.FATAL.Fatal(err)
	}

	site, err := configureSite(conf)
	if err != nil {
		log.FATAL.Fatal(err)
	}

	// cancelled context stops each meter after a single sampling cycle
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Meter", "Power", "L1", "L2", "L3", "Samples", "OK"})

	for _, m := range site.Meters() {
		if len(args) > 0 && !funk.ContainsString(args, m.Name) {
			continue
		}

		m.Run(ctx)
		status := m.CurrentWindow()

		table.Append([]string{
			m.Name,
			fmtWatts(status.TotalAverage),
			fmtWatts(status.PhaseAverage[0]),
			fmtWatts(status.PhaseAverage[1]),
			fmtWatts(status.PhaseAverage[2]),
			fmt.Sprintf("%d", status.SampleCount),
			core.Presence[status.SampleCount > 0],
		})
	}

	table.Render()
}

func fmtWatts(v float64) string {
	return humanize.SIWithDigits(v, 1, "W")
}
