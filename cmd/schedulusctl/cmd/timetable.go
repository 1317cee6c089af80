package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Show timetables",
}

var timetableLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent optimized timetable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tt, err := newClient().LatestTimetable(cmd.Context())
		if err != nil {
			return err
		}
		if tt == nil {
			fmt.Fprintln(out, "No optimization has completed yet")
			return nil
		}
		return printTimetable(tt)
	},
}

var timetableCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the session timetable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tt, err := newClient().CurrentTimetable(cmd.Context())
		if err != nil {
			return err
		}
		return printTimetable(tt)
	},
}

func init() {
	rootCmd.AddCommand(timetableCmd)
	timetableCmd.AddCommand(timetableLatestCmd, timetableCurrentCmd)
}
