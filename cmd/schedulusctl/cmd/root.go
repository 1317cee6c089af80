// Package cmd implements the schedulusctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/pkg/client"
)

const defaultServer = "http://localhost:8080/api"

var (
	serverURL    string
	outputFormat string
	cfgFile      string
	timeout      time.Duration

	out io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:          "schedulusctl",
	Short:        "CLI for the schedulus timetable API",
	Long:         `schedulusctl manages lessons, runs timetable optimizations and prints timetables from a schedulus server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.schedulus/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (default from config, SCHEDULUS_SERVER or "+defaultServer+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".schedulus"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SCHEDULUS")
	viper.AutomaticEnv()
	_ = viper.BindEnv("server")

	_ = viper.ReadInConfig()

	if serverURL == "" {
		serverURL = viper.GetString("server")
	}
	if serverURL == "" {
		serverURL = defaultServer
	}
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithHTTPClient(&http.Client{Timeout: timeout}))
}

func isJSONOutput() bool {
	return outputFormat == "json"
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func printLessons(lessons []models.Lesson) error {
	if isJSONOutput() {
		return printJSON(lessons)
	}
	table := tablewriter.NewWriter(out)
	table.Header("ID", "Subject", "Teacher", "Group", "Timeslot", "Room", "Difficulty", "Satisfaction", "Pinned")
	for _, l := range lessons {
		slot, room := "-", "-"
		if l.Timeslot != nil {
			slot = fmt.Sprintf("%s %s-%s", l.Timeslot.DayOfWeek, l.Timeslot.StartTime, l.Timeslot.EndTime)
		}
		if l.Room != nil {
			room = l.Room.Name
		}
		_ = table.Append(
			l.ID, l.Subject, l.Teacher, l.StudentGroup, slot, room,
			fmt.Sprintf("%.2f", l.DifficultyWeight),
			fmt.Sprintf("%.2f", l.SatisfactionScore),
			fmt.Sprintf("%t", l.Pinned),
		)
	}
	return table.Render()
}

func printTimetable(tt *models.Timetable) error {
	if isJSONOutput() {
		return printJSON(tt)
	}
	if err := printLessons(tt.Lessons); err != nil {
		return err
	}
	if tt.Score != nil {
		_, err := fmt.Fprintf(out, "\nScore: %s\n", tt.Score.String())
		return err
	}
	return nil
}

func printJob(job *models.OptimizationJob) error {
	if isJSONOutput() {
		return printJSON(job)
	}
	table := tablewriter.NewWriter(out)
	table.Header("Field", "Value")
	_ = table.Append("ID", job.ID)
	_ = table.Append("Status", string(job.Status))
	_ = table.Append("Progress", fmt.Sprintf("%d%%", job.Progress))
	_ = table.Append("Started At", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		_ = table.Append("Completed At", job.CompletedAt.Format(time.RFC3339))
	}
	if job.Result != nil && job.Result.Score != nil {
		_ = table.Append("Score", job.Result.Score.String())
	}
	if job.Error != nil {
		_ = table.Append("Error", *job.Error)
	}
	return table.Render()
}
