package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noah-isme/schedulus-api/internal/dto"
)

var (
	lessonSubject      string
	lessonTeacher      string
	lessonGroup        string
	lessonDifficulty   float64
	lessonSatisfaction float64
	lessonPinned       bool
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Manage lessons of the session timetable",
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lessons, err := newClient().Lessons(cmd.Context())
		if err != nil {
			return err
		}
		return printLessons(lessons)
	},
}

var lessonsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a lesson",
	Long:  `Add a lesson. Difficulty and satisfaction are predicted by the server unless given.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.CreateLessonRequest{
			Subject:      lessonSubject,
			Teacher:      lessonTeacher,
			StudentGroup: lessonGroup,
			Pinned:       lessonPinned,
		}
		if cmd.Flags().Changed("difficulty") {
			req.DifficultyWeight = &lessonDifficulty
		}
		if cmd.Flags().Changed("satisfaction") {
			req.SatisfactionScore = &lessonSatisfaction
		}
		lesson, err := newClient().AddLesson(cmd.Context(), req)
		if err != nil {
			return err
		}
		if isJSONOutput() {
			return printJSON(lesson)
		}
		fmt.Fprintf(out, "Lesson %s added\n", lesson.ID)
		return nil
	},
}

var lessonsRemoveCmd = &cobra.Command{
	Use:   "remove <lesson-id>",
	Short: "Remove a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().RemoveLesson(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Lesson %s removed\n", args[0])
		return nil
	},
}

var lessonsPinCmd = &cobra.Command{
	Use:   "pin <lesson-id>",
	Short: "Toggle the pinned flag of a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lesson, err := newClient().TogglePin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if isJSONOutput() {
			return printJSON(lesson)
		}
		fmt.Fprintf(out, "Lesson %s pinned=%t\n", lesson.ID, lesson.Pinned)
		return nil
	},
}

var lessonsImportCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Import lessons from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer file.Close() //nolint:errcheck

		lessons, err := newClient().ImportLessons(cmd.Context(), filepath.Base(args[0]), file)
		if err != nil {
			return err
		}
		if isJSONOutput() {
			return printJSON(lessons)
		}
		fmt.Fprintf(out, "Imported %d lessons\n", len(lessons))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lessonsCmd)
	lessonsCmd.AddCommand(lessonsListCmd, lessonsAddCmd, lessonsRemoveCmd, lessonsPinCmd, lessonsImportCmd)

	lessonsAddCmd.Flags().StringVar(&lessonSubject, "subject", "", "subject or course code (required)")
	lessonsAddCmd.Flags().StringVar(&lessonTeacher, "teacher", "", "teacher name (required)")
	lessonsAddCmd.Flags().StringVar(&lessonGroup, "group", "", "student group (required)")
	lessonsAddCmd.Flags().Float64Var(&lessonDifficulty, "difficulty", 0, "difficulty weight in [0,1]")
	lessonsAddCmd.Flags().Float64Var(&lessonSatisfaction, "satisfaction", 0, "satisfaction score in [0,1]")
	lessonsAddCmd.Flags().BoolVar(&lessonPinned, "pinned", false, "keep the lesson in place during optimization")
}
