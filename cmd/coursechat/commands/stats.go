package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat-go/internal/logging"
)

// NewStatsCmd constructs the `coursechat stats` command, which reports what
// the catalog currently holds.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show course catalog statistics",
		Long: `Report the number of ingested courses and their titles.

Useful as a quick check that an ingest run populated the vector store as
expected, and for finding the exact course titles to reference in questions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = logging.WithLogger(ctx, logging.New())

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer store.Close()

			count, err := store.CourseCount(ctx)
			if err != nil {
				return fmt.Errorf("stats: failed to count courses: %w", err)
			}
			titles, err := store.CourseTitles(ctx)
			if err != nil {
				return fmt.Errorf("stats: failed to list courses: %w", err)
			}

			fmt.Printf("Courses: %d\n", count)
			for _, title := range titles {
				fmt.Printf("  - %s\n", title)
			}
			return nil
		},
	}
}
