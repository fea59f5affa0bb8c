package cli

import (
	"fmt"
	"time"

	"homebids/internal/feed"

	"github.com/spf13/cobra"
)

func NewFeedCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Manage the external review feed",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "import <snapshot.yaml>",
		Short:        "Import one external review snapshot",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := feed.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			ratings, reviews := snap.Ratings(time.Now()), snap.Reviews()

			return withBackend(opts, func(b Backend) error {
				if err := b.ImportExternalSnapshot(cmd.Context(), ratings, reviews); err != nil {
					return err
				}
				summary := map[string]int{"contractors": len(ratings), "reviews": len(reviews)}
				text := fmt.Sprintf("imported %d contractors, %d reviews", len(ratings), len(reviews))
				return output(cmd.OutOrStdout(), opts, summary, text)
			})
		},
	})

	return cmd
}
