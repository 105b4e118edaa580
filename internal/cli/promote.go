package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/outbox"
	"github.com/n2nstreams/saasfactory-cloud/pkg/db"
)

func newPromoteCmd() *cobra.Command {
	var (
		label       string
		title       string
		body        string
		requestedBy string
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Enqueue a tenant promotion trigger",
		Long: `Enqueue a tenant promotion trigger in the outbox. A running serve
process picks it up and executes the promotion asynchronously.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger, _ := zap.NewProduction()
			defer logger.Sync()

			gdb, err := db.New(cfg, logger)
			if err != nil {
				return err
			}

			eventID, err := outbox.Enqueue(cmd.Context(), gdb, promotion.RawTrigger{
				Label:       label,
				Title:       title,
				Body:        body,
				RequestedBy: requestedBy,
			})
			if err != nil {
				return err
			}

			fmt.Printf("enqueued promotion trigger: event %d\n", eventID)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Trigger label, e.g. promote-tenant:acme-corp")
	cmd.Flags().StringVar(&title, "title", "", "Trigger title, e.g. [TENANT: acme-corp] promotion")
	cmd.Flags().StringVar(&body, "body", "", "Trigger body containing a Tenant: <slug> line")
	cmd.Flags().StringVar(&requestedBy, "requested-by", "", "Identity of the requester")

	return cmd
}
