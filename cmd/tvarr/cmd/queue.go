package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/jmylchreest/transcodarr/pkg/format"
)

var queueStatusFilter string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the encode queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue items",
	RunE:  runQueueList,
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a queue item by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRemove,
}

func init() {
	queueListCmd.Flags().StringVar(&queueStatusFilter, "status", "", "filter by status (pending, processing, paused, completed, failed)")
	queueCmd.AddCommand(queueListCmd, queueRemoveCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(_ *cobra.Command, _ []string) error {
	db, _, _, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewQueueItemRepository(db.DB)
	ctx := context.Background()

	var items []*models.QueueItem
	if queueStatusFilter != "" {
		items, err = repo.GetByStatus(ctx, models.QueueItemStatus(queueStatusFilter))
	} else {
		items, err = repo.GetAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing queue items: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("queue is empty")
		return nil
	}

	for _, item := range items {
		fmt.Printf("%s  %-10s  pri=%-4d  %s  (%s -> est. save %s)\n",
			item.ID, item.Status, item.Priority, item.FilePath,
			format.Bytes(item.FileSizeBytes), format.Bytes(item.EstimatedSavingsBytes))
	}
	return nil
}

func runQueueRemove(_ *cobra.Command, args []string) error {
	id, err := models.ParseULID(args[0])
	if err != nil {
		return fmt.Errorf("parsing queue item id: %w", err)
	}

	db, _, _, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewQueueItemRepository(db.DB)
	if err := repo.Delete(context.Background(), id); err != nil {
		return fmt.Errorf("removing queue item: %w", err)
	}
	fmt.Printf("removed queue item %s\n", id)
	return nil
}
