package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vumi/msgstore"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Manage message batches",
}

var (
	batchStartTags []string
	batchStartMeta []string
)

var batchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := parseTags(batchStartTags)
		if err != nil {
			return err
		}
		if len(tags) == 0 && !jsonOutput {
			tags, err = promptForTags()
			if err != nil {
				return err
			}
		}
		metadata, err := parseMetadata(batchStartMeta)
		if err != nil {
			return err
		}

		batchID, err := store.BatchManager.BatchStart(cmd.Context(), tags, metadata)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"batch_id": batchID})
			return nil
		}
		fmt.Println(batchID)
		return nil
	},
}

// promptForTags interactively collects scope:name tag pairs when none were
// given on the command line, so operators don't need to remember the flag
// syntax for a one-off batch.
func promptForTags() ([]msgstore.Tag, error) {
	var raw string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Tags for this batch (scope:name, comma-separated; blank for none)").
			Value(&raw),
	)).Run()
	if err != nil {
		return nil, fmt.Errorf("batch start: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	return parseTags(strings.Split(raw, ","))
}

var batchDoneCmd = &cobra.Command{
	Use:   "done <batch_id>",
	Short: "Close a batch's CurrentTag back-references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.BatchManager.BatchDone(cmd.Context(), args[0])
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status <batch_id>",
	Short: "Show a batch's counters and event-status histogram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		inCount, err := store.Query.GetInboundCount(ctx, batchID)
		if err != nil {
			return err
		}
		outCount, err := store.Query.GetOutboundCount(ctx, batchID)
		if err != nil {
			return err
		}
		evCount, err := store.Query.GetEventCount(ctx, batchID)
		if err != nil {
			return err
		}
		status, err := store.Query.GetBatchStatus(ctx, batchID)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"batch_id":       batchID,
				"inbound_count":  inCount,
				"outbound_count": outCount,
				"event_count":    evCount,
				"status":         status,
			})
			return nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Batch %s\n\n", batchID)
		fmt.Fprintf(&b, "| metric | value |\n|---|---|\n")
		fmt.Fprintf(&b, "| inbound | %d |\n", inCount)
		fmt.Fprintf(&b, "| outbound | %d |\n", outCount)
		fmt.Fprintf(&b, "| events | %d |\n", evCount)
		for k, v := range status {
			fmt.Fprintf(&b, "| status.%s | %d |\n", k, v)
		}
		fmt.Print(renderMarkdown(b.String()))
		return nil
	},
}

var batchRebuildCacheCmd = &cobra.Command{
	Use:   "rebuild-cache <batch_id>",
	Short: "Replay the authoritative store into the batch cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.BatchManager.RebuildCache(cmd.Context(), args[0])
	},
}

func init() {
	batchStartCmd.Flags().StringSliceVar(&batchStartTags, "tag", nil, "scope:name tag, repeatable")
	batchStartCmd.Flags().StringSliceVar(&batchStartMeta, "meta", nil, "key=value metadata entry, repeatable")
	batchCmd.AddCommand(batchStartCmd, batchDoneCmd, batchStatusCmd, batchRebuildCacheCmd)
}

func parseTags(raw []string) ([]msgstore.Tag, error) {
	var tags []msgstore.Tag
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		scope, name, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --tag %q: want scope:name", r)
		}
		tags = append(tags, msgstore.Tag{Scope: scope, Name: name})
	}
	return tags, nil
}

func parseMetadata(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(raw))
	for _, r := range raw {
		key, value, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", r)
		}
		metadata[key] = value
	}
	return metadata, nil
}
