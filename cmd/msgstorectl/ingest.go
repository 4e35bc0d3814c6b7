package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vumi/msgstore"
	"github.com/vumi/msgstore/internal/vtime"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record a message or event by hand",
}

var (
	ingestID      string
	ingestFrom    string
	ingestTo      string
	ingestTS      string
	ingestBatches []string
	ingestBody    string
)

var ingestInboundCmd = &cobra.Command{
	Use:   "inbound",
	Short: "Record an inbound message",
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := resolveTimestamp(ingestTS)
		if err != nil {
			return err
		}
		msg := msgstore.Inbound{
			MessageID: ingestID,
			Timestamp: ts,
			FromAddr:  ingestFrom,
			ToAddr:    ingestTo,
			Body:      bodyOrEmpty(ingestBody),
		}
		if err := store.Operational.AddInboundMessage(cmd.Context(), msg, ingestBatches); err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"message_id": msg.MessageID})
			return nil
		}
		fmt.Println(msg.MessageID)
		return nil
	},
}

var ingestOutboundCmd = &cobra.Command{
	Use:   "outbound",
	Short: "Record an outbound message",
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := resolveTimestamp(ingestTS)
		if err != nil {
			return err
		}
		msg := msgstore.Outbound{
			MessageID: ingestID,
			Timestamp: ts,
			FromAddr:  ingestFrom,
			ToAddr:    ingestTo,
			Body:      bodyOrEmpty(ingestBody),
		}
		if err := store.Operational.AddOutboundMessage(cmd.Context(), msg, ingestBatches); err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"message_id": msg.MessageID})
			return nil
		}
		fmt.Println(msg.MessageID)
		return nil
	},
}

var (
	ingestEventMessageID string
	ingestEventType      string
	ingestEventStatus    string
)

var ingestEventCmd = &cobra.Command{
	Use:   "event",
	Short: "Record a delivery-lifecycle event for an outbound message",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestEventType == msgstore.EventTypeDeliveryReport && ingestEventStatus == "" {
			return fmt.Errorf("ingest event: --status is required when --type=%s", msgstore.EventTypeDeliveryReport)
		}
		ts, err := resolveTimestamp(ingestTS)
		if err != nil {
			return err
		}
		ev := msgstore.Event{
			EventID:        ingestID,
			UserMessageID:  ingestEventMessageID,
			Timestamp:      ts,
			EventType:      ingestEventType,
			DeliveryStatus: ingestEventStatus,
			Body:           bodyOrEmpty(ingestBody),
		}
		if err := store.Operational.AddEvent(cmd.Context(), ev); err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]string{"event_id": ev.EventID})
			return nil
		}
		fmt.Println(ev.EventID)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestInboundCmd, ingestOutboundCmd, ingestEventCmd} {
		c.Flags().StringVar(&ingestID, "id", "", "message_id or event_id (required)")
		c.Flags().StringVar(&ingestTS, "ts", "", "wire-format timestamp (default: now)")
		c.Flags().StringVar(&ingestBody, "body", "", "JSON body payload (default: {})")
		_ = c.MarkFlagRequired("id")
	}
	ingestInboundCmd.Flags().StringVar(&ingestFrom, "from", "", "from address")
	ingestInboundCmd.Flags().StringVar(&ingestTo, "to", "", "to address")
	ingestInboundCmd.Flags().StringSliceVar(&ingestBatches, "batch", nil, "batch_id this message belongs to, repeatable")

	ingestOutboundCmd.Flags().StringVar(&ingestFrom, "from", "", "from address")
	ingestOutboundCmd.Flags().StringVar(&ingestTo, "to", "", "to address")
	ingestOutboundCmd.Flags().StringSliceVar(&ingestBatches, "batch", nil, "batch_id this message belongs to, repeatable")

	ingestEventCmd.Flags().StringVar(&ingestEventMessageID, "message", "", "the outbound message_id this event belongs to (required)")
	ingestEventCmd.Flags().StringVar(&ingestEventType, "type", msgstore.EventTypeAck, "event type: ack, nack, or delivery_report")
	ingestEventCmd.Flags().StringVar(&ingestEventStatus, "status", "", "delivery_status, required when --type=delivery_report")
	_ = ingestEventCmd.MarkFlagRequired("message")

	ingestCmd.AddCommand(ingestInboundCmd, ingestOutboundCmd, ingestEventCmd)
}

func resolveTimestamp(raw string) (string, error) {
	if raw == "" {
		return vtime.Format(time.Now()), nil
	}
	t, err := vtime.Parse(raw)
	if err != nil {
		return "", err
	}
	return vtime.Format(t), nil
}

func bodyOrEmpty(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}
