package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/vumi/msgstore"
	"github.com/vumi/msgstore/internal/vtime"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Page through batch and message listings",
}

var (
	listSince        string
	listUntil        string
	listMaxResults   int
	listContinuation string
	listWithExtra    bool
)

// timeParser understands the platform's wire format first and falls back
// to natural-language phrases ("yesterday", "3 hours ago") for operators
// typing --since/--until by hand, the way the teacher's `bd` CLI accepts
// either an ISO timestamp or a relative phrase for its own date flags.
var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	return w
}()

func resolveRangeBound(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if t, err := vtime.Parse(raw); err == nil {
		return vtime.Format(t), nil
	}
	res, err := timeParser.Parse(raw, time.Now())
	if err != nil {
		return "", fmt.Errorf("list: parse %q: %w", raw, err)
	}
	if res == nil {
		return "", fmt.Errorf("list: could not understand time phrase %q", raw)
	}
	return vtime.Format(res.Time), nil
}

var listInboundCmd = &cobra.Command{
	Use:   "inbound <batch_id>",
	Short: "List a batch's inbound message keys, newest timestamp last",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := resolveRangeBound(listSince)
		if err != nil {
			return err
		}
		until, err := resolveRangeBound(listUntil)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if listWithExtra {
			page, err := store.Query.ListBatchInboundKeysWithAddresses(ctx, args[0], since, until, listMaxResults, listContinuation)
			if err != nil {
				return err
			}
			return renderAddressPage(page)
		}
		page, err := store.Query.ListBatchInboundKeysWithTimestamps(ctx, args[0], since, until, listMaxResults, listContinuation)
		if err != nil {
			return err
		}
		return renderTimestampPage(page)
	},
}

var listOutboundCmd = &cobra.Command{
	Use:   "outbound <batch_id>",
	Short: "List a batch's outbound message keys, newest timestamp last",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := resolveRangeBound(listSince)
		if err != nil {
			return err
		}
		until, err := resolveRangeBound(listUntil)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if listWithExtra {
			page, err := store.Query.ListBatchOutboundKeysWithAddresses(ctx, args[0], since, until, listMaxResults, listContinuation)
			if err != nil {
				return err
			}
			return renderAddressPage(page)
		}
		page, err := store.Query.ListBatchOutboundKeysWithTimestamps(ctx, args[0], since, until, listMaxResults, listContinuation)
		if err != nil {
			return err
		}
		return renderTimestampPage(page)
	},
}

var listEventsCmd = &cobra.Command{
	Use:   "events <message_id>",
	Short: "List the delivery-lifecycle events owned by an outbound message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := resolveRangeBound(listSince)
		if err != nil {
			return err
		}
		until, err := resolveRangeBound(listUntil)
		if err != nil {
			return err
		}
		page, err := store.Query.ListMessageEventKeysWithStatuses(cmd.Context(), args[0], since, until, listMaxResults, listContinuation)
		if err != nil {
			return err
		}
		return renderStatusPage(page)
	},
}

func init() {
	for _, c := range []*cobra.Command{listInboundCmd, listOutboundCmd, listEventsCmd} {
		c.Flags().StringVar(&listSince, "since", "", "lower timestamp bound, ISO or natural language (e.g. \"yesterday\")")
		c.Flags().StringVar(&listUntil, "until", "", "upper timestamp bound, ISO or natural language")
		c.Flags().IntVar(&listMaxResults, "max-results", 0, "page size (default: store default of 1000)")
		c.Flags().StringVar(&listContinuation, "continuation", "", "opaque continuation token from a prior page")
	}
	listInboundCmd.Flags().BoolVar(&listWithExtra, "with-addresses", false, "include each message's from_addr instead of just its timestamp")
	listOutboundCmd.Flags().BoolVar(&listWithExtra, "with-addresses", false, "include each message's to_addr instead of just its timestamp")
	listCmd.AddCommand(listInboundCmd, listOutboundCmd, listEventsCmd)
}

// accent colors a column header when stdout is a color terminal, and
// passes the text through unstyled otherwise — termenv detects the
// profile once, the way the teacher picks its table header style.
var accent = func() func(string) string {
	profile := termenv.NewOutput(os.Stdout).ColorProfile()
	if profile == termenv.Ascii {
		return func(s string) string { return s }
	}
	style := termenv.String("").Foreground(profile.Color("6")).Bold()
	return func(s string) string {
		return style.Styled(s)
	}
}()

func renderTimestampPage(page *msgstore.TimestampPage) error {
	if jsonOutput {
		outputJSON(map[string]any{"items": page.Items(), "has_next": page.HasNext()})
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\n", accent("KEY"), accent("TIMESTAMP"))
	for _, it := range page.Items() {
		fmt.Fprintf(&b, "%s\t%s\n", it.Key, it.Timestamp)
	}
	fmt.Print(b.String())
	printContinuationHint(page.HasNext(), page.Token())
	return nil
}

func renderAddressPage(page *msgstore.AddressPage) error {
	if jsonOutput {
		outputJSON(map[string]any{"items": page.Items(), "has_next": page.HasNext()})
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\n", accent("KEY"), accent("TIMESTAMP"), accent("ADDRESS"))
	for _, it := range page.Items() {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", it.Key, it.Timestamp, it.Address)
	}
	fmt.Print(b.String())
	printContinuationHint(page.HasNext(), page.Token())
	return nil
}

func renderStatusPage(page *msgstore.StatusPage) error {
	if jsonOutput {
		outputJSON(map[string]any{"items": page.Items(), "has_next": page.HasNext()})
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\n", accent("KEY"), accent("TIMESTAMP"), accent("STATUS"))
	for _, it := range page.Items() {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", it.Key, it.Timestamp, it.Status)
	}
	fmt.Print(b.String())
	printContinuationHint(page.HasNext(), page.Token())
	return nil
}

func printContinuationHint(hasNext bool, token string) {
	if hasNext {
		fmt.Fprintf(os.Stderr, "(more results: --continuation=%s)\n", token)
	}
}
