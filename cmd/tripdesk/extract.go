// README: extract command; prints the slots the reconciler reads from one utterance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tripdesk/internal/slots"
)

var (
	extractRemoteOnly bool
	extractQuestion   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <utterance>",
	Short: "Show the trip slots read from an utterance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.NLU.Timeout)
		defer cancel()

		a, err := buildApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		text := strings.Join(args, " ")
		var got slots.SlotSet
		if extractRemoteOnly {
			got = a.nlu.Extract(ctx, text, extractQuestion)
		} else {
			dates := slots.NewDateNormalizer(cfg.Location(), time.Now)
			validator := slots.NewValidator(a.vocab, a.cityDirectory(), cfg.Dialogue.CityCacheSize, log)
			r := slots.NewReconciler(slots.NewExtractor(a.vocab, dates), a.nlu, validator, dates, log)
			got, _ = r.Reconcile(ctx, slots.SlotSet{}, text, slots.Question{Text: extractQuestion})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(got)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractRemoteOnly, "remote", false, "ask the language model only, skipping local heuristics")
	extractCmd.Flags().StringVar(&extractQuestion, "question", "", "bot question the utterance answers")
}
