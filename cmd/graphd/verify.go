package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/store/sqlite"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [aggregate-id]",
		Short: "Verify event chain integrity in the local event log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := sqlite.New(sqlite.WithDSN(viper.GetString("db.path")))
			if err != nil {
				return err
			}
			defer db.Close()

			var aggregates []string
			if len(args) == 1 {
				aggregates = args
			} else {
				aggregates, err = db.Aggregates(ctx)
				if err != nil {
					return err
				}
			}

			chain := graph.NewChainBuilder(nil)
			failed := 0
			for _, aid := range aggregates {
				records, err := db.Load(ctx, aid, 0)
				if err != nil {
					return err
				}
				events := make([]*graph.Event, 0, len(records))
				for _, rec := range records {
					event, err := graph.Unmarshal(rec.Data)
					if err != nil {
						return fmt.Errorf("aggregate %s: %w", aid, err)
					}
					events = append(events, event)
				}
				if err := chain.VerifyChain(events); err != nil {
					failed++
					fmt.Printf("FAIL %s: %v\n", aid, err)
					continue
				}
				fmt.Printf("ok   %s (%d events, head %s)\n", aid, len(events), graph.Head(events))
			}
			if failed > 0 {
				return fmt.Errorf("%d aggregate(s) failed verification", failed)
			}
			return nil
		},
	}
	return cmd
}
