package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
	"github.com/plaenen/graphstore/pkg/query"
	"github.com/plaenen/graphstore/pkg/store/sqlite"
)

func replayCmd() *cobra.Command {
	var dotOut bool

	cmd := &cobra.Command{
		Use:   "replay <aggregate-id>",
		Short: "Rebuild an aggregate's projection from the local event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aid := args[0]
			ctx := cmd.Context()

			db, err := sqlite.New(sqlite.WithDSN(viper.GetString("db.path")))
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.Load(ctx, aid, 0)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("%w: %s", graph.ErrUnknownAggregate, aid)
			}

			envs := make([]*graph.Envelope, 0, len(records))
			for _, rec := range records {
				event, err := graph.Unmarshal(rec.Data)
				if err != nil {
					return err
				}
				envs = append(envs, &graph.Envelope{
					Event:     *event,
					Sequence:  rec.Sequence,
					Timestamp: rec.Timestamp,
				})
			}

			p, err := projection.Replay(aid, envs)
			if err != nil {
				return err
			}

			fmt.Printf("aggregate: %s\nvariant:   %s\nversion:   %d\nhead:      %s\narchived:  %v\n",
				p.AggregateID(), p.Variant(), p.Version(), p.HeadCID(), p.Archived())

			if dotOut {
				if v := p.View(); v != nil {
					fmt.Println(query.DOT(v, shortAID(aid)))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dotOut, "dot", false, "print the projection as Graphviz DOT")
	return cmd
}
