package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/glizzus/dca/internal/catalog"
	"github.com/glizzus/dca/internal/datalayer"
	"github.com/urfave/cli/v2"
)

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "query the catalog of recorded encodes",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list the most recent encodes",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of encodes to list",
						Value: 20,
					},
				},
				Action: func(c *cli.Context) error {
					pool, err := datalayer.NewPostgresPoolFromEnv(c.Context)
					if err != nil {
						return fmt.Errorf("failed to create postgres pool: %w", err)
					}
					defer pool.Close()
					if err := datalayer.MigratePostgres(pool); err != nil {
						return fmt.Errorf("failed to migrate postgres: %w", err)
					}

					repo := catalog.NewPostgresEncodeRepository(pool)
					encodes, err := repo.List(c.Context, c.Int("limit"))
					if err != nil {
						return err
					}
					return printEncodes(c, encodes)
				},
			},
		},
	}
}

func printEncodes(c *cli.Context, encodes []catalog.Encode) error {
	if len(encodes) == 0 {
		fmt.Fprintln(c.App.Writer, "No encodes recorded.")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tTITLE\tARTIST\tKBPS\tPACKETS\tBYTES\tKEY")
	for _, e := range encodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.ID,
			e.CreatedAt.Format(time.DateTime),
			e.Source,
			e.Title,
			e.Artist,
			e.Bitrate/1000,
			e.Packets,
			e.Bytes,
			e.ObjectKey,
		)
	}
	return w.Flush()
}
