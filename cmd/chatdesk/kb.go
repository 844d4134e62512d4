package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// envOr returns the flag value, or the environment variable when it is blank.
func envOr(value, key string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return os.Getenv(key)
}

func printList(w io.Writer, empty string, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
}

func newMongoCmd(g *globalOptions) *cobra.Command {
	var uri string
	cmd := &cobra.Command{
		Use:   "mongo",
		Short: "Inspect MongoDB through the backend",
		Long: `Inspect a MongoDB deployment through the backend. The URI comes from --uri
or MONGODB_URI.`,
	}
	cmd.PersistentFlags().StringVar(&uri, "uri", "", "MongoDB connection URI (default $MONGODB_URI)")

	resolve := func() (string, error) {
		u := envOr(uri, "MONGODB_URI")
		if u == "" {
			return "", fmt.Errorf("no MongoDB URI: pass --uri or set MONGODB_URI")
		}
		return u, nil
	}

	test := &cobra.Command{
		Use:   "test",
		Short: "Check that the backend can connect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := resolve()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			dbs, err := client.TestMongo(ctx, u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected, %d database(s) visible\n", len(dbs))
			return nil
		},
	}

	databases := &cobra.Command{
		Use:   "databases",
		Short: "List databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := resolve()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			dbs, err := client.MongoDatabases(ctx, u)
			if err != nil {
				return err
			}
			printList(cmd.OutOrStdout(), "no databases", dbs)
			return nil
		},
	}

	collections := &cobra.Command{
		Use:   "collections DATABASE",
		Short: "List the collections of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := resolve()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			cols, err := client.MongoCollections(ctx, u, args[0])
			if err != nil {
				return err
			}
			printList(cmd.OutOrStdout(), "no collections", cols)
			return nil
		},
	}

	cmd.AddCommand(test, databases, collections)
	return cmd
}

func newPineconeCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinecone",
		Short: "Inspect Pinecone through the backend",
	}

	var apiKey, environment string
	indexes := &cobra.Command{
		Use:   "indexes",
		Short: "List indexes",
		Long:  `List Pinecone indexes. Credentials come from flags or PINECONE_API_KEY and PINECONE_ENVIRONMENT.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := envOr(apiKey, "PINECONE_API_KEY")
			if key == "" {
				return fmt.Errorf("no Pinecone API key: pass --api-key or set PINECONE_API_KEY")
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			list, err := client.PineconeIndexes(ctx, key, envOr(environment, "PINECONE_ENVIRONMENT"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no indexes")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDIMENSION\tMETRIC")
			for _, idx := range list {
				dim := "-"
				if idx.Dimension > 0 {
					dim = fmt.Sprint(idx.Dimension)
				}
				metric := idx.Metric
				if metric == "" {
					metric = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", idx.Name, dim, metric)
			}
			return w.Flush()
		},
	}
	indexes.Flags().StringVar(&apiKey, "api-key", "", "Pinecone API key (default $PINECONE_API_KEY)")
	indexes.Flags().StringVar(&environment, "environment", "", "Pinecone environment (default $PINECONE_ENVIRONMENT)")

	cmd.AddCommand(indexes)
	return cmd
}
