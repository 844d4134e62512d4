package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/chatdesk/internal/backend"
)

// targetFlags collect a knowledge-base target from the command line.
type targetFlags struct {
	db         string
	name       string
	collection string
	index      string
	namespace  string
}

func (t *targetFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&t.db, "db", "mongodb", "knowledge base type: mongodb or pinecone")
	f.StringVar(&t.name, "name", "", "MongoDB database")
	f.StringVar(&t.collection, "collection", "", "MongoDB collection")
	f.StringVar(&t.index, "index", "", "Pinecone index")
	f.StringVar(&t.namespace, "namespace", "", "Pinecone namespace")
}

func (t *targetFlags) target() (backend.Target, error) {
	dbType, err := backend.ParseDBType(t.db)
	if err != nil {
		return backend.Target{}, err
	}
	target := backend.Target{
		DBType:     dbType,
		DBName:     t.name,
		Collection: t.collection,
		IndexName:  t.index,
		Namespace:  t.namespace,
	}
	if err := target.Validate(); err != nil {
		return backend.Target{}, err
	}
	return target, nil
}

func newSessionCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage assistant sessions",
	}

	var tf targetFlags
	start := &cobra.Command{
		Use:   "start",
		Short: "Start an assistant session against a knowledge base",
		Long: `Start an assistant session bound to a MongoDB collection or a Pinecone
namespace. The session becomes the one the console uses for assistant replies.`,
		Example: `  chatdesk session start --db mongodb --name shop --collection faq
  chatdesk session start --db pinecone --index docs --namespace th`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := tf.target()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			id, err := client.StartSession(ctx, target)
			if err != nil {
				return err
			}
			if err := g.rememberSession(id); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s started\n", id)
			return nil
		},
	}
	tf.register(start)
	cmd.AddCommand(start)
	return cmd
}

func newUploadCmd(g *globalOptions) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload documents into a knowledge base",
		Long: `Upload documents into a MongoDB collection or Pinecone namespace. The
backend indexes them and opens a session over the result, which becomes the
active session.`,
		Example: `  chatdesk upload --db mongodb --name shop --collection faq prices.pdf hours.txt`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := tf.target()
			if err != nil {
				return err
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			id, err := client.Upload(ctx, target, args)
			if err != nil {
				return err
			}
			if err := g.rememberSession(id); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d file(s), session %s started\n", len(args), id)
			return nil
		},
	}
	tf.register(cmd)
	return cmd
}

func newAutomationCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "automation on|off",
		Short:     "Switch the assistant on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch strings.ToLower(args[0]) {
			case "on":
				enable = true
			case "off":
			default:
				return fmt.Errorf("want on or off, got %q", args[0])
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			if err := client.ToggleAutomation(ctx, enable); err != nil {
				return err
			}
			if enable {
				fmt.Fprintln(cmd.OutOrStdout(), "assistant on")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "assistant off: replies are manual")
			}
			return nil
		},
	}
}
