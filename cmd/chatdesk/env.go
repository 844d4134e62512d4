package main

import (
	"fmt"
	"io"
	"maps"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/five82/chatdesk/internal/backend"
	"github.com/five82/chatdesk/internal/envfile"
)

var (
	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// secretMarkers flag variables whose values are masked unless --reveal.
var secretMarkers = []string{"KEY", "SECRET", "TOKEN", "PASSWORD", "URI"}

func newEnvCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage backend environment profiles",
		Long: `Environment profiles are named sets of backend variables (API keys,
database URIs). Activating a profile makes the backend rewrite its .env.`,
	}
	cmd.AddCommand(
		newEnvListCmd(g),
		newEnvShowCmd(g),
		newEnvCreateCmd(g),
		newEnvUpdateCmd(g),
		newEnvActivateCmd(g),
		newEnvDeleteCmd(g),
		newEnvExportCmd(g),
		newEnvImportCmd(g),
	)
	return cmd
}

func newEnvListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			profiles, err := client.ListProfiles(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "no profiles")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACTIVE\tID\tNAME\tVARS\tUPDATED")
			for _, p := range profiles {
				active := ""
				if p.IsActive {
					active = activeStyle.Render("*")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", active, p.ID, p.Name, len(p.Variables), p.UpdatedAt)
			}
			return w.Flush()
		},
	}
}

func newEnvShowCmd(g *globalOptions) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a profile's variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			p, err := client.GetProfile(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			status := "inactive"
			if p.IsActive {
				status = activeStyle.Render("active")
			}
			fmt.Fprintf(out, "%s (%s) %s\n", p.Name, p.ID, status)
			if p.Description != "" {
				fmt.Fprintln(out, p.Description)
			}
			fmt.Fprintln(out)

			vars := p.Env()
			if !reveal {
				vars = maskSecrets(vars)
			}
			body, err := envfile.Marshal(vars)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, body)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secret values instead of masking them")
	return cmd
}

func newEnvCreateCmd(g *globalOptions) *cobra.Command {
	var (
		description string
		sets        []string
	)
	cmd := &cobra.Command{
		Use:     "create NAME",
		Short:   "Create a profile from KEY=VALUE pairs",
		Example: `  chatdesk env create staging --set OPENAI_API_KEY=sk-... --set MONGODB_URI=mongodb://db:27017`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			return createProfile(cmd, g, backend.ProfileInput{Name: args[0], Description: description, Variables: vars})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "profile description")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "variable as KEY=VALUE (repeatable)")
	return cmd
}

func newEnvImportCmd(g *globalOptions) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "import NAME FILE",
		Short: "Create a profile from a .env file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := envfile.Read(args[1])
			if err != nil {
				return err
			}
			return createProfile(cmd, g, backend.ProfileInput{Name: args[0], Description: description, Variables: vars})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "profile description")
	return cmd
}

func createProfile(cmd *cobra.Command, g *globalOptions, in backend.ProfileInput) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	p, err := client.CreateProfile(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created profile %s (%s) with %d variable(s)\n", p.Name, p.ID, len(in.Variables))
	return nil
}

func newEnvUpdateCmd(g *globalOptions) *cobra.Command {
	var (
		name        string
		description string
		file        string
		sets        []string
		unsets      []string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a profile's name, description or variables",
		Long: `Change a profile. --file replaces all variables with a .env file's; --set
and --unset then adjust individual keys. The change is previewed before it is
sent; --dry-run stops after the preview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			current, err := client.GetProfile(ctx, args[0])
			if err != nil {
				return err
			}
			old := current.Env()
			next := make(map[string]string, len(old))
			maps.Copy(next, old)
			if file != "" {
				if next, err = envfile.Read(file); err != nil {
					return err
				}
			}
			assigned, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			maps.Copy(next, assigned)
			for _, k := range unsets {
				delete(next, k)
			}

			out := cmd.OutOrStdout()
			changes := writeDiff(out, old, next)
			if name != "" && name != current.Name {
				fmt.Fprintf(out, "%s name %q -> %q\n", changedStyle.Render("~"), current.Name, name)
				changes++
			}
			if cmd.Flags().Changed("description") && description != current.Description {
				fmt.Fprintf(out, "%s description\n", changedStyle.Render("~"))
				changes++
			}
			if changes == 0 {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			if dryRun {
				return nil
			}

			in := backend.ProfileInput{Name: name, Description: description, Variables: next}
			if !cmd.Flags().Changed("description") {
				in.Description = current.Description
			}
			p, err := client.UpdateProfile(ctx, args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "updated profile %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new profile name")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&file, "file", "", "replace variables with this .env file")
	f.StringArrayVar(&sets, "set", nil, "set a variable, KEY=VALUE (repeatable)")
	f.StringArrayVar(&unsets, "unset", nil, "remove a variable (repeatable)")
	f.BoolVar(&dryRun, "dry-run", false, "show the change without sending it")
	return cmd
}

func newEnvActivateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Make a profile the backend's active environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			if err := client.ActivateProfile(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %s activated\n", args[0])
			return nil
		},
	}
}

func newEnvDeleteCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an inactive profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			if err := client.DeleteProfile(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %s deleted\n", args[0])
			return nil
		},
	}
}

func newEnvExportCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export ID FILE",
		Short: "Write a profile's variables to a .env file",
		Long: `Write a profile's variables to a .env file. An existing file is kept as
FILE` + envfile.BackupSuffix + `.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			p, err := client.GetProfile(ctx, args[0])
			if err != nil {
				return err
			}
			vars := p.Env()
			if err := envfile.Write(args[1], vars); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d variable(s) to %s\n", len(vars), args[1])
			return nil
		},
	}
}

// parseAssignments splits KEY=VALUE flags.
func parseAssignments(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("want KEY=VALUE, got %q", pair)
		}
		vars[k] = v
	}
	if err := envfile.Validate(vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// writeDiff prints key-level changes and returns how many there were.
func writeDiff(w io.Writer, old, next map[string]string) int {
	added, removed, changed := envfile.Diff(old, next)
	for _, k := range added {
		fmt.Fprintf(w, "%s %s\n", addedStyle.Render("+"), k)
	}
	for _, k := range removed {
		fmt.Fprintf(w, "%s %s\n", removedStyle.Render("-"), k)
	}
	for _, k := range changed {
		fmt.Fprintf(w, "%s %s\n", changedStyle.Render("~"), k)
	}
	return len(added) + len(removed) + len(changed)
}

func maskSecrets(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		upper := strings.ToUpper(k)
		for _, marker := range secretMarkers {
			if strings.Contains(upper, marker) && v != "" {
				v = "********"
				break
			}
		}
		out[k] = v
	}
	return out
}
