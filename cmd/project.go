package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"aicoder/config/models"
	"aicoder/config/validation"
)

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd, projectAddCmd, projectRemoveCmd, projectUseCmd, projectYoloCmd, projectPathCmd)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "List, add, remove and select the projects the tools are launched in",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		snap := store.Load()
		cur, _ := snap.ResolvedProject()
		out := cmd.OutOrStdout()
		for _, p := range snap.Projects {
			marker := " "
			if p.ID == cur.ID {
				marker = "*"
			}
			yolo := ""
			if p.YoloMode {
				yolo = " [yolo]"
			}
			fmt.Fprintf(out, "%s %-20s %s%s\n", marker, p.Name, p.Path, yolo)
		}
		return nil
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Add a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		if err := validation.NewInputValidator().ValidateProjectPath(path); err != nil {
			return err
		}

		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		_, err = store.Update(func(snap models.Snapshot) (models.Snapshot, error) {
			projects := append(snap.Clone().Projects, models.Project{
				ID:   uuid.NewString(),
				Name: args[0],
				Path: path,
			})
			if err := validation.ValidateProjects(projects); err != nil {
				return snap, err
			}
			return snap.WithProjects(projects), nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Added project %s (%s)", args[0], path)))
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove"},
	Short:   "Remove a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		_, err = store.Update(func(snap models.Snapshot) (models.Snapshot, error) {
			p, err := findProject(snap, args[0])
			if err != nil {
				return snap, err
			}
			next, ok := snap.DeleteProject(p.ID)
			if !ok {
				return snap, fmt.Errorf("cannot remove the last project")
			}
			return next, nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Removed project "+args[0]))
		return nil
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a project current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(newLogger())
		if err != nil {
			return err
		}
		_, err = store.Update(func(snap models.Snapshot) (models.Snapshot, error) {
			p, err := findProject(snap, args[0])
			if err != nil {
				return snap, err
			}
			return snap.WithCurrentProject(p.ID), nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Current project: "+args[0]))
		return nil
	},
}

var projectYoloCmd = &cobra.Command{
	Use:       "yolo <name> <on|off>",
	Short:     "Turn yolo mode on or off for a project",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var yolo bool
		switch args[1] {
		case "on":
			yolo = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[1])
		}
		return updateProject(cmd, args[0], func(p *models.Project) { p.YoloMode = yolo },
			fmt.Sprintf("Yolo mode %s for %s", args[1], args[0]))
	},
}

var projectPathCmd = &cobra.Command{
	Use:   "path <name> <path>",
	Short: "Change the directory of a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		if err := validation.NewInputValidator().ValidateProjectPath(path); err != nil {
			return err
		}
		return updateProject(cmd, args[0], func(p *models.Project) { p.Path = path },
			fmt.Sprintf("Project %s now points at %s", args[0], path))
	},
}

func updateProject(cmd *cobra.Command, name string, fn func(*models.Project), done string) error {
	store, err := openStore(newLogger())
	if err != nil {
		return err
	}
	_, err = store.Update(func(snap models.Snapshot) (models.Snapshot, error) {
		p, err := findProject(snap, name)
		if err != nil {
			return snap, err
		}
		next, _ := snap.UpdateProject(p.ID, fn)
		return next, nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(done))
	return nil
}

func findProject(snap models.Snapshot, name string) (models.Project, error) {
	for _, p := range snap.Projects {
		if p.Name == name {
			return p, nil
		}
	}
	return models.Project{}, fmt.Errorf("project %q not found", name)
}
