package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/spf13/cobra"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List enrolled subjects",
	RunE:  runSubjectsList,
}

var subjectsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a subject and its templates",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubjectsDelete,
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
	subjectsCmd.AddCommand(subjectsDeleteCmd)
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pool, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	subjects, err := repo.ListSubjects(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}

	if len(subjects) == 0 {
		fmt.Println("No subjects enrolled")
		return nil
	}

	fmt.Printf("%-6s %-30s %-6s %s\n", "ID", "NAME", "LEVEL", "ENROLLED")
	for _, s := range subjects {
		fmt.Printf("%-6d %-30s %-6d %s\n",
			s.ID, s.Name+" "+s.Surname, s.AccessLevel, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSubjectsDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid subject id %q", args[0])
	}

	pool, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repo.DeleteSubject(cmd.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("subject %d not found", id)
		}
		return fmt.Errorf("failed to delete subject: %w", err)
	}

	fmt.Printf("Deleted subject %d\n", id)
	return nil
}
