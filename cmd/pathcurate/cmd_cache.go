package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the record cache",
	}

	var database string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached records of one database, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cache := newCache(logger)
			if err := cache.Invalidate(database); err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
			if database == "" {
				fmt.Printf("Cleared %s\n", cache.Dir())
			} else {
				fmt.Printf("Cleared %s records from %s\n", database, cache.Dir())
			}
			return nil
		},
	}
	clearCmd.Flags().StringVarP(&database, "database", "d", "", "database to clear (default: all)")

	versionsCmd := &cobra.Command{
		Use:   "versions",
		Short: "List the database releases pinned by the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := newCache(newLogger()).Versions().All()
			if err != nil {
				return fmt.Errorf("cache versions: %w", err)
			}
			if len(pins) == 0 {
				fmt.Println("No database release pinned yet.")
				return nil
			}
			for _, pin := range pins {
				fmt.Printf("%-10s %s\n", pin[0], pin[1])
			}
			return nil
		},
	}

	cmd.AddCommand(clearCmd, versionsCmd)
	return cmd
}
