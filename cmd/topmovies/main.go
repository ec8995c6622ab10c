package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/elonfeng/topmovies/internal/store"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "topmovies",
		Short:         "Keep a ranked collection of the movies you have watched",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(listCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(addCmd())
	root.AddCommand(editCmd())
	root.AddCommand(deleteCmd())

	return root
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web app",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func listCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the collection ranked by rating",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <title>",
		Short: "Search the movie database by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "))
		},
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <catalog-id>",
		Short: "Add a movie to the collection by its movie database id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runAdd(id)
		},
	}
}

func editCmd() *cobra.Command {
	var (
		rating float64
		review string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Set the rating and/or review of a movie in the collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var upd store.MovieUpdate
			if cmd.Flags().Changed("rating") {
				upd.Rating = &rating
			}
			if cmd.Flags().Changed("review") {
				upd.Review = &review
			}
			return runEdit(id, upd)
		},
	}

	cmd.Flags().Float64Var(&rating, "rating", 0, "rating out of 10")
	cmd.Flags().StringVar(&review, "review", "", "short review")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a movie from the collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runDelete(id)
		},
	}
}
