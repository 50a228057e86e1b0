package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/pubcompose"
	"github.com/eringen/pubcompose/compose"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the blogs writers can post to",
	}
	cmd.AddCommand(catalogImportCmd())
	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogAddCmd())
	cmd.AddCommand(catalogRemoveCmd())
	return cmd
}

func catalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace the catalog with the blogs listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := pubcompose.NewStore(viper.GetString("database.path"))
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := pubcompose.ImportCatalog(store, args[0])
			if err != nil {
				return err
			}
			logger.Info("catalog imported", "file", args[0], "blogs", len(c))
			return nil
		},
	}
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the stored catalog as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := pubcompose.NewStore(viper.GetString("database.path"))
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := store.ListBlogs()
			if err != nil {
				return err
			}
			return pubcompose.WriteCatalog(cmd.OutOrStdout(), c)
		},
	}
}

func catalogAddCmd() *cobra.Command {
	var (
		title string
		tags  []string
	)
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a blog to the catalog, or update the one with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := pubcompose.NewStore(viper.GetString("database.path"))
			if err != nil {
				return err
			}
			defer store.Close()

			b, created, err := pubcompose.AddBlog(store, compose.Blog{ID: args[0], Title: title, Tags: tags})
			if err != nil {
				return err
			}
			if created {
				logger.Info("blog added", "id", b.ID, "tags", len(b.Tags))
			} else {
				logger.Info("blog updated", "id", b.ID, "tags", len(b.Tags))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title (defaults to the id)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "category offered for the blog (repeatable)")
	return cmd
}

func catalogRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a blog from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := pubcompose.NewStore(viper.GetString("database.path"))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := pubcompose.RemoveBlog(store, args[0]); err != nil {
				return err
			}
			logger.Info("blog removed", "id", args[0])
			return nil
		},
	}
}
