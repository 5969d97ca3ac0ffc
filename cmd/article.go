package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deepreview/socratic/internal/assessment"
)

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "Manage articles available for assessment",
}

// articleFile is the JSON document accepted by "article import".
type articleFile struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Abstract   string   `json:"abstract"`
	MainTopics []string `json:"mainTopics"`
	FullText   string   `json:"fullText"`
}

var articleImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load an article from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		if strings.TrimSpace(owner) == "" {
			return errors.New("--owner is required")
		}

		a, err := readArticle(args[0])
		if err != nil {
			return err
		}
		a.OwnerID = owner

		s, err := storeFromFlags(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Articles().Create(cmd.Context(), a); err != nil {
			return err
		}
		fmt.Printf("Imported %q as %s (owner %s)\n", a.Title, a.ID, a.OwnerID)
		return nil
	},
}

var articleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		if strings.TrimSpace(owner) == "" {
			return errors.New("--owner is required")
		}

		s, err := storeFromFlags(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		articles, err := s.Articles().List(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("No articles found.")
			return nil
		}
		for _, a := range articles {
			fmt.Printf("%-36s  %s  %s\n", a.ID, a.CreatedAt.Local().Format("2006-01-02"), truncate(a.Title, 60))
		}
		return nil
	},
}

func readArticle(path string) (*assessment.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f articleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(f.Title) == "" {
		return nil, fmt.Errorf("%s: title is required", path)
	}
	return &assessment.Article{
		ID:         strings.TrimSpace(f.ID),
		Title:      strings.TrimSpace(f.Title),
		Authors:    f.Authors,
		Abstract:   f.Abstract,
		MainTopics: f.MainTopics,
		FullText:   f.FullText,
	}, nil
}

func init() {
	articleImportCmd.Flags().String("owner", "", "User ID that owns the article")
	articleListCmd.Flags().String("owner", "", "User ID whose articles to list")

	articleCmd.AddCommand(articleImportCmd)
	articleCmd.AddCommand(articleListCmd)
}
