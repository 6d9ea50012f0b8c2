// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/consult-tui/internal/api"
	"github.com/jeranaias/consult-tui/internal/util"
)

// NewCompanyCommand creates the company information command group.
func NewCompanyCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage collected company information",
		Long: `Collect the company information the consultation builds on: free text,
uploaded documents and crawled web pages, plus the extracted company profile
and the maturity assessment.`,
	}
	cmd.AddCommand(
		newCompanyListCommand(root),
		newCompanyAddTextCommand(root),
		newCompanyUploadCommand(root),
		newCompanyCrawlCommand(root),
		newCompanyDeleteCommand(root),
		newCompanyProfileCommand(root),
		newCompanyMaturityCommand(root),
	)
	return cmd
}

func newCompanyListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collected company information",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			items, err := a.client.ListCompanyInfo(ctx, session)
			if err != nil {
				return fmt.Errorf("failed to list company info: %w", err)
			}
			return a.emit("company list", items, func(w io.Writer) {
				if len(items) == 0 {
					fmt.Fprintln(w, "No company information collected.")
					return
				}
				width := GetTerminalWidth() - 40
				if width < 20 {
					width = 20
				}
				for _, it := range items {
					fmt.Fprintf(w, "%6d  %s  %s\n",
						it.ID,
						util.PadRight(util.TruncateWidth(it.Source(), 28), 28),
						DimStyle.Render(util.TruncateWidth(util.FirstLine(it.Content), width)))
				}
			})
		}),
	}
}

func newCompanyAddTextCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-text [text|-]",
		Short: "Add free-text company information (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			text := args[0]
			if text == "-" {
				data, err := io.ReadAll(a.in)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("text is empty")
			}
			item, err := a.client.SubmitText(ctx, session, text)
			if err != nil {
				return fmt.Errorf("failed to add text: %w", err)
			}
			return printAdded(a, "company add-text", item)
		}),
	}
}

func newCompanyUploadCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()
			item, err := a.client.UploadFile(ctx, session, filepath.Base(args[0]), f)
			if err != nil {
				return fmt.Errorf("failed to upload: %w", err)
			}
			return printAdded(a, "company upload", item)
		}),
	}
}

func newCompanyCrawlCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a web page",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			item, err := a.client.CrawlURL(ctx, session, args[0])
			if err != nil {
				return fmt.Errorf("failed to crawl: %w", err)
			}
			return printAdded(a, "company crawl", item)
		}),
	}
}

func newCompanyDeleteCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a collected item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(root, func(ctx context.Context, a *app, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			if err := a.client.DeleteCompanyInfo(ctx, session, id); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			return a.emit("company delete", map[string]int64{"id": id}, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Deleted %d", id)))
			})
		}),
	}
}

func newCompanyProfileCommand(root *rootOptions) *cobra.Command {
	var extract, remove bool
	var setFile string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show, extract, replace or delete the company profile",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			var doc api.Document
			switch {
			case remove:
				if err := a.client.DeleteProfile(ctx, session); err != nil {
					return fmt.Errorf("failed to delete profile: %w", err)
				}
				return a.emit("company profile", nil, func(w io.Writer) {
					fmt.Fprintln(w, SuccessStyle.Render("Profile deleted"))
				})
			case setFile != "":
				if doc, err = readDocument(setFile); err != nil {
					return err
				}
				if err := a.client.SaveProfile(ctx, session, doc); err != nil {
					return fmt.Errorf("failed to save profile: %w", err)
				}
			case extract:
				key, err := a.key()
				if err != nil {
					return err
				}
				if doc, err = a.client.ExtractProfile(ctx, session, key); err != nil {
					return fmt.Errorf("failed to extract profile: %w", err)
				}
			default:
				if doc, err = a.client.GetProfile(ctx, session); err != nil {
					return fmt.Errorf("failed to load profile: %w", err)
				}
			}
			return a.emit("company profile", doc, func(w io.Writer) { printDocument(w, doc) })
		}),
	}
	cmd.Flags().BoolVar(&extract, "extract", false, "Extract the profile from the collected information")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the profile")
	cmd.Flags().StringVar(&setFile, "set", "", "Replace the profile with a JSON file")
	cmd.MarkFlagsMutuallyExclusive("extract", "delete", "set")
	return cmd
}

func newCompanyMaturityCommand(root *rootOptions) *cobra.Command {
	var setFile string
	cmd := &cobra.Command{
		Use:   "maturity",
		Short: "Show or replace the maturity assessment",
		Args:  cobra.NoArgs,
		RunE: withApp(root, func(ctx context.Context, a *app, _ []string) error {
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			var doc api.Document
			if setFile != "" {
				if doc, err = readDocument(setFile); err != nil {
					return err
				}
				if err := a.client.SaveMaturity(ctx, session, doc); err != nil {
					return fmt.Errorf("failed to save maturity: %w", err)
				}
			} else if doc, err = a.client.GetMaturity(ctx, session); err != nil {
				return fmt.Errorf("failed to load maturity: %w", err)
			}
			return a.emit("company maturity", doc, func(w io.Writer) { printDocument(w, doc) })
		}),
	}
	cmd.Flags().StringVar(&setFile, "set", "", "Replace the assessment with a JSON file")
	return cmd
}

func printAdded(a *app, command string, item api.CompanyInfo) error {
	return a.emit(command, item, func(w io.Writer) {
		fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Added %d (%s)", item.ID, item.Source())))
	})
}

// readDocument reads a JSON object from path.
func readDocument(path string) (api.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc api.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

func printDocument(w io.Writer, doc api.Document) {
	if len(doc) == 0 {
		fmt.Fprintln(w, "Nothing recorded yet.")
		return
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintln(w, ErrorStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(w, string(data))
}
