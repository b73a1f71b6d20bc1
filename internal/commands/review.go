// Package commands defines the CLI surface: one-shot reviews and the
// HTTP server.
package commands

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/reposage/reposage/internal/app"
	"github.com/reposage/reposage/internal/render"
	"github.com/reposage/reposage/internal/review"
)

// ReviewCommand returns the CLI command for reviewing pull requests.
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Review one or more pull requests by URL",
		ArgsUsage: "<pull-request-url> [<pull-request-url>...]",
		Description: "Fetches each pull request's diff, submits it for AI analysis, " +
			"and prints a scored review. GitHub, GitLab (including self-hosted), and " +
			"Bitbucket URLs are recognized.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "depth",
				Aliases: []string{"d"},
				Usage:   "Review depth: standard, comprehensive, or security",
				Value:   string(review.DepthStandard),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: console, markdown, or json",
				Value:   string(render.FormatConsole),
			},
			&cli.StringFlag{
				Name:  "output-file",
				Usage: "Write output to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "post-comment",
				Usage: "Post the review back to the pull request as a comment",
			},
		},
		Action: runReview,
	}
}

func runReview(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one pull request URL is required", 1)
	}

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	depth, err := review.ParseDepth(c.String("depth"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	format, err := render.ParseFormat(c.String("output"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	out := os.Stdout
	if path := c.String("output-file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	renderer := render.New(out, format)
	opts := review.Options{
		Depth:       depth,
		PostComment: c.Bool("post-comment"),
	}

	var failed int
	for _, rawURL := range c.Args().Slice() {
		report, err := application.Review.Analyze(c.Context, rawURL, opts)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "review failed for %s: %v\n", rawURL, err)
			continue
		}
		if err := renderer.Render(report); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d reviews failed", failed, c.NArg()), 1)
	}
	return nil
}
