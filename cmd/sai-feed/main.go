package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-feed/app"
	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/config"
	"github.com/saiset-co/sai-feed/types"
)

const (
	envEmail    = "SAI_FEED_EMAIL"
	envPassword = "SAI_FEED_PASSWORD"
)

var (
	configPath string
	logLevel   string
	pages      int
	unlike     bool
)

func main() {
	root := &cobra.Command{
		Use:           "sai-feed",
		Short:         "Command line client for the campus feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(feedCmd(), likeCmd(), serveCmd(), configCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func feedCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "feed",
		Short: "Print the newest posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				entry := a.Feed().Load(ctx)
				if entry.Status == cache.StatusError {
					return entry.Err
				}

				for i := 1; i < pages && a.Feed().HasNextPage(); i++ {
					entry, _ = a.Feed().FetchNextPage(ctx)
					if entry.Status == cache.StatusError {
						return entry.Err
					}
				}

				printPosts(a.Feed().Posts())
				return nil
			})
		},
	}
	c.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	return c
}

func likeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "like <post-id>",
		Short: "Like a post, or unlike it with --unlike",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Feed().Load(ctx)
				if err := a.Feed().ToggleLike(ctx, args[0], unlike); err != nil {
					return err
				}

				for _, post := range a.Feed().Posts() {
					if post.ID == args[0] {
						fmt.Printf("%s now has %d likes\n", post.ID, post.LikesCount)
					}
				}
				return nil
			})
		},
	}
	c.Flags().BoolVar(&unlike, "unlike", false, "Remove the like instead")
	return c
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep the client running and expose its metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Feed().Load(ctx)
				a.Profile().Load(ctx)

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
				defer stop()

				<-ctx.Done()
				a.Logger().Info("Received shutdown signal")
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [path]",
		Short: "Print the effective configuration or the value at a dotted path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManager(cmd.Context(), configPath)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			var value interface{}
			if err := manager.GetAs(path, &value); err != nil {
				return err
			}

			out, err := yaml.Marshal(value)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
}

// withApp starts the client, signs in from the environment when no session
// was restored, runs fn and stops the client again.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.NewFromFile(ctx, configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		if err := a.SetLogLevel(logLevel); err != nil {
			return err
		}
	}

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}()

	if !a.Session().IsAuthenticated() {
		email, password := os.Getenv(envEmail), os.Getenv(envPassword)
		if email != "" && password != "" {
			if _, err := a.Session().Login(ctx, &types.LoginRequest{Email: email, Password: password}); err != nil {
				return err
			}
		} else {
			a.Logger().Warn("Not signed in, set credentials to sign in",
				zap.String("email_env", envEmail),
				zap.String("password_env", envPassword))
		}
	}

	return fn(ctx, a)
}

func printPosts(posts []types.Post) {
	for _, post := range posts {
		author := post.Author.Name
		if post.IsAnonymous || author == "" {
			author = "Anonymous"
		}

		liked := " "
		if post.IsLiked {
			liked = "*"
		}

		fmt.Printf("%s [%s] %s by %s (%s) %s%d likes, %d comments\n",
			post.ID, post.Kategori, post.Title, author, post.Fakultas, liked, post.LikesCount, post.CommentsCount)
	}
}
